package usecase

import (
	"context"
	"fmt"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

const (
	defaultStoryPageSize = 20
	maxStoryPageSize     = 100
	defaultNewsLimit     = 50
)

// StoryDetail is a cluster with the articles it references.
type StoryDetail struct {
	Cluster  domain.Cluster
	Articles []domain.PersistedArticle
}

// Stories serves read-side queries over clusters and articles.
type Stories struct {
	clusters ports.ClusterRepository
	articles ports.ArticleRepository
}

// NewStories constructs the read-side use case.
func NewStories(clusters ports.ClusterRepository, articles ports.ArticleRepository) *Stories {
	return &Stories{clusters: clusters, articles: articles}
}

// List returns one zero-based page of generated stories, newest first.
func (s *Stories) List(ctx context.Context, category string, page, size int) ([]domain.Cluster, error) {
	if size <= 0 {
		size = defaultStoryPageSize
	}
	size = min(size, maxStoryPageSize)
	page = max(page, 0)

	clusters, err := s.clusters.ListClusters(ctx, category, page*size, size)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return clusters, nil
}

// Get returns one story with its articles. The ungrouped sentinel is not a story.
func (s *Stories) Get(ctx context.Context, id int64) (StoryDetail, error) {
	cluster, err := s.clusters.FindClusterByID(ctx, id)
	if err != nil {
		return StoryDetail{}, err
	}
	if cluster.IsUngrouped() {
		return StoryDetail{}, fmt.Errorf("story %d: %w", id, domain.ErrNotFound)
	}

	articles, err := s.clusters.ClusterArticles(ctx, id)
	if err != nil {
		return StoryDetail{}, fmt.Errorf("story %d articles: %w", id, err)
	}
	return StoryDetail{Cluster: cluster, Articles: articles}, nil
}

// LatestNews lists stored articles, newest first.
func (s *Stories) LatestNews(ctx context.Context, source string, limit int) ([]domain.PersistedArticle, error) {
	if limit <= 0 {
		limit = defaultNewsLimit
	}
	limit = min(limit, maxStoryPageSize)

	articles, err := s.articles.ListArticles(ctx, source, limit)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	return articles, nil
}
