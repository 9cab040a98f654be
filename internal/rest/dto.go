package rest

import (
	"time"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/usecase"
)

type analyzedStoryRequest struct {
	StoryTitle     string   `json:"story_title" validate:"storytitle"`
	Summary        string   `json:"analysis_summary"`
	MainCategories []string `json:"main_categories"`
	RelatedNewsIDs []string `json:"related_news_ids"`
}

type analysisResultRequest struct {
	AnalyzedStories  []analyzedStoryRequest `json:"analyzed_stories" validate:"dive"`
	UngroupedNewsIDs []string               `json:"ungrouped_news_ids"`
}

func (r analysisResultRequest) toDomain() domain.AnalysisResult {
	result := domain.AnalysisResult{
		Stories:             make([]domain.AnalyzedStory, 0, len(r.AnalyzedStories)),
		UngroupedArticleIDs: r.UngroupedNewsIDs,
	}
	for _, s := range r.AnalyzedStories {
		result.Stories = append(result.Stories, domain.AnalyzedStory{
			Title:      s.StoryTitle,
			Summary:    s.Summary,
			Categories: s.MainCategories,
			ArticleIDs: s.RelatedNewsIDs,
		})
	}
	return result
}

type submitResponse struct {
	Success            bool   `json:"success"`
	Message            string `json:"message"`
	SavedStoriesCount  int    `json:"savedStoriesCount,omitempty"`
	UngroupedNewsCount int    `json:"ungroupedNewsCount,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type fetchResponse struct {
	Message      string                          `json:"message"`
	RunID        string                          `json:"runId"`
	FetchedCount int                             `json:"fetchedCount"`
	SavedCount   int                             `json:"savedCount"`
	PerSource    map[string]usecase.SourceReport `json:"perSource,omitempty"`
	DurationMS   int64                           `json:"durationMs"`
}

type summaryEvent struct {
	Timestamp string `json:"timestamp"`
}

type storyResponse struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	Summary         string             `json:"summary"`
	Categories      []string           `json:"categories"`
	PublicationDate time.Time          `json:"publicationDate"`
	GeneratedAt     time.Time          `json:"generatedAt"`
	References      []newsItemResponse `json:"references,omitempty"`
}

type newsItemResponse struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Section     string    `json:"section"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
}

func toStoryResponse(c domain.Cluster) storyResponse {
	categories := c.Categories
	if categories == nil {
		categories = []string{}
	}
	return storyResponse{
		ID:              c.ID,
		Title:           c.Title,
		Summary:         c.Summary,
		Categories:      categories,
		PublicationDate: c.PublicationDate,
		GeneratedAt:     c.GeneratedAt,
	}
}

func toNewsItems(articles []domain.PersistedArticle) []newsItemResponse {
	items := make([]newsItemResponse, 0, len(articles))
	for _, a := range articles {
		items = append(items, newsItemResponse{
			ID:          a.ID,
			URL:         a.URL,
			Title:       a.Title,
			Section:     a.Section,
			Source:      a.Source,
			PublishedAt: a.PublishedAt,
		})
	}
	return items
}
