package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

// batchSize bounds IN lists and multi-row inserts.
const batchSize = 500

// Repository stores articles, clusters and links.
type Repository struct {
	db *DB
}

var (
	_ ports.ArticleRepository = (*Repository)(nil)
	_ ports.ClusterRepository = (*Repository)(nil)
)

// NewRepository wires a connected database.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) exec(ctx context.Context) executor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.db.DB
}

// FindExistingURLs returns the subset of urls that are already stored.
func (r *Repository) FindExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	for start := 0; start < len(urls); start += batchSize {
		end := min(start+batchSize, len(urls))

		query, args, err := r.db.builder.
			Select("url").
			From("news").
			Where(sq.Eq{"url": urls[start:end]}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build existing urls query: %w", err)
		}

		rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query existing urls: %w", err)
		}
		for rows.Next() {
			var url string
			if err := rows.Scan(&url); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan url: %w", err)
			}
			result[url] = struct{}{}
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// SaveArticles inserts the batch; rows whose url already exists are dropped
// by the unique constraint and not counted.
func (r *Repository) SaveArticles(ctx context.Context, articles []domain.PersistedArticle) (int, error) {
	saved := 0
	for start := 0; start < len(articles); start += batchSize {
		end := min(start+batchSize, len(articles))

		insert := r.db.builder.
			Insert("news").
			Columns("url", "title", "published_at", "section", "source", "fetched_at").
			Suffix("ON CONFLICT (url) DO NOTHING")
		for _, a := range articles[start:end] {
			fetchedAt := a.FetchedAt
			if fetchedAt.IsZero() {
				fetchedAt = time.Now()
			}
			insert = insert.Values(a.URL, a.Title, a.PublishedAt.UTC(), a.Section, a.Source, fetchedAt.UTC())
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return saved, fmt.Errorf("build insert news: %w", err)
		}
		res, err := r.exec(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return saved, fmt.Errorf("insert news: %w", classify(err))
		}
		if n, err := res.RowsAffected(); err == nil {
			saved += int(n)
		}
	}
	return saved, nil
}

// FindArticleByID returns domain.ErrNotFound when no row matches.
func (r *Repository) FindArticleByID(ctx context.Context, id int64) (domain.PersistedArticle, error) {
	query, args, err := r.articleSelect().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.PersistedArticle{}, fmt.Errorf("build find article: %w", err)
	}

	article, err := scanArticle(r.exec(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PersistedArticle{}, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PersistedArticle{}, fmt.Errorf("find article %d: %w", id, err)
	}
	return article, nil
}

// ListArticles returns the newest articles, optionally for one source.
func (r *Repository) ListArticles(ctx context.Context, source string, limit int) ([]domain.PersistedArticle, error) {
	builder := r.articleSelect().OrderBy("published_at DESC", "id DESC")
	if source != "" {
		builder = builder.Where(sq.Eq{"source": source})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list articles: %w", err)
	}
	return r.queryArticles(ctx, query, args)
}

// CreateCluster inserts the cluster and its categories and returns the new id.
func (r *Repository) CreateCluster(ctx context.Context, cluster domain.Cluster) (int64, error) {
	generatedAt := cluster.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	publication := cluster.PublicationDate
	if publication.IsZero() {
		publication = generatedAt
	}

	query, args, err := r.db.builder.
		Insert("story_clusters").
		Columns("title", "summary", "publication_date", "generated_at").
		Values(cluster.Title, cluster.Summary, publication.UTC(), generatedAt.UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert cluster: %w", err)
	}

	var id int64
	if err := r.exec(ctx).QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert cluster: %w", classify(err))
	}

	if len(cluster.Categories) > 0 {
		insert := r.db.builder.
			Insert("story_cluster_categories").
			Columns("cluster_id", "category").
			Suffix("ON CONFLICT (cluster_id, category) DO NOTHING")
		seen := make(map[string]struct{}, len(cluster.Categories))
		for _, category := range cluster.Categories {
			if _, dup := seen[category]; dup || category == "" {
				continue
			}
			seen[category] = struct{}{}
			insert = insert.Values(id, category)
		}
		if len(seen) > 0 {
			query, args, err := insert.ToSql()
			if err != nil {
				return 0, fmt.Errorf("build insert categories: %w", err)
			}
			if _, err := r.exec(ctx).ExecContext(ctx, query, args...); err != nil {
				return 0, fmt.Errorf("insert categories: %w", classify(err))
			}
		}
	}
	return id, nil
}

// EnsureUngroupedCluster returns the id of the ungrouped sentinel, creating it
// from cluster when absent. Concurrent callers converge on the same row through
// the partial unique index on the sentinel title.
func (r *Repository) EnsureUngroupedCluster(ctx context.Context, cluster domain.Cluster) (int64, error) {
	now := time.Now()
	if cluster.GeneratedAt.IsZero() {
		cluster.GeneratedAt = now
	}
	if cluster.PublicationDate.IsZero() {
		cluster.PublicationDate = cluster.GeneratedAt
	}

	query, args, err := r.db.builder.
		Insert("story_clusters").
		Columns("title", "summary", "publication_date", "generated_at").
		Values(domain.UngroupedClusterTitle, cluster.Summary, cluster.PublicationDate.UTC(), cluster.GeneratedAt.UTC()).
		Suffix("ON CONFLICT (title) WHERE title = '" + domain.UngroupedClusterTitle + "' DO NOTHING").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert ungrouped cluster: %w", err)
	}
	if _, err := r.exec(ctx).ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("insert ungrouped cluster: %w", classify(err))
	}

	sentinel, err := r.FindClusterByTitle(ctx, domain.UngroupedClusterTitle)
	if err != nil {
		return 0, fmt.Errorf("load ungrouped cluster: %w", err)
	}
	return sentinel.ID, nil
}

// FindClusterByTitle returns the oldest cluster with the exact title.
func (r *Repository) FindClusterByTitle(ctx context.Context, title string) (domain.Cluster, error) {
	query, args, err := r.clusterSelect().Where(sq.Eq{"title": title}).OrderBy("id").Limit(1).ToSql()
	if err != nil {
		return domain.Cluster{}, fmt.Errorf("build find cluster: %w", err)
	}
	return r.findCluster(ctx, query, args, title)
}

// FindClusterByID returns domain.ErrNotFound when no row matches.
func (r *Repository) FindClusterByID(ctx context.Context, id int64) (domain.Cluster, error) {
	query, args, err := r.clusterSelect().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Cluster{}, fmt.Errorf("build find cluster: %w", err)
	}
	return r.findCluster(ctx, query, args, id)
}

// LinkArticle reports whether a new link row was written.
func (r *Repository) LinkArticle(ctx context.Context, link domain.ClusterLink) (bool, error) {
	query, args, err := r.db.builder.
		Insert("story_links").
		Columns("cluster_id", "news_id").
		Values(link.ClusterID, link.ArticleID).
		Suffix("ON CONFLICT (cluster_id, news_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert link: %w", err)
	}

	res, err := r.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert link: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link rows affected: %w", err)
	}
	return n > 0, nil
}

// ListClusters pages through generated clusters, newest first.
func (r *Repository) ListClusters(ctx context.Context, category string, offset, limit int) ([]domain.Cluster, error) {
	builder := r.clusterSelect().
		Where(sq.NotEq{"title": domain.UngroupedClusterTitle}).
		OrderBy("generated_at DESC", "id DESC")
	if category != "" {
		builder = builder.Where(sq.Expr("id IN (SELECT cluster_id FROM story_cluster_categories WHERE category = ?)", category))
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list clusters: %w", err)
	}

	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	var clusters []domain.Cluster
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		clusters = append(clusters, cluster)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	if err := r.attachCategories(ctx, clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}

// ClusterArticles returns the articles linked to a cluster in link order.
func (r *Repository) ClusterArticles(ctx context.Context, clusterID int64) ([]domain.PersistedArticle, error) {
	query, args, err := r.db.builder.
		Select("n.id", "n.url", "n.title", "n.published_at", "n.section", "n.source", "n.fetched_at").
		From("story_links l").
		Join("news n ON n.id = l.news_id").
		Where(sq.Eq{"l.cluster_id": clusterID}).
		OrderBy("l.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cluster articles: %w", err)
	}
	return r.queryArticles(ctx, query, args)
}

func (r *Repository) articleSelect() sq.SelectBuilder {
	return r.db.builder.
		Select("id", "url", "title", "published_at", "section", "source", "fetched_at").
		From("news")
}

func (r *Repository) clusterSelect() sq.SelectBuilder {
	return r.db.builder.
		Select("id", "title", "summary", "publication_date", "generated_at").
		From("story_clusters")
}

func (r *Repository) queryArticles(ctx context.Context, query string, args []any) ([]domain.PersistedArticle, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	var articles []domain.PersistedArticle
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *Repository) findCluster(ctx context.Context, query string, args []any, key any) (domain.Cluster, error) {
	cluster, err := scanCluster(r.exec(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cluster{}, fmt.Errorf("cluster %v: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Cluster{}, fmt.Errorf("find cluster %v: %w", key, err)
	}

	clusters := []domain.Cluster{cluster}
	if err := r.attachCategories(ctx, clusters); err != nil {
		return domain.Cluster{}, err
	}
	return clusters[0], nil
}

func (r *Repository) attachCategories(ctx context.Context, clusters []domain.Cluster) error {
	if len(clusters) == 0 {
		return nil
	}
	index := make(map[int64]int, len(clusters))
	ids := make([]int64, 0, len(clusters))
	for i, c := range clusters {
		index[c.ID] = i
		ids = append(ids, c.ID)
	}

	query, args, err := r.db.builder.
		Select("cluster_id", "category").
		From("story_cluster_categories").
		Where(sq.Eq{"cluster_id": ids}).
		OrderBy("cluster_id", "category").
		ToSql()
	if err != nil {
		return fmt.Errorf("build categories query: %w", err)
	}

	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query categories: %w", err)
	}
	for rows.Next() {
		var (
			clusterID int64
			category  string
		)
		if err := rows.Scan(&clusterID, &category); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan category: %w", err)
		}
		if i, ok := index[clusterID]; ok {
			clusters[i].Categories = append(clusters[i].Categories, category)
		}
	}
	return closeRows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.PersistedArticle, error) {
	var a domain.PersistedArticle
	if err := row.Scan(&a.ID, &a.URL, &a.Title, &a.PublishedAt, &a.Section, &a.Source, &a.FetchedAt); err != nil {
		return domain.PersistedArticle{}, err
	}
	a.PublishedAt = a.PublishedAt.UTC()
	a.FetchedAt = a.FetchedAt.UTC()
	return a, nil
}

func scanCluster(row rowScanner) (domain.Cluster, error) {
	var c domain.Cluster
	if err := row.Scan(&c.ID, &c.Title, &c.Summary, &c.PublicationDate, &c.GeneratedAt); err != nil {
		return domain.Cluster{}, err
	}
	c.PublicationDate = c.PublicationDate.UTC()
	c.GeneratedAt = c.GeneratedAt.UTC()
	return c, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close rows: %w", err)
	}
	return nil
}

// classify maps unique-constraint violations of either driver to
// domain.ErrPersistenceConflict.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", domain.ErrPersistenceConflict, pqErr.Message)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %s", domain.ErrPersistenceConflict, liteErr.Error())
		}
	}
	return err
}
