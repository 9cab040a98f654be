package ports

import (
	"context"
	"time"

	"NewsAggregator/internal/domain"
)

// ArticleSource pulls every configured topic of one provider for a date window.
type ArticleSource interface {
	Name() string
	FetchAll(ctx context.Context, start, end time.Time) ([]domain.ArticleRecord, error)
}

// ArticleRepository persists articles; URL uniqueness is enforced by storage.
type ArticleRepository interface {
	FindExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	// SaveArticles inserts the batch and returns how many rows were actually
	// written. Rows rejected by the URL constraint are dropped silently.
	SaveArticles(ctx context.Context, articles []domain.PersistedArticle) (int, error)
	FindArticleByID(ctx context.Context, id int64) (domain.PersistedArticle, error)
	ListArticles(ctx context.Context, source string, limit int) ([]domain.PersistedArticle, error)
}

// ClusterRepository persists analysis clusters and their article links.
type ClusterRepository interface {
	CreateCluster(ctx context.Context, cluster domain.Cluster) (int64, error)
	// EnsureUngroupedCluster returns the single ungrouped sentinel, creating it
	// from the given fields when absent. The title is always the sentinel title.
	EnsureUngroupedCluster(ctx context.Context, cluster domain.Cluster) (int64, error)
	FindClusterByTitle(ctx context.Context, title string) (domain.Cluster, error)
	FindClusterByID(ctx context.Context, id int64) (domain.Cluster, error)
	// LinkArticle returns false when the pair already existed.
	LinkArticle(ctx context.Context, link domain.ClusterLink) (bool, error)
	// ListClusters returns generated clusters newest first; the ungrouped
	// sentinel is never listed. An empty category disables the filter.
	ListClusters(ctx context.Context, category string, offset, limit int) ([]domain.Cluster, error)
	ClusterArticles(ctx context.Context, clusterID int64) ([]domain.PersistedArticle, error)
}

// TxManager runs fn inside one storage transaction carried by ctx.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AnalysisTrigger asks the downstream analysis service to start a run.
type AnalysisTrigger interface {
	TriggerAnalysis(ctx context.Context) error
}

// Publisher announces new analysis results to live clients.
type Publisher interface {
	Publish(at time.Time)
}

// Notifier streams a short text message to an outbound channel (Telegram, etc.).
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
