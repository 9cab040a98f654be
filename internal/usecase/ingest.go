package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/metrics"
	"NewsAggregator/internal/ports"
)

// IngestorDeps wires storage and the live-update publisher.
type IngestorDeps struct {
	Articles  ports.ArticleRepository
	Clusters  ports.ClusterRepository
	Tx        ports.TxManager
	Publisher ports.Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Ingestor stores analysis results posted back by the analysis service.
type Ingestor struct {
	articles  ports.ArticleRepository
	clusters  ports.ClusterRepository
	tx        ports.TxManager
	publisher ports.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewIngestor constructs the ingest use case.
func NewIngestor(deps IngestorDeps) *Ingestor {
	i := &Ingestor{
		articles:  deps.Articles,
		clusters:  deps.Clusters,
		tx:        deps.Tx,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i
}

// Ingest persists every analyzed story with its article links and anchors
// ungrouped articles to the reserved sentinel cluster, all in one transaction.
// It returns the number of stories persisted. Unparseable or unknown article
// ids are skipped.
func (i *Ingestor) Ingest(ctx context.Context, result domain.AnalysisResult) (int, error) {
	i.logger.Info("analysis results received", "stories", len(result.Stories), "ungrouped", len(result.UngroupedArticleIDs))

	var persisted int
	err := i.tx.RunInTx(ctx, func(ctx context.Context) error {
		persisted = 0
		runAt := i.now()

		for _, story := range result.Stories {
			title := strings.TrimSpace(story.Title)
			if title == domain.UngroupedClusterTitle {
				i.logger.Warn("skip story using the reserved ungrouped title", "articles", len(story.ArticleIDs))
				continue
			}
			clusterID, err := i.clusters.CreateCluster(ctx, domain.Cluster{
				Title:           title,
				Summary:         story.Summary,
				Categories:      story.Categories,
				PublicationDate: runAt,
				GeneratedAt:     runAt,
			})
			if err != nil {
				return fmt.Errorf("create cluster %q: %w", story.Title, err)
			}
			persisted++

			linked, err := i.linkAll(ctx, clusterID, story.ArticleIDs)
			if err != nil {
				return err
			}
			i.logger.Debug("story persisted", "cluster_id", clusterID, "links", linked)
		}

		if len(result.UngroupedArticleIDs) == 0 {
			return nil
		}
		sentinel, err := i.ungroupedCluster(ctx, runAt)
		if err != nil {
			return err
		}
		linked, err := i.linkAll(ctx, sentinel, result.UngroupedArticleIDs)
		if err != nil {
			return err
		}
		i.logger.Info("ungrouped articles linked", "cluster_id", sentinel, "links", linked)
		return nil
	})
	if err != nil {
		i.logger.Error("ingest failed, transaction rolled back", "error", err)
		return 0, fmt.Errorf("ingest analysis results: %w", err)
	}

	metrics.ClustersIngested.Add(float64(persisted))
	if persisted > 0 && i.publisher != nil {
		i.publisher.Publish(i.now())
	}
	i.logger.Info("analysis results stored", "stories", persisted)
	return persisted, nil
}

// linkAll links each resolvable id once and returns the number of new links.
func (i *Ingestor) linkAll(ctx context.Context, clusterID int64, rawIDs []string) (int, error) {
	seen := make(map[int64]struct{}, len(rawIDs))
	created := 0
	for _, raw := range rawIDs {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			i.logger.Warn("skip unparseable article id", "cluster_id", clusterID, "id", raw)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, err := i.articles.FindArticleByID(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				i.logger.Warn("skip unknown article id", "cluster_id", clusterID, "id", id)
				continue
			}
			return created, fmt.Errorf("resolve article %d: %w", id, err)
		}

		ok, err := i.clusters.LinkArticle(ctx, domain.ClusterLink{ClusterID: clusterID, ArticleID: id})
		if err != nil {
			return created, fmt.Errorf("link article %d to cluster %d: %w", id, clusterID, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (i *Ingestor) ungroupedCluster(ctx context.Context, runAt time.Time) (int64, error) {
	id, err := i.clusters.EnsureUngroupedCluster(ctx, domain.Cluster{
		Summary:         "Articles the analysis service could not group.",
		PublicationDate: runAt,
		GeneratedAt:     runAt,
	})
	if err != nil {
		return 0, fmt.Errorf("ensure ungrouped cluster: %w", err)
	}
	return id, nil
}
