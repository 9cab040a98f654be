package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/metrics"
	"NewsAggregator/internal/ports"
)

const (
	defaultLookbackDays   = 1
	defaultTriggerTimeout = 30 * time.Second
	// missingDateOffset is subtracted from the run time for articles without a publication date.
	missingDateOffset = time.Hour
)

// AggregatorDeps wires the driven adapters into the aggregation run.
type AggregatorDeps struct {
	Sources        []ports.ArticleSource
	Repository     ports.ArticleRepository
	Trigger        ports.AnalysisTrigger
	LookbackDays   int
	TriggerTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// SourceReport summarizes one source within a run.
type SourceReport struct {
	Fetched int    `json:"fetched"`
	Saved   int    `json:"saved"`
	Error   string `json:"error,omitempty"`
}

// RunReport summarizes one aggregation run.
type RunReport struct {
	RunID     string                  `json:"runId"`
	Fetched   int                     `json:"fetchedCount"`
	Saved     int                     `json:"savedCount"`
	PerSource map[string]SourceReport `json:"perSource"`
	Duration  time.Duration           `json:"duration"`
}

// Aggregator fetches every source concurrently, drops already known URLs and
// persists the rest. It does not guard against overlapping runs; see Scheduler.
type Aggregator struct {
	sources        []ports.ArticleSource
	repository     ports.ArticleRepository
	trigger        ports.AnalysisTrigger
	lookback       time.Duration
	triggerTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time

	triggers sync.WaitGroup
}

// NewAggregator constructs the aggregation use case.
func NewAggregator(deps AggregatorDeps) *Aggregator {
	a := &Aggregator{
		sources:        deps.Sources,
		repository:     deps.Repository,
		trigger:        deps.Trigger,
		lookback:       time.Duration(deps.LookbackDays) * 24 * time.Hour,
		triggerTimeout: deps.TriggerTimeout,
		logger:         deps.Logger,
		now:            deps.Now,
	}
	if deps.LookbackDays <= 0 {
		a.lookback = defaultLookbackDays * 24 * time.Hour
	}
	if a.triggerTimeout <= 0 {
		a.triggerTimeout = defaultTriggerTimeout
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

type sourceBatch struct {
	name    string
	records []domain.ArticleRecord
	err     error
}

// Run executes one aggregation. Errors from individual sources are logged and
// reported per source; only a storage failure fails the run.
func (a *Aggregator) Run(ctx context.Context) (RunReport, error) {
	began := a.now()
	report := RunReport{
		RunID:     uuid.NewString(),
		PerSource: make(map[string]SourceReport, len(a.sources)),
	}
	logger := a.logger.With("run_id", report.RunID)

	end := began
	start := end.Add(-a.lookback)
	logger.Info("aggregation run started", "sources", len(a.sources),
		"from", start.Format(time.DateOnly), "to", end.Format(time.DateOnly))

	batches := a.fetchAll(ctx, logger, start, end)

	var merged []domain.ArticleRecord
	for _, batch := range batches {
		sr := SourceReport{Fetched: len(batch.records)}
		if batch.err != nil {
			sr.Error = batch.err.Error()
		}
		report.PerSource[batch.name] = sr
		report.Fetched += len(batch.records)
		merged = append(merged, batch.records...)
	}

	if len(merged) > 0 {
		fresh, err := a.selectNew(ctx, merged)
		if err != nil {
			return a.fail(logger, report, began, err)
		}

		perSource, err := a.persist(ctx, logger, fresh, began)
		if err != nil {
			return a.fail(logger, report, began, err)
		}
		for name, saved := range perSource {
			sr := report.PerSource[name]
			sr.Saved = saved
			report.PerSource[name] = sr
			report.Saved += saved
			metrics.RecordSaved(name, saved)
		}
	}

	if report.Saved == 0 {
		logger.Info("aggregation run saved no new articles", "fetched", report.Fetched)
	}

	a.fireTrigger(logger)

	report.Duration = a.now().Sub(began)
	metrics.RecordRun("success", report.Duration)
	logger.Info("aggregation run finished", "fetched", report.Fetched, "saved", report.Saved, "duration", report.Duration)
	return report, nil
}

// WaitTriggers blocks until every fired analysis trigger has returned.
func (a *Aggregator) WaitTriggers() {
	a.triggers.Wait()
}

func (a *Aggregator) fetchAll(ctx context.Context, logger *slog.Logger, start, end time.Time) []sourceBatch {
	var (
		mu      sync.Mutex
		batches []sourceBatch
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		if src == nil {
			continue
		}
		g.Go(func() error {
			records, err := src.FetchAll(gctx, start, end)
			if err != nil {
				if errors.Is(err, domain.ErrConfiguration) {
					logger.Error("source skipped", "source", src.Name(), "error", err)
				} else {
					logger.Warn("source finished with error", "source", src.Name(), "error", err)
				}
			}
			logger.Info("source fetched", "source", src.Name(), "articles", len(records))

			mu.Lock()
			batches = append(batches, sourceBatch{name: src.Name(), records: records, err: err})
			mu.Unlock()
			// per-source failures never cancel sibling sources
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(batches, func(i, j int) bool { return batches[i].name < batches[j].name })
	return batches
}

// selectNew drops records with a blank URL, URLs already stored, and repeated
// URLs within the batch, keeping the first occurrence.
func (a *Aggregator) selectNew(ctx context.Context, merged []domain.ArticleRecord) ([]domain.ArticleRecord, error) {
	urls := make([]string, 0, len(merged))
	distinct := make(map[string]struct{}, len(merged))
	for _, record := range merged {
		url := strings.TrimSpace(record.URL)
		if url == "" {
			continue
		}
		if _, ok := distinct[url]; ok {
			continue
		}
		distinct[url] = struct{}{}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return nil, nil
	}

	existing, err := a.repository.FindExistingURLs(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("find existing urls: %w", err)
	}

	fresh := make([]domain.ArticleRecord, 0, len(urls)-len(existing))
	taken := make(map[string]struct{}, len(urls))
	for _, record := range merged {
		url := strings.TrimSpace(record.URL)
		if url == "" {
			continue
		}
		if _, ok := existing[url]; ok {
			continue
		}
		if _, ok := taken[url]; ok {
			continue
		}
		taken[url] = struct{}{}
		record.URL = url
		fresh = append(fresh, record)
	}
	return fresh, nil
}

// persist saves the insert set grouped by source and returns the saved count per source.
func (a *Aggregator) persist(ctx context.Context, logger *slog.Logger, fresh []domain.ArticleRecord, runAt time.Time) (map[string]int, error) {
	groups := make(map[string][]domain.PersistedArticle)
	var order []string
	for _, record := range fresh {
		article := a.backfill(logger, record, runAt)
		if _, ok := groups[article.Source]; !ok {
			order = append(order, article.Source)
		}
		groups[article.Source] = append(groups[article.Source], article)
	}

	saved := make(map[string]int, len(order))
	for _, source := range order {
		n, err := a.repository.SaveArticles(ctx, groups[source])
		if err != nil {
			return nil, fmt.Errorf("save articles for %s: %w", source, err)
		}
		if dropped := len(groups[source]) - n; dropped > 0 {
			logger.Warn("articles dropped by url constraint", "source", source, "dropped", dropped)
		}
		saved[source] = n
	}
	return saved, nil
}

func (a *Aggregator) backfill(logger *slog.Logger, record domain.ArticleRecord, runAt time.Time) domain.PersistedArticle {
	record = record.WithDefaults()

	var published time.Time
	if record.PublishedAt != nil {
		published = *record.PublishedAt
	} else {
		published = runAt.Add(-missingDateOffset)
		logger.Warn("publication date missing, using fallback", "url", record.URL, "fallback", published.Format(time.RFC3339))
	}

	return domain.PersistedArticle{
		URL:         record.URL,
		Title:       record.Title,
		PublishedAt: published,
		Section:     record.Section,
		Source:      record.Source,
		FetchedAt:   runAt,
	}
}

// fireTrigger notifies the analysis service without waiting for it. The call
// outlives the run's context.
func (a *Aggregator) fireTrigger(logger *slog.Logger) {
	if a.trigger == nil {
		return
	}
	a.triggers.Add(1)
	go func() {
		defer a.triggers.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.triggerTimeout)
		defer cancel()

		if err := a.trigger.TriggerAnalysis(ctx); err != nil {
			logger.Error("analysis trigger failed", "error", err)
			return
		}
		logger.Info("analysis trigger accepted")
	}()
}

func (a *Aggregator) fail(logger *slog.Logger, report RunReport, began time.Time, err error) (RunReport, error) {
	report.Duration = a.now().Sub(began)
	metrics.RecordRun("failure", report.Duration)
	logger.Error("aggregation run failed", "error", err, "duration", report.Duration)
	return report, fmt.Errorf("aggregation run %s: %w", report.RunID, err)
}
