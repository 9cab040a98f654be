package scanner

import (
	"context"
	"errors"
	"log/slog"

	"NewsAggregator/internal/domain"
)

// StopReason explains why a topic's pagination ended.
type StopReason string

const (
	StopLastPage       StopReason = "last-page"
	StopEmpty          StopReason = "empty"
	StopInvalidPayload StopReason = "invalid-payload"
	StopTransport      StopReason = "transport"
	StopPageCap        StopReason = "page-cap"
	StopCancelled      StopReason = "cancelled"
)

// Page is one provider response, already translated into records.
type Page struct {
	Records []domain.ArticleRecord
	// Structured is false when the expected top-level payload was missing.
	Structured bool
	// ResultCount is the number of raw entries on the page, before per-article
	// skips, so a page of unparseable entries does not end pagination.
	ResultCount int
	// TotalPages is the provider-declared page count, 0 when unknown.
	TotalPages int
	// Last is set by providers that detect the final page by other means.
	Last bool
}

// PageFetcher requests and parses a single page.
type PageFetcher func(ctx context.Context, page int) (Page, error)

// PageObserver is notified after every page outcome; used for metrics.
type PageObserver func(page int, reason StopReason, records int)

// PaginateParams configures one topic walk.
type PaginateParams struct {
	Source    string
	Topic     string
	FirstPage int
	MaxPages  int
	Pacer     *Pacer
	Logger    *slog.Logger
	Observe   PageObserver
}

// Paginate walks pages in order starting at FirstPage, waiting on the pacer
// before each request. Page N+1 is only requested after page N was interpreted.
// Records from pages fetched before a stop are always returned.
func Paginate(ctx context.Context, params PaginateParams, fetch PageFetcher) ([]domain.ArticleRecord, StopReason) {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", params.Source, "topic", params.Topic)

	var collected []domain.ArticleRecord
	cursor := domain.FetchCursor{Page: params.FirstPage, KeepGoing: true}
	reason := StopPageCap

	for fetched := 0; cursor.KeepGoing && fetched < params.MaxPages; fetched++ {
		if err := params.Pacer.Wait(ctx); err != nil {
			reason = StopCancelled
			break
		}

		page, err := fetch(ctx, cursor.Page)
		switch {
		case err != nil && errors.Is(err, domain.ErrParse):
			logger.Warn("page payload could not be parsed, stopping", "page", cursor.Page, "error", err)
			reason = StopInvalidPayload
			cursor.Stop()
		case err != nil:
			if ctx.Err() != nil {
				reason = StopCancelled
			} else {
				reason = StopTransport
			}
			logger.Warn("page request failed, stopping", "page", cursor.Page, "error", err)
			cursor.Stop()
		case !page.Structured:
			logger.Warn("page missing expected structure, stopping", "page", cursor.Page)
			reason = StopInvalidPayload
			cursor.Stop()
		case page.ResultCount == 0:
			logger.Info("page returned no results, stopping", "page", cursor.Page)
			reason = StopEmpty
			cursor.Stop()
		default:
			collected = append(collected, page.Records...)
			if page.Last || (page.TotalPages > 0 && cursor.Page >= page.TotalPages) {
				logger.Info("reached last page", "page", cursor.Page, "total_pages", page.TotalPages)
				reason = StopLastPage
				cursor.Stop()
			}
		}

		if params.Observe != nil {
			outcome := StopReason("ok")
			if !cursor.KeepGoing {
				outcome = reason
			}
			params.Observe(cursor.Page, outcome, len(page.Records))
		}
		cursor.Advance()
	}

	if reason == StopPageCap {
		logger.Info("page cap reached", "max_pages", params.MaxPages)
	}
	logger.Debug("topic pagination finished", "reason", reason, "articles", len(collected))
	return collected, reason
}
