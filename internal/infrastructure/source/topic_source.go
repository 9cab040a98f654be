package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
	"NewsAggregator/internal/scanner"
)

// TopicSource implements ArticleSource for one provider by running its
// configured topics strictly one after another. Topics share the provider's
// rate budget, so they are never fetched concurrently.
type TopicSource struct {
	client          scanner.SourceClient
	topics          []string
	filters         map[string]string
	interTopicDelay time.Duration
	logger          *slog.Logger
}

var _ ports.ArticleSource = (*TopicSource)(nil)

// NewTopicSource wires a client with its ordered topic keys and key->filter mapping.
func NewTopicSource(client scanner.SourceClient, topics []string, filters map[string]string, interTopicDelay time.Duration, log *slog.Logger) *TopicSource {
	return &TopicSource{
		client:          client,
		topics:          topics,
		filters:         filters,
		interTopicDelay: interTopicDelay,
		logger:          orDefault(log),
	}
}

// Name returns the provider name.
func (s *TopicSource) Name() string {
	return s.client.Name()
}

// Filters resolves every configured topic key; unresolvable keys are omitted.
func (s *TopicSource) Filters() []domain.TopicFilter {
	resolved := make([]domain.TopicFilter, 0, len(s.topics))
	for _, key := range s.topics {
		expr := strings.TrimSpace(s.filters[key])
		if expr == "" {
			continue
		}
		resolved = append(resolved, domain.TopicFilter{SourceName: s.Name(), TopicKey: key, Expression: expr})
	}
	return resolved
}

// FetchAll concatenates every topic's records in configured topic order.
// A configuration error from the client aborts the remaining topics of this
// source only; any other topic failure is logged and the next topic runs.
func (s *TopicSource) FetchAll(ctx context.Context, start, end time.Time) ([]domain.ArticleRecord, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: source client is not configured", domain.ErrConfiguration)
	}

	s.logger.Debug("fetch topics", "source", s.Name(), "topics", len(s.topics),
		"from", start.Format(time.DateOnly), "to", end.Format(time.DateOnly))

	var aggregated []domain.ArticleRecord
	for _, key := range s.topics {
		expr := strings.TrimSpace(s.filters[key])
		if expr == "" {
			s.logger.Warn("filter not found for topic, skipping", "source", s.Name(), "topic", key)
			continue
		}

		s.logger.Info("initiate topic fetch", "source", s.Name(), "topic", key, "filter", expr)
		results, err := s.client.FetchByTopic(ctx, expr, start, end)
		if err != nil {
			if errors.Is(err, domain.ErrConfiguration) {
				s.logger.Error("source misconfigured, abandoning remaining topics", "source", s.Name(), "topic", key, "error", err)
				return aggregated, fmt.Errorf("source %s topic %s: %w", s.Name(), key, err)
			}
			s.logger.Error("topic fetch failed", "source", s.Name(), "topic", key, "error", err)
		}

		s.logger.Debug("topic produced articles", "source", s.Name(), "topic", key, "count", len(results))
		aggregated = append(aggregated, results...)

		if err := scanner.Sleep(ctx, s.interTopicDelay); err != nil {
			s.logger.Warn("inter-topic wait interrupted", "source", s.Name(), "error", err)
			return aggregated, nil
		}
	}

	s.logger.Debug("topic source done", "source", s.Name(), "total_articles", len(aggregated))
	return aggregated, nil
}
