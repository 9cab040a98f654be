package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsAggregator/internal/domain"
)

// SourceClient speaks one provider's pagination protocol. Each FetchByTopic call
// starts from the provider's first page and walks pages strictly in order.
type SourceClient interface {
	Name() string
	FetchByTopic(ctx context.Context, filter string, start, end time.Time) ([]domain.ArticleRecord, error)
}

// Options carries the per-source settings a client is built from.
type Options struct {
	BaseURL      string
	APIKey       string
	PageSize     int
	MaxPages     int
	RequestDelay time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Factory builds a client for a configured source.
type Factory func(opts Options) SourceClient

// Registry keeps a mapping from client kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces a client factory.
func (r *Registry) Register(kind string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[kind] = factory
}

// Resolve builds a client of the given kind or returns an error if it is absent.
func (r *Registry) Resolve(kind string, opts Options) (SourceClient, error) {
	if factory, ok := r.factories[kind]; ok {
		return factory(opts), nil
	}
	return nil, fmt.Errorf("source client %s is not registered", kind)
}
