package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"NewsAggregator/internal/domain"
)

// memoryStore is an in-memory ArticleRepository, ClusterRepository and TxManager.
type memoryStore struct {
	mu       sync.Mutex
	articles []domain.PersistedArticle
	clusters []domain.Cluster
	links    map[domain.ClusterLink]struct{}
	saveErr  error
	linkErr  error
	saves    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{links: map[domain.ClusterLink]struct{}{}}
}

func (m *memoryStore) FindExistingURLs(_ context.Context, urls []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := map[string]struct{}{}
	for _, u := range urls {
		for _, a := range m.articles {
			if a.URL == u {
				found[u] = struct{}{}
			}
		}
	}
	return found, nil
}

func (m *memoryStore) SaveArticles(_ context.Context, articles []domain.PersistedArticle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	saved := 0
outer:
	for _, a := range articles {
		for _, existing := range m.articles {
			if existing.URL == a.URL {
				continue outer
			}
		}
		a.ID = int64(len(m.articles) + 1)
		m.articles = append(m.articles, a)
		saved++
	}
	return saved, nil
}

func (m *memoryStore) FindArticleByID(_ context.Context, id int64) (domain.PersistedArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.articles {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.PersistedArticle{}, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
}

func (m *memoryStore) ListArticles(_ context.Context, source string, limit int) ([]domain.PersistedArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.PersistedArticle
	for _, a := range m.articles {
		if source == "" || a.Source == source {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) CreateCluster(_ context.Context, c domain.Cluster) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = int64(len(m.clusters) + 1)
	m.clusters = append(m.clusters, c)
	return c.ID, nil
}

func (m *memoryStore) EnsureUngroupedCluster(_ context.Context, c domain.Cluster) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.clusters {
		if existing.IsUngrouped() {
			return existing.ID, nil
		}
	}
	c.Title = domain.UngroupedClusterTitle
	c.ID = int64(len(m.clusters) + 1)
	m.clusters = append(m.clusters, c)
	return c.ID, nil
}

func (m *memoryStore) FindClusterByTitle(_ context.Context, title string) (domain.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clusters {
		if c.Title == title {
			return c, nil
		}
	}
	return domain.Cluster{}, domain.ErrNotFound
}

func (m *memoryStore) FindClusterByID(_ context.Context, id int64) (domain.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clusters {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Cluster{}, domain.ErrNotFound
}

func (m *memoryStore) LinkArticle(_ context.Context, link domain.ClusterLink) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.linkErr != nil {
		return false, m.linkErr
	}
	if _, ok := m.links[link]; ok {
		return false, nil
	}
	m.links[link] = struct{}{}
	return true, nil
}

func (m *memoryStore) ListClusters(_ context.Context, _ string, offset, limit int) ([]domain.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Cluster
	for _, c := range m.clusters {
		if !c.IsUngrouped() {
			out = append(out, c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) ClusterArticles(_ context.Context, clusterID int64) ([]domain.PersistedArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for link := range m.links {
		if link.ClusterID == clusterID {
			ids = append(ids, link.ArticleID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []domain.PersistedArticle
	for _, id := range ids {
		out = append(out, m.articles[id-1])
	}
	return out, nil
}

// RunInTx snapshots cluster and link state and restores it when fn fails.
func (m *memoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	clusters := append([]domain.Cluster(nil), m.clusters...)
	links := make(map[domain.ClusterLink]struct{}, len(m.links))
	for k := range m.links {
		links[k] = struct{}{}
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.clusters = clusters
		m.links = links
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryStore) linksFor(clusterID int64) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for link := range m.links {
		if link.ClusterID == clusterID {
			ids = append(ids, link.ArticleID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type staticSource struct {
	name    string
	records []domain.ArticleRecord
	err     error
	delay   time.Duration
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) FetchAll(ctx context.Context, _, _ time.Time) ([]domain.ArticleRecord, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records, s.err
}

type countingTrigger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingTrigger) TriggerAnalysis(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingTrigger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingPublisher struct {
	mu    sync.Mutex
	times []time.Time
}

func (p *recordingPublisher) Publish(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.times = append(p.times, at)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.times)
}

var errStorageDown = errors.New("storage unreachable")

// rendezvousSource blocks until every source sharing arrived has started, so
// a run only completes when sources are fetched concurrently.
type rendezvousSource struct {
	name    string
	arrived *sync.WaitGroup
	hold    time.Duration

	mu         sync.Mutex
	start, end time.Time
}

func (s *rendezvousSource) Name() string { return s.name }

func (s *rendezvousSource) FetchAll(ctx context.Context, _, _ time.Time) ([]domain.ArticleRecord, error) {
	s.mu.Lock()
	s.start = time.Now()
	s.mu.Unlock()

	s.arrived.Done()
	met := make(chan struct{})
	go func() {
		s.arrived.Wait()
		close(met)
	}()

	select {
	case <-met:
	case <-time.After(2 * time.Second):
		return nil, fmt.Errorf("%s: other sources never started", s.name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	time.Sleep(s.hold)

	s.mu.Lock()
	s.end = time.Now()
	s.mu.Unlock()
	return []domain.ArticleRecord{{URL: "https://example.com/" + s.name, Source: s.name}}, nil
}

func (s *rendezvousSource) interval() (time.Time, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.end
}
