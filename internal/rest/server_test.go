package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/usecase"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type stubFetcher struct {
	report usecase.RunReport
	err    error
	calls  int
	ctxErr error
}

func (s *stubFetcher) Trigger(ctx context.Context) (usecase.RunReport, error) {
	s.calls++
	s.ctxErr = ctx.Err()
	return s.report, s.err
}

type stubIngester struct {
	mu       sync.Mutex
	received []domain.AnalysisResult
	saved    int
	err      error
}

func (s *stubIngester) Ingest(_ context.Context, result domain.AnalysisResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, result)
	return s.saved, s.err
}

type stubUpdates struct {
	last time.Time
	seen time.Time
}

func (s *stubUpdates) Subscribe(context.Context) (<-chan domain.NotificationEvent, func()) {
	ch := make(chan domain.NotificationEvent)
	return ch, func() {}
}

func (s *stubUpdates) HasNewSince(t time.Time) bool {
	s.seen = t
	return s.last.After(t)
}

type stubStories struct {
	clusters []domain.Cluster
	detail   usecase.StoryDetail
	news     []domain.PersistedArticle
	err      error

	gotCategory string
	gotPage     int
	gotSize     int
	gotSource   string
	gotLimit    int
}

func (s *stubStories) List(_ context.Context, category string, page, size int) ([]domain.Cluster, error) {
	s.gotCategory, s.gotPage, s.gotSize = category, page, size
	return s.clusters, s.err
}

func (s *stubStories) Get(_ context.Context, id int64) (usecase.StoryDetail, error) {
	if s.err != nil {
		return usecase.StoryDetail{}, s.err
	}
	if s.detail.Cluster.ID != id {
		return usecase.StoryDetail{}, domain.ErrNotFound
	}
	return s.detail, nil
}

func (s *stubStories) LatestNews(_ context.Context, source string, limit int) ([]domain.PersistedArticle, error) {
	s.gotSource, s.gotLimit = source, limit
	return s.news, s.err
}

type fixture struct {
	fetcher  *stubFetcher
	ingester *stubIngester
	updates  *stubUpdates
	stories  *stubStories
}

func newFixture() *fixture {
	return &fixture{
		fetcher:  &stubFetcher{},
		ingester: &stubIngester{},
		updates:  &stubUpdates{},
		stories:  &stubStories{},
	}
}

func (f *fixture) serve(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := NewServer(Deps{
		Fetcher:  f.fetcher,
		Ingester: f.ingester,
		Updates:  f.updates,
		Stories:  f.stories,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return fixedNow },
	})

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFetchNewsReportsCounts(t *testing.T) {
	f := newFixture()
	f.fetcher.report = usecase.RunReport{
		RunID:   "run-1",
		Fetched: 7,
		Saved:   3,
		PerSource: map[string]usecase.SourceReport{
			"The Guardian": {Fetched: 7, Saved: 3},
		},
		Duration: 1500 * time.Millisecond,
	}

	for _, tc := range []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/news/fetch"},
		{http.MethodGet, "/api/news/fetch-reactive"},
	} {
		rec := f.serve(t, tc.method, tc.target, "")
		require.Equal(t, http.StatusOK, rec.Code, tc.target)

		var resp fetchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "run-1", resp.RunID)
		assert.Equal(t, 7, resp.FetchedCount)
		assert.Equal(t, 3, resp.SavedCount)
		assert.Equal(t, int64(1500), resp.DurationMS)
		assert.Equal(t, 3, resp.PerSource["The Guardian"].Saved)
	}
	assert.Equal(t, 2, f.fetcher.calls)
}

func TestFetchNewsRunIgnoresClientCancellation(t *testing.T) {
	f := newFixture()
	f.fetcher.report = usecase.RunReport{RunID: "run-2", Saved: 1}

	e := NewServer(Deps{
		Fetcher:  f.fetcher,
		Ingester: f.ingester,
		Updates:  f.updates,
		Stories:  f.stories,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/news/fetch", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, 1, f.fetcher.calls)
	assert.NoError(t, f.fetcher.ctxErr)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFetchNewsConflictWhileRunning(t *testing.T) {
	f := newFixture()
	f.fetcher.err = domain.ErrRunInProgress

	rec := f.serve(t, http.MethodPost, "/api/news/fetch", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in progress")
}

func TestFetchNewsFailure(t *testing.T) {
	f := newFixture()
	f.fetcher.err = errors.New("database unavailable")

	rec := f.serve(t, http.MethodPost, "/api/news/fetch", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database unavailable")
}

func TestSubmitResults(t *testing.T) {
	f := newFixture()
	f.ingester.saved = 2

	body := `{
		"analyzed_stories": [
			{"story_title": "Rates", "analysis_summary": "Banks move", "main_categories": ["Business"], "related_news_ids": ["1", "2"]},
			{"story_title": "Chips", "related_news_ids": ["3"]}
		],
		"ungrouped_news_ids": ["4", "5", "x"]
	}`
	rec := f.serve(t, http.MethodPost, "/api/internal/submit-ai-results", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.SavedStoriesCount)
	assert.Equal(t, 3, resp.UngroupedNewsCount)

	require.Len(t, f.ingester.received, 1)
	got := f.ingester.received[0]
	require.Len(t, got.Stories, 2)
	assert.Equal(t, "Rates", got.Stories[0].Title)
	assert.Equal(t, []string{"Business"}, got.Stories[0].Categories)
	assert.Equal(t, []string{"3"}, got.Stories[1].ArticleIDs)
	assert.Equal(t, []string{"4", "5", "x"}, got.UngroupedArticleIDs)
}

func TestSubmitResultsRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"malformed json":    `{"analyzed_stories": [`,
		"missing title":     `{"analyzed_stories": [{"story_title": "", "related_news_ids": ["1"]}]}`,
		"wrong field types": `{"analyzed_stories": "nope"}`,
		"blank title":       `{"analyzed_stories": [{"story_title": "   ", "related_news_ids": ["1"]}]}`,
		"reserved title":    `{"analyzed_stories": [{"story_title": "UNGROUPED_PLACEHOLDER", "related_news_ids": ["1"]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			rec := f.serve(t, http.MethodPost, "/api/internal/submit-ai-results", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
			assert.Empty(t, f.ingester.received)
		})
	}
}

func TestSubmitResultsIngestFailure(t *testing.T) {
	f := newFixture()
	f.ingester.err = errors.New("tx aborted")

	rec := f.serve(t, http.MethodPost, "/api/internal/submit-ai-results", `{"analyzed_stories": []}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), "tx aborted")
}

func TestCheckNewSummaries(t *testing.T) {
	f := newFixture()
	f.updates.last = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	rec := f.serve(t, http.MethodGet, "/api/check-new-summaries?lastCheckTime=2025-03-10T08:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", strings.TrimSpace(rec.Body.String()))

	rec = f.serve(t, http.MethodGet, "/api/check-new-summaries?lastCheckTime=2025-03-10T10:00:00", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), f.updates.seen)
}

func TestCheckNewSummariesDefaultsToLastDay(t *testing.T) {
	f := newFixture()

	rec := f.serve(t, http.MethodGet, "/api/check-new-summaries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, fixedNow.Add(-24*time.Hour), f.updates.seen)
}

func TestCheckNewSummariesBadTimestamp(t *testing.T) {
	f := newFixture()

	rec := f.serve(t, http.MethodGet, "/api/check-new-summaries?lastCheckTime=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListStories(t *testing.T) {
	f := newFixture()
	f.stories.clusters = []domain.Cluster{
		{ID: 4, Title: "Rates", Summary: "Banks move", Categories: []string{"Business"}, PublicationDate: fixedNow},
		{ID: 2, Title: "Chips"},
	}

	rec := f.serve(t, http.MethodGet, "/api/stories?category=Business&page=1&size=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []storyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, int64(4), resp[0].ID)
	assert.Equal(t, []string{}, resp[1].Categories)
	assert.Equal(t, "Business", f.stories.gotCategory)
	assert.Equal(t, 1, f.stories.gotPage)
	assert.Equal(t, 5, f.stories.gotSize)
}

func TestListStoriesEmpty(t *testing.T) {
	f := newFixture()

	rec := f.serve(t, http.MethodGet, "/api/stories", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.stories.gotSize)
}

func TestGetStory(t *testing.T) {
	f := newFixture()
	f.stories.detail = usecase.StoryDetail{
		Cluster: domain.Cluster{ID: 9, Title: "Rates"},
		Articles: []domain.PersistedArticle{
			{ID: 1, URL: "https://example.com/a", Title: "A", Source: "The Guardian"},
		},
	}

	rec := f.serve(t, http.MethodGet, "/api/story/9", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp storyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Rates", resp.Title)
	require.Len(t, resp.References, 1)
	assert.Equal(t, "https://example.com/a", resp.References[0].URL)

	assert.Equal(t, http.StatusNotFound, f.serve(t, http.MethodGet, "/api/story/10", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.serve(t, http.MethodGet, "/api/story/abc", "").Code)
}

func TestListNews(t *testing.T) {
	f := newFixture()
	f.stories.news = []domain.PersistedArticle{{ID: 3, URL: "https://example.com/c", Source: "arXiv"}}

	rec := f.serve(t, http.MethodGet, "/api/news?source=arXiv&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []newsItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, int64(3), resp[0].ID)
	assert.Equal(t, "arXiv", f.stories.gotSource)
	assert.Equal(t, 10, f.stories.gotLimit)
}

func TestHealthz(t *testing.T) {
	rec := newFixture().serve(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
