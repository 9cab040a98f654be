package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/scanner"
)

type pageLog struct {
	mu    sync.Mutex
	pages []int
}

func (l *pageLog) add(page int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pages = append(l.pages, page)
}

func (l *pageLog) snapshot() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.pages...)
}

func guardianPage(results string, pages int) string {
	return fmt.Sprintf(`{"response":{"status":"ok","total":3,"currentPage":1,"pages":%d,"results":[%s]}}`, pages, results)
}

func TestGuardianClientStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	log := &pageLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		log.add(page)

		assert.Equal(t, "secret", r.URL.Query().Get("api-key"))
		assert.Equal(t, "business", r.URL.Query().Get("section"))
		assert.Equal(t, "newest", r.URL.Query().Get("order-by"))

		switch page {
		case 1:
			_, _ = w.Write([]byte(guardianPage(`
				{"id":"a","webUrl":"https://g.example/a","webTitle":"Markets &amp; rates","webPublicationDate":"2024-03-01T10:00:00Z","sectionName":"Business"},
				{"id":"b","webUrl":"","webTitle":"no url"},
				{"id":"c","webUrl":"https://g.example/c","webTitle":"","webPublicationDate":"bad","sectionName":""}`, 5)))
		default:
			_, _ = w.Write([]byte(guardianPage("", 5)))
		}
	}))
	defer server.Close()

	client := NewGuardianClient(scanner.Options{
		BaseURL:    server.URL,
		APIKey:     "secret",
		HTTPClient: server.Client(),
	})

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records, err := client.FetchByTopic(context.Background(), "section=business", start, start.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, log.snapshot())
	require.Len(t, records, 2)

	assert.Equal(t, "https://g.example/a", records[0].URL)
	assert.Equal(t, "Markets & rates", records[0].Title)
	assert.Equal(t, "Business", records[0].Section)
	assert.Equal(t, GuardianSourceName, records[0].Source)
	require.NotNil(t, records[0].PublishedAt)

	assert.Equal(t, domain.PlaceholderTitle, records[1].Title)
	assert.Equal(t, domain.PlaceholderSection, records[1].Section)
	assert.Nil(t, records[1].PublishedAt)
}

func TestGuardianClientStopsAtDeclaredLastPage(t *testing.T) {
	t.Parallel()

	log := &pageLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		log.add(page)
		item := fmt.Sprintf(`{"id":"x","webUrl":"https://g.example/%d","webTitle":"t"}`, page)
		_, _ = w.Write([]byte(guardianPage(item, 2)))
	}))
	defer server.Close()

	client := NewGuardianClient(scanner.Options{BaseURL: server.URL, APIKey: "k", HTTPClient: server.Client()})
	records, err := client.FetchByTopic(context.Background(), "q=climate", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, log.snapshot())
	assert.Len(t, records, 2)
}

func TestGuardianClientKeepsRecordsBeforeTransportError(t *testing.T) {
	t.Parallel()

	log := &pageLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		log.add(page)
		if page == 2 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(guardianPage(`{"id":"a","webUrl":"https://g.example/a","webTitle":"t"}`, 10)))
	}))
	defer server.Close()

	client := NewGuardianClient(scanner.Options{BaseURL: server.URL, APIKey: "k", HTTPClient: server.Client()})
	records, err := client.FetchByTopic(context.Background(), "section=world", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, log.snapshot())
	assert.Len(t, records, 1)
}

func TestGuardianClientStopsOnMissingResponseEnvelope(t *testing.T) {
	t.Parallel()

	log := &pageLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		log.add(page)
		_, _ = w.Write([]byte(`{"message":"unexpected"}`))
	}))
	defer server.Close()

	client := NewGuardianClient(scanner.Options{BaseURL: server.URL, APIKey: "k", HTTPClient: server.Client()})
	records, err := client.FetchByTopic(context.Background(), "section=world", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	assert.Empty(t, records)
	assert.Equal(t, []int{1}, log.snapshot())
}

func TestGuardianClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	client := NewGuardianClient(scanner.Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.FetchByTopic(context.Background(), "section=business", time.Now(), time.Now())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestGuardianClientRespectsPageCap(t *testing.T) {
	t.Parallel()

	log := &pageLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		log.add(page)
		_, _ = w.Write([]byte(guardianPage(fmt.Sprintf(`{"id":"x","webUrl":"https://g.example/%d"}`, page), 0)))
	}))
	defer server.Close()

	client := NewGuardianClient(scanner.Options{BaseURL: server.URL, APIKey: "k", MaxPages: 3, HTTPClient: server.Client()})
	records, err := client.FetchByTopic(context.Background(), "section=world", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, log.snapshot())
	assert.Len(t, records, 3)
}
