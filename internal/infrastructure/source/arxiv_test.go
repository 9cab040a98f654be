package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsAggregator/internal/scanner"
)

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	base := "https://export.arxiv.org/list/cs.AI/pastweek"
	u, err := buildPageURL(base, 200, 100)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	if parsed.Scheme != "https" || parsed.Host != "export.arxiv.org" {
		t.Fatalf("unexpected host: %s", parsed.Host)
	}

	q := parsed.Query()
	if q.Get("skip") != "200" {
		t.Fatalf("expected skip=200, got %s", q.Get("skip"))
	}
	if q.Get("show") != "100" {
		t.Fatalf("expected show=100, got %s", q.Get("show"))
	}
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	html := `
	<dl>
	  <dt>
	    <span class="list-identifier"><a href="/abs/1234.56789">arXiv:1234.56789</a></span>
	  </dt>
	  <dd>
	    <div class="list-date">Date: 8 Nov 2025</div>
	    <div class="list-title mathjax">Title: Sample Title</div>
	  </dd>
	</dl>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	client := NewArxivClient(scanner.Options{BaseURL: "https://export.arxiv.org"}).(*ArxivClient)
	record, ok := client.parseEntry(doc.Find("dt").First(), doc.Find("dd").First(), "cs.AI")
	if !ok {
		t.Fatalf("parseEntry rejected a valid entry")
	}

	if record.URL != "https://export.arxiv.org/abs/1234.56789" {
		t.Fatalf("unexpected url: %s", record.URL)
	}
	if record.Title != "Sample Title" {
		t.Fatalf("unexpected title: %s", record.Title)
	}
	if record.Section != "cs.AI" || record.Source != ArxivSourceName {
		t.Fatalf("unexpected section/source: %s/%s", record.Section, record.Source)
	}
	if record.PublishedAt == nil || record.PublishedAt.Format(time.DateOnly) != "2025-11-08" {
		t.Fatalf("unexpected published date: %v", record.PublishedAt)
	}
}

func TestParseEntryWithoutLinkIsSkipped(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<dl><dt>no link</dt><dd></dd></dl>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	client := NewArxivClient(scanner.Options{}).(*ArxivClient)
	if _, ok := client.parseEntry(doc.Find("dt").First(), doc.Find("dd").First(), "cs.AI"); ok {
		t.Fatalf("expected entry without abstract link to be skipped")
	}
}

func TestArxivClientFetchByTopic(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC)
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/list/cs.AI/pastweek" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`
		<dl>
		  <dt><a href="/abs/2501.00001">arXiv:2501.00001</a></dt>
		  <dd>
		    <div class="list-date">Date: 8 Nov 2025</div>
		    <div class="list-title mathjax">Title: Fresh Article</div>
		  </dd>
		  <dt><a href="/abs/2501.00002">arXiv:2501.00002</a></dt>
		  <dd>
		    <div class="list-date">Date: 7 Nov 2025</div>
		    <div class="list-title mathjax">Title: Old Article</div>
		  </dd>
		</dl>`))
	}))
	defer server.Close()

	client := NewArxivClient(scanner.Options{
		BaseURL:    server.URL,
		PageSize:   10,
		HTTPClient: server.Client(),
	})

	records, err := client.FetchByTopic(context.Background(), "cs.AI", day, day)
	if err != nil {
		t.Fatalf("FetchByTopic error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 article, got %d", len(records))
	}
	if records[0].Title != "Fresh Article" {
		t.Fatalf("unexpected title: %s", records[0].Title)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected a single page request, got %d", got)
	}
}
