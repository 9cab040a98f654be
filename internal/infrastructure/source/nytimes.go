package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/metrics"
	"NewsAggregator/internal/scanner"
)

const (
	// NYTimesKind is the registry key for the NYT article search client.
	NYTimesKind = "nytimes"
	// NYTimesSourceName is stored on every NYT article.
	NYTimesSourceName = "The New York Times"

	nytBaseURL  = "https://api.nytimes.com/svc/search/v2/articlesearch.json"
	nytPageSize = 10
	nytDateFmt  = "20060102"
)

// NYTimesClient walks the article search API, pages starting at 0. The API
// returns a fixed ten documents per page.
type NYTimesClient struct {
	baseURL  string
	apiKey   string
	maxPages int
	pacer    *scanner.Pacer
	client   *http.Client
	logger   *slog.Logger
}

var _ scanner.SourceClient = (*NYTimesClient)(nil)

// NewNYTimesClient builds a client; page size options are ignored.
func NewNYTimesClient(opts scanner.Options) scanner.SourceClient {
	c := &NYTimesClient{
		baseURL:  firstNonEmpty(opts.BaseURL, nytBaseURL),
		apiKey:   strings.TrimSpace(opts.APIKey),
		maxPages: opts.MaxPages,
		pacer:    scanner.NewPacer(opts.RequestDelay),
		client:   newHTTPClient(opts.HTTPClient, opts.Timeout),
		logger:   orDefault(opts.Logger),
	}
	if c.maxPages <= 0 {
		c.maxPages = 20
	}
	return c
}

// Name identifies the provider on stored articles.
func (n *NYTimesClient) Name() string {
	return NYTimesSourceName
}

// FetchByTopic pages through results for one fq expression.
func (n *NYTimesClient) FetchByTopic(ctx context.Context, filter string, start, end time.Time) ([]domain.ArticleRecord, error) {
	if n.apiKey == "" {
		n.logger.Error("nytimes api key is missing")
		return nil, fmt.Errorf("%w: nytimes api key is missing", domain.ErrConfiguration)
	}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		n.logger.Error("nytimes client received an empty filter")
		return nil, nil
	}
	if _, err := url.Parse(n.baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid nytimes base url %s: %v", domain.ErrConfiguration, n.baseURL, err)
	}

	n.logger.Info("start nytimes topic", "filter", filter,
		"from", start.Format(nytDateFmt), "to", end.Format(nytDateFmt))

	records, _ := scanner.Paginate(ctx, scanner.PaginateParams{
		Source:    NYTimesSourceName,
		Topic:     filter,
		FirstPage: 0,
		MaxPages:  n.maxPages,
		Pacer:     n.pacer,
		Logger:    n.logger,
		Observe:   metrics.PageObserver(NYTimesSourceName),
	}, func(ctx context.Context, page int) (scanner.Page, error) {
		return n.fetchPage(ctx, filter, start, end, page)
	})
	return records, nil
}

type nytResponse struct {
	Status   string `json:"status"`
	Response *struct {
		Docs []nytDoc `json:"docs"`
		Meta *struct {
			Hits   int `json:"hits"`
			Offset int `json:"offset"`
		} `json:"meta"`
	} `json:"response"`
}

type nytDoc struct {
	ID       string `json:"_id"`
	WebURL   string `json:"web_url"`
	Headline struct {
		Main string `json:"main"`
	} `json:"headline"`
	PubDate     string `json:"pub_date"`
	SectionName string `json:"section_name"`
	NewsDesk    string `json:"news_desk"`
}

func (n *NYTimesClient) fetchPage(ctx context.Context, filter string, start, end time.Time, page int) (scanner.Page, error) {
	var payload nytResponse
	if err := getJSON(ctx, n.client, n.buildPageURL(filter, start, end, page), &payload); err != nil {
		return scanner.Page{}, err
	}
	if payload.Response == nil {
		return scanner.Page{Structured: false}, nil
	}

	body := payload.Response
	result := scanner.Page{
		Records:     n.parseDocs(body.Docs, filter),
		Structured:  true,
		ResultCount: len(body.Docs),
	}
	if body.Meta != nil && body.Meta.Hits > 0 {
		result.Last = (page+1)*nytPageSize >= body.Meta.Hits
		n.logger.Debug("nytimes page", "filter", filter, "page", page, "hits", body.Meta.Hits)
	}
	return result, nil
}

func (n *NYTimesClient) parseDocs(docs []nytDoc, filter string) []domain.ArticleRecord {
	records := make([]domain.ArticleRecord, 0, len(docs))
	for _, doc := range docs {
		link := strings.TrimSpace(doc.WebURL)
		if link == "" {
			n.logger.Warn("skip nytimes article without url", "filter", filter, "id", firstNonEmpty(doc.ID, "N/A"))
			continue
		}
		records = append(records, domain.ArticleRecord{
			URL:         link,
			Title:       cleanText(doc.Headline.Main),
			PublishedAt: parsePublished(doc.PubDate),
			Section:     firstNonEmpty(doc.SectionName, doc.NewsDesk),
			Source:      NYTimesSourceName,
		}.WithDefaults())
	}
	return records
}

func (n *NYTimesClient) buildPageURL(filter string, start, end time.Time, page int) string {
	parsed, _ := url.Parse(n.baseURL)
	query := parsed.Query()
	query.Set("api-key", n.apiKey)
	query.Set("fq", filter)
	query.Set("sort", "newest")
	query.Set("page", strconv.Itoa(page))
	query.Set("begin_date", start.Format(nytDateFmt))
	query.Set("end_date", end.Format(nytDateFmt))
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
