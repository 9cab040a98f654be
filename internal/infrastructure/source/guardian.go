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
	// GuardianKind is the registry key for the Guardian content API client.
	GuardianKind = "guardian"
	// GuardianSourceName is stored on every Guardian article.
	GuardianSourceName = "The Guardian"

	guardianBaseURL  = "https://content.guardianapis.com/search"
	guardianPageSize = 100
	guardianDateFmt  = "2006-01-02"
)

// GuardianClient walks the Guardian search API, pages starting at 1.
type GuardianClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	maxPages int
	pacer    *scanner.Pacer
	client   *http.Client
	logger   *slog.Logger
}

var _ scanner.SourceClient = (*GuardianClient)(nil)

// NewGuardianClient builds a client; zero options fall back to API defaults.
func NewGuardianClient(opts scanner.Options) scanner.SourceClient {
	c := &GuardianClient{
		baseURL:  firstNonEmpty(opts.BaseURL, guardianBaseURL),
		apiKey:   strings.TrimSpace(opts.APIKey),
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		pacer:    scanner.NewPacer(opts.RequestDelay),
		client:   newHTTPClient(opts.HTTPClient, opts.Timeout),
		logger:   orDefault(opts.Logger),
	}
	if c.pageSize <= 0 {
		c.pageSize = guardianPageSize
	}
	if c.maxPages <= 0 {
		c.maxPages = 20
	}
	return c
}

// Name identifies the provider on stored articles.
func (g *GuardianClient) Name() string {
	return GuardianSourceName
}

// FetchByTopic pages through results for one filter expression, e.g. "section=business".
func (g *GuardianClient) FetchByTopic(ctx context.Context, filter string, start, end time.Time) ([]domain.ArticleRecord, error) {
	if g.apiKey == "" {
		g.logger.Error("guardian api key is missing")
		return nil, fmt.Errorf("%w: guardian api key is missing", domain.ErrConfiguration)
	}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		g.logger.Error("guardian client received an empty filter")
		return nil, nil
	}
	if _, err := g.buildPageURL(filter, start, end, 1); err != nil {
		g.logger.Error("guardian filter rejected", "filter", filter, "error", err)
		return nil, err
	}

	g.logger.Info("start guardian topic", "filter", filter,
		"from", start.Format(guardianDateFmt), "to", end.Format(guardianDateFmt))

	records, _ := scanner.Paginate(ctx, scanner.PaginateParams{
		Source:    GuardianSourceName,
		Topic:     filter,
		FirstPage: 1,
		MaxPages:  g.maxPages,
		Pacer:     g.pacer,
		Logger:    g.logger,
		Observe:   metrics.PageObserver(GuardianSourceName),
	}, func(ctx context.Context, page int) (scanner.Page, error) {
		return g.fetchPage(ctx, filter, start, end, page)
	})
	return records, nil
}

type guardianResponse struct {
	Response *struct {
		Status      string            `json:"status"`
		Total       int               `json:"total"`
		CurrentPage int               `json:"currentPage"`
		Pages       int               `json:"pages"`
		Results     []guardianArticle `json:"results"`
	} `json:"response"`
}

type guardianArticle struct {
	ID                 string `json:"id"`
	WebURL             string `json:"webUrl"`
	WebTitle           string `json:"webTitle"`
	WebPublicationDate string `json:"webPublicationDate"`
	SectionName        string `json:"sectionName"`
}

func (g *GuardianClient) fetchPage(ctx context.Context, filter string, start, end time.Time, page int) (scanner.Page, error) {
	pageURL, err := g.buildPageURL(filter, start, end, page)
	if err != nil {
		return scanner.Page{}, err
	}

	var payload guardianResponse
	if err := getJSON(ctx, g.client, pageURL, &payload); err != nil {
		return scanner.Page{}, err
	}
	if payload.Response == nil {
		return scanner.Page{Structured: false}, nil
	}

	body := payload.Response
	g.logger.Debug("guardian page", "filter", filter, "page", page,
		"total_results", body.Total, "total_pages", body.Pages, "current_page", body.CurrentPage)

	return scanner.Page{
		Records:     g.parseResults(body.Results, filter),
		Structured:  true,
		ResultCount: len(body.Results),
		TotalPages:  body.Pages,
	}, nil
}

func (g *GuardianClient) parseResults(results []guardianArticle, filter string) []domain.ArticleRecord {
	records := make([]domain.ArticleRecord, 0, len(results))
	for _, item := range results {
		link := strings.TrimSpace(item.WebURL)
		if link == "" {
			g.logger.Warn("skip guardian article without url", "filter", filter, "id", firstNonEmpty(item.ID, "N/A"))
			continue
		}
		records = append(records, domain.ArticleRecord{
			URL:         link,
			Title:       cleanText(item.WebTitle),
			PublishedAt: parsePublished(item.WebPublicationDate),
			Section:     strings.TrimSpace(item.SectionName),
			Source:      GuardianSourceName,
		}.WithDefaults())
	}
	return records
}

func (g *GuardianClient) buildPageURL(filter string, start, end time.Time, page int) (string, error) {
	parsed, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid guardian base url %s: %v", domain.ErrConfiguration, g.baseURL, err)
	}
	extra, err := url.ParseQuery(filter)
	if err != nil {
		return "", fmt.Errorf("%w: invalid guardian filter %q: %v", domain.ErrConfiguration, filter, err)
	}

	query := parsed.Query()
	for key, values := range extra {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	query.Set("api-key", g.apiKey)
	query.Set("order-by", "newest")
	query.Set("page-size", strconv.Itoa(g.pageSize))
	query.Set("from-date", start.Format(guardianDateFmt))
	query.Set("to-date", end.Format(guardianDateFmt))
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
