package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/metrics"
	"NewsAggregator/internal/scanner"
)

const (
	// ArxivKind is the registry key for the arXiv listing scanner.
	ArxivKind = "arxiv"
	// ArxivSourceName is stored on every arXiv article.
	ArxivSourceName = "arXiv"

	arxivBaseURL = "https://export.arxiv.org"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivClient crawls category listing pages. The filter expression is a
// category such as "cs.AI" or a full listing URL. Page N maps to
// skip=N*pageSize; a short page is the last one.
type ArxivClient struct {
	baseURL  string
	pageSize int
	maxPages int
	pacer    *scanner.Pacer
	client   *http.Client
	logger   *slog.Logger
}

var _ scanner.SourceClient = (*ArxivClient)(nil)

// NewArxivClient wires an HTTP client; pageSize defaults to 200. arXiv needs no API key.
func NewArxivClient(opts scanner.Options) scanner.SourceClient {
	a := &ArxivClient{
		baseURL:  firstNonEmpty(opts.BaseURL, arxivBaseURL),
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		pacer:    scanner.NewPacer(opts.RequestDelay),
		client:   newHTTPClient(opts.HTTPClient, opts.Timeout),
		logger:   orDefault(opts.Logger),
	}
	if a.pageSize <= 0 {
		a.pageSize = 200
	}
	if a.maxPages <= 0 {
		a.maxPages = 20
	}
	return a
}

// Name identifies the provider on stored articles.
func (a *ArxivClient) Name() string {
	return ArxivSourceName
}

// FetchByTopic walks one category listing and keeps entries dated inside [start, end].
func (a *ArxivClient) FetchByTopic(ctx context.Context, filter string, start, end time.Time) ([]domain.ArticleRecord, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		a.logger.Error("arxiv client received an empty category")
		return nil, nil
	}
	listURL := a.listingURL(filter)
	if _, err := buildPageURL(listURL, 0, a.pageSize); err != nil {
		return nil, fmt.Errorf("%w: category %s: %v", domain.ErrConfiguration, filter, err)
	}

	firstDay := start.UTC().Truncate(24 * time.Hour)
	lastDay := end.UTC().Truncate(24 * time.Hour)

	records, _ := scanner.Paginate(ctx, scanner.PaginateParams{
		Source:    ArxivSourceName,
		Topic:     filter,
		FirstPage: 0,
		MaxPages:  a.maxPages,
		Pacer:     a.pacer,
		Logger:    a.logger,
		Observe:   metrics.PageObserver(ArxivSourceName),
	}, func(ctx context.Context, page int) (scanner.Page, error) {
		pageURL, err := buildPageURL(listURL, page*a.pageSize, a.pageSize)
		if err != nil {
			return scanner.Page{}, err
		}
		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return scanner.Page{}, err
		}
		return a.extractArticles(doc, firstDay, lastDay, filter), nil
	})
	return records, nil
}

func (a *ArxivClient) listingURL(filter string) string {
	if strings.HasPrefix(filter, "http://") || strings.HasPrefix(filter, "https://") {
		return filter
	}
	return strings.TrimSuffix(a.baseURL, "/") + "/list/" + filter + "/pastweek"
}

func (a *ArxivClient) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := get(ctx, a.client, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", domain.ErrParse, err)
	}
	return doc, nil
}

func (a *ArxivClient) extractArticles(doc *goquery.Document, firstDay, lastDay time.Time, category string) scanner.Page {
	page := scanner.Page{Structured: doc.Find("dl").Length() > 0}
	if !page.Structured {
		return page
	}

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		page.ResultCount++

		record, ok := a.parseEntry(dt, dt.Next(), category)
		if !ok {
			return true
		}
		if record.PublishedAt == nil {
			page.Records = append(page.Records, record)
			return true
		}

		day := record.PublishedAt.UTC().Truncate(24 * time.Hour)
		if day.Before(firstDay) {
			// listings are newest first, nothing older is wanted
			page.Last = true
			return false
		}
		if !day.After(lastDay) {
			page.Records = append(page.Records, record)
		}
		return true
	})

	if page.ResultCount < a.pageSize {
		page.Last = true
	}
	return page
}

func (a *ArxivClient) parseEntry(dt, dd *goquery.Selection, category string) (domain.ArticleRecord, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		a.logger.Warn("skip arxiv entry without abstract link", "category", category)
		return domain.ArticleRecord{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(a.baseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	var publishedAt *time.Time
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = &parsed
		}
	}

	return domain.ArticleRecord{
		URL:         href,
		Title:       title,
		PublishedAt: publishedAt,
		Section:     category,
		Source:      ArxivSourceName,
	}.WithDefaults(), true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
