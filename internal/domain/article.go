package domain

import (
	"strings"
	"time"
)

const (
	// PlaceholderTitle replaces blank headlines.
	PlaceholderTitle = "No title"
	// PlaceholderSection replaces blank section/category names.
	PlaceholderSection = "Other"
)

// ArticleRecord is an article parsed from a provider page, not yet persisted.
// URL is the only deduplication key; records without one are never emitted.
type ArticleRecord struct {
	URL         string
	Title       string
	PublishedAt *time.Time
	Section     string
	Source      string
}

// WithDefaults fills blank title and section with placeholders.
func (r ArticleRecord) WithDefaults() ArticleRecord {
	if strings.TrimSpace(r.Title) == "" {
		r.Title = PlaceholderTitle
	}
	if strings.TrimSpace(r.Section) == "" {
		r.Section = PlaceholderSection
	}
	return r
}

// PersistedArticle is a stored ArticleRecord. One row exists per distinct URL.
type PersistedArticle struct {
	ID          int64
	URL         string
	Title       string
	PublishedAt time.Time
	Section     string
	Source      string
	FetchedAt   time.Time
}

// TopicFilter maps a configured topic key to the provider-specific query expression.
type TopicFilter struct {
	SourceName string
	TopicKey   string
	Expression string
}

// FetchCursor tracks pagination state for one source/topic run.
type FetchCursor struct {
	Page      int
	KeepGoing bool
}

// Advance moves the cursor to the next page.
func (c *FetchCursor) Advance() {
	c.Page++
}

// Stop marks the cursor as finished.
func (c *FetchCursor) Stop() {
	c.KeepGoing = false
}
