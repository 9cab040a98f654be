package domain

import "time"

// UngroupedClusterTitle marks the reserved cluster holding articles the analysis
// service could not group.
const UngroupedClusterTitle = "UNGROUPED_PLACEHOLDER"

// Cluster is a group of related articles with a generated summary.
type Cluster struct {
	ID              int64
	Title           string
	Summary         string
	Categories      []string
	PublicationDate time.Time
	GeneratedAt     time.Time
}

// IsUngrouped reports whether the cluster is the reserved ungrouped sentinel.
func (c Cluster) IsUngrouped() bool {
	return c.Title == UngroupedClusterTitle
}

// ClusterLink references an article from a cluster. A (ClusterID, ArticleID)
// pair exists at most once.
type ClusterLink struct {
	ClusterID int64
	ArticleID int64
}

// AnalyzedStory is one cluster as produced by the analysis service. Article ids
// arrive as strings and are parsed at ingestion.
type AnalyzedStory struct {
	Title      string
	Summary    string
	Categories []string
	ArticleIDs []string
}

// AnalysisResult is the full payload posted back by the analysis service.
type AnalysisResult struct {
	Stories             []AnalyzedStory
	UngroupedArticleIDs []string
}
