package storage

import "NewsAggregator/internal/domain"

// ungroupedIndex keeps the ungrouped sentinel a single row.
const ungroupedIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uq_story_clusters_ungrouped ON story_clusters (title) WHERE title = '` +
	domain.UngroupedClusterTitle + `'`

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS news (
		id           BIGSERIAL PRIMARY KEY,
		url          TEXT NOT NULL UNIQUE,
		title        TEXT NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		section      TEXT NOT NULL,
		source       TEXT NOT NULL,
		fetched_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_published_at ON news (published_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_news_source ON news (source)`,
	`CREATE TABLE IF NOT EXISTS story_clusters (
		id               BIGSERIAL PRIMARY KEY,
		title            TEXT NOT NULL,
		summary          TEXT NOT NULL DEFAULT '',
		publication_date TIMESTAMPTZ NOT NULL,
		generated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_story_clusters_title ON story_clusters (title)`,
	ungroupedIndex,
	`CREATE TABLE IF NOT EXISTS story_cluster_categories (
		cluster_id BIGINT NOT NULL REFERENCES story_clusters (id) ON DELETE CASCADE,
		category   TEXT NOT NULL,
		PRIMARY KEY (cluster_id, category)
	)`,
	`CREATE TABLE IF NOT EXISTS story_links (
		id         BIGSERIAL PRIMARY KEY,
		cluster_id BIGINT NOT NULL REFERENCES story_clusters (id) ON DELETE CASCADE,
		news_id    BIGINT NOT NULL REFERENCES news (id) ON DELETE CASCADE,
		UNIQUE (cluster_id, news_id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS news (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		url          TEXT NOT NULL UNIQUE,
		title        TEXT NOT NULL,
		published_at DATETIME NOT NULL,
		section      TEXT NOT NULL,
		source       TEXT NOT NULL,
		fetched_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_published_at ON news (published_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_news_source ON news (source)`,
	`CREATE TABLE IF NOT EXISTS story_clusters (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		title            TEXT NOT NULL,
		summary          TEXT NOT NULL DEFAULT '',
		publication_date DATETIME NOT NULL,
		generated_at     DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_story_clusters_title ON story_clusters (title)`,
	ungroupedIndex,
	`CREATE TABLE IF NOT EXISTS story_cluster_categories (
		cluster_id INTEGER NOT NULL REFERENCES story_clusters (id) ON DELETE CASCADE,
		category   TEXT NOT NULL,
		PRIMARY KEY (cluster_id, category)
	)`,
	`CREATE TABLE IF NOT EXISTS story_links (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		cluster_id INTEGER NOT NULL REFERENCES story_clusters (id) ON DELETE CASCADE,
		news_id    INTEGER NOT NULL REFERENCES news (id) ON DELETE CASCADE,
		UNIQUE (cluster_id, news_id)
	)`,
}
