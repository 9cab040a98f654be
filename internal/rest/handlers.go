package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"NewsAggregator/internal/domain"
)

const pollDefaultWindow = 24 * time.Hour

// fetchNews runs one aggregation synchronously. The run outlives the request:
// a client that disconnects or times out does not abort it.
func (h *handler) fetchNews(c echo.Context) error {
	report, err := h.fetcher.Trigger(context.WithoutCancel(c.Request().Context()))
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		h.logger.Error("manual aggregation failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "news fetching failed: " + err.Error()})
	}

	message := fmt.Sprintf("news fetching completed, %d new articles saved", report.Saved)
	if report.Saved == 0 {
		message = "news fetching completed, no new articles"
	}
	return c.JSON(http.StatusOK, fetchResponse{
		Message:      message,
		RunID:        report.RunID,
		FetchedCount: report.Fetched,
		SavedCount:   report.Saved,
		PerSource:    report.PerSource,
		DurationMS:   report.Duration.Milliseconds(),
	})
}

// submitResults accepts the analysis service's callback.
func (h *handler) submitResults(c echo.Context) error {
	var req analysisResultRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, submitResponse{Message: "malformed payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, submitResponse{Message: err.Error()})
	}

	h.logger.Info("analysis results received", "stories", len(req.AnalyzedStories), "ungrouped", len(req.UngroupedNewsIDs))
	saved, err := h.ingester.Ingest(c.Request().Context(), req.toDomain())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, submitResponse{Message: "processing error: " + err.Error()})
	}

	return c.JSON(http.StatusOK, submitResponse{
		Success:            true,
		Message:            "analysis results saved",
		SavedStoriesCount:  saved,
		UngroupedNewsCount: len(req.UngroupedNewsIDs),
	})
}

// checkNewSummaries answers whether results landed after lastCheckTime.
func (h *handler) checkNewSummaries(c echo.Context) error {
	since := h.now().Add(-pollDefaultWindow)
	if raw := strings.TrimSpace(c.QueryParam("lastCheckTime")); raw != "" {
		parsed, err := parseCheckTime(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "lastCheckTime must be an ISO-8601 timestamp"})
		}
		since = parsed
	}
	return c.JSON(http.StatusOK, h.updates.HasNewSince(since))
}

// parseCheckTime accepts RFC 3339 and zone-less local timestamps, read as UTC.
func parseCheckTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", raw)
}

func (h *handler) listStories(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	clusters, err := h.stories.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("category")), page, size)
	if err != nil {
		h.logger.Error("list stories failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not load stories"})
	}
	if len(clusters) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	out := make([]storyResponse, 0, len(clusters))
	for _, cluster := range clusters {
		out = append(out, toStoryResponse(cluster))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) getStory(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "story id must be an integer"})
	}

	detail, err := h.stories.Get(c.Request().Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "story not found"})
	case err != nil:
		h.logger.Error("load story failed", "id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not load story"})
	}

	resp := toStoryResponse(detail.Cluster)
	resp.References = toNewsItems(detail.Articles)
	return c.JSON(http.StatusOK, resp)
}

func (h *handler) listNews(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	articles, err := h.stories.LatestNews(c.Request().Context(), strings.TrimSpace(c.QueryParam("source")), limit)
	if err != nil {
		h.logger.Error("list news failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not load news"})
	}
	return c.JSON(http.StatusOK, toNewsItems(articles))
}
