// Package rest exposes the aggregator over HTTP with echo.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/usecase"
)

// Fetcher starts a guarded aggregation run.
type Fetcher interface {
	Trigger(ctx context.Context) (usecase.RunReport, error)
}

// Ingester stores analysis results.
type Ingester interface {
	Ingest(ctx context.Context, result domain.AnalysisResult) (int, error)
}

// Updates is the live-update side of the notification hub.
type Updates interface {
	Subscribe(ctx context.Context) (<-chan domain.NotificationEvent, func())
	HasNewSince(t time.Time) bool
}

// StoryReader serves the read side.
type StoryReader interface {
	List(ctx context.Context, category string, page, size int) ([]domain.Cluster, error)
	Get(ctx context.Context, id int64) (usecase.StoryDetail, error)
	LatestNews(ctx context.Context, source string, limit int) ([]domain.PersistedArticle, error)
}

// Deps wires the use cases behind the routes.
type Deps struct {
	Fetcher   Fetcher
	Ingester  Ingester
	Updates   Updates
	Stories   StoryReader
	KeepAlive time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

type handler struct {
	fetcher   Fetcher
	ingester  Ingester
	updates   Updates
	stories   StoryReader
	keepAlive time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	// story titles must be non-blank and must not collide with the ungrouped sentinel
	_ = v.RegisterValidation("storytitle", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return title != "" && title != domain.UngroupedClusterTitle
	})
	return &requestValidator{validate: v}
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// NewServer builds the echo instance with every route registered.
func NewServer(deps Deps) *echo.Echo {
	h := &handler{
		fetcher:   deps.Fetcher,
		ingester:  deps.Ingester,
		updates:   deps.Updates,
		stories:   deps.Stories,
		keepAlive: deps.KeepAlive,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if h.keepAlive <= 0 {
		h.keepAlive = 25 * time.Second
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				h.logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			h.logger.Debug("request", attrs...)
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/news/fetch", h.fetchNews)
	api.GET("/news/fetch-reactive", h.fetchNews)
	api.GET("/news", h.listNews)
	api.POST("/internal/submit-ai-results", h.submitResults)
	api.GET("/summary-updates", h.summaryUpdates)
	api.GET("/check-new-summaries", h.checkNewSummaries)
	api.GET("/stories", h.listStories)
	api.GET("/story/:id", h.getStory)

	return e
}
