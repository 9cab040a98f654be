package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// summaryUpdates streams new_summaries_available events until the client leaves.
func (h *handler) summaryUpdates(c echo.Context) error {
	ctx := c.Request().Context()
	events, cancel := h.updates.Subscribe(ctx)
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, uuid.NewString(), "connect", summaryEvent{Timestamp: h.now().UTC().Format(time.RFC3339)}); err != nil {
		return nil
	}
	h.logger.Debug("summary stream opened", "remote", c.RealIP())

	heartbeat := time.NewTicker(h.keepAlive)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("summary stream closed by client", "remote", c.RealIP())
			return nil
		case <-heartbeat.C:
			if _, err := res.Write([]byte(": keep-alive\n\n")); err != nil {
				return nil
			}
			res.Flush()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			payload := summaryEvent{Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano)}
			if err := writeEvent(res, event.ID, event.Kind, payload); err != nil {
				h.logger.Debug("summary stream write failed", "error", err)
				return nil
			}
		}
	}
}

func writeEvent(res *echo.Response, id, name string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "id: %s\nevent: %s\ndata: %s\n\n", id, name, body); err != nil {
		return err
	}
	res.Flush()
	return nil
}
