package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

const triggerPath = "/trigger-analysis"

// Client talks to the external analysis service that clusters and summarizes
// stored articles and posts the results back.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ ports.AnalysisTrigger = (*Client)(nil)

// NewClient creates a reusable HTTP client; a zero timeout means 15s.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(strings.TrimSpace(endpoint), "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

// TriggerAnalysis asks the service to start a run. 200 and 202 count as success.
func (c *Client) TriggerAnalysis(ctx context.Context) error {
	if c.endpoint == "" {
		return fmt.Errorf("%w: analysis service url is empty", domain.ErrConfiguration)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+triggerPath, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("%w: unexpected status %s", domain.ErrTransport, resp.Status)
	}
}
