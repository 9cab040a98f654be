package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

const digestStories = 5

// DigestRelay forwards every hub event to an outbound notifier as a short
// list of the newest stories.
type DigestRelay struct {
	stories  *Stories
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewDigestRelay wires the read side with a notifier.
func NewDigestRelay(stories *Stories, notifier ports.Notifier, logger *slog.Logger) *DigestRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestRelay{stories: stories, notifier: notifier, logger: logger}
}

// Run consumes events until the channel closes or ctx is done. Delivery
// failures are logged only.
func (r *DigestRelay) Run(ctx context.Context, events <-chan domain.NotificationEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := r.deliver(ctx, event); err != nil {
				r.logger.Warn("digest delivery failed", "event", event.ID, "error", err)
			}
		}
	}
}

func (r *DigestRelay) deliver(ctx context.Context, event domain.NotificationEvent) error {
	latest, err := r.stories.List(ctx, "", 0, digestStories)
	if err != nil {
		return err
	}
	if len(latest) == 0 {
		return nil
	}

	if err := r.notifier.PublishDigest(ctx, buildDigestMessage(event.Timestamp, latest)); err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}
	r.logger.Info("digest delivered", "event", event.ID, "stories", len(latest))
	return nil
}

func buildDigestMessage(at time.Time, clusters []domain.Cluster) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*New summaries* (%s)\n\n", at.UTC().Format("2006-01-02 15:04 MST"))
	for _, c := range clusters {
		fmt.Fprintf(&b, "- %s\n", c.Title)
		if c.Summary != "" {
			fmt.Fprintf(&b, "%s\n", c.Summary)
		}
		if len(c.Categories) > 0 {
			fmt.Fprintf(&b, "_%s_\n", strings.Join(c.Categories, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
