// Package notification fans out "new summaries available" events to live clients.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/metrics"
	"NewsAggregator/internal/ports"
)

const defaultBuffer = 16

// Hub is the process-wide multicast point for analysis updates. Publish never
// blocks: a subscriber whose buffer is full loses its oldest queued event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan domain.NotificationEvent
	nextID      uint64
	closed      bool

	buffer     int
	lastUpdate atomic.Int64
	logger     *slog.Logger
}

var _ ports.Publisher = (*Hub)(nil)

// NewHub creates a hub whose last update time is its creation time.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		subscribers: make(map[uint64]chan domain.NotificationEvent),
		buffer:      buffer,
		logger:      logger,
	}
	h.lastUpdate.Store(time.Now().UnixNano())
	return h
}

// Subscribe registers a client. The channel is closed when ctx is done, the
// returned cancel func is called, or the hub is closed. Only events published
// after subscribing are delivered.
func (h *Hub) Subscribe(ctx context.Context) (<-chan domain.NotificationEvent, func()) {
	ch := make(chan domain.NotificationEvent, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.HubSubscribers.Set(float64(count))
	h.logger.Debug("subscriber added", "subscriber", id, "subscribers", count)

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			h.remove(id)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return ch, cancel
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	ch, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		close(ch)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		metrics.HubSubscribers.Set(float64(count))
		h.logger.Debug("subscriber removed", "subscriber", id, "subscribers", count)
	}
}

// Publish records at as the last update time and pushes an event to every
// current subscriber.
func (h *Hub) Publish(at time.Time) {
	h.lastUpdate.Store(at.UnixNano())

	event := domain.NotificationEvent{
		ID:        uuid.NewString(),
		Kind:      domain.EventNewSummaries,
		Timestamp: at,
	}

	// the write lock keeps the drop-then-send pair atomic per channel
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		h.logger.Warn("publish on closed hub ignored", "timestamp", at.Format(time.RFC3339))
		return
	}

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
			continue
		default:
		}

		select {
		case <-ch:
			metrics.HubEventsDropped.Inc()
			h.logger.Warn("subscriber buffer full, dropped oldest event", "subscriber", id)
		default:
		}
		select {
		case ch <- event:
		default:
			metrics.HubEventsDropped.Inc()
			h.logger.Warn("subscriber buffer full, dropped event", "subscriber", id)
		}
	}
	h.logger.Info("summary update published", "timestamp", at.Format(time.RFC3339), "subscribers", len(h.subscribers))
}

// HasNewSince reports whether the last update is strictly after t.
func (h *Hub) HasNewSince(t time.Time) bool {
	return h.lastUpdate.Load() > t.UnixNano()
}

// LastUpdate returns the last recorded update time.
func (h *Hub) LastUpdate() time.Time {
	return time.Unix(0, h.lastUpdate.Load())
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close ends every subscription. Later publishes are logged and ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	metrics.HubSubscribers.Set(0)
}
