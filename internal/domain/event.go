package domain

import "time"

// EventNewSummaries is the event name pushed to live clients.
const EventNewSummaries = "new_summaries_available"

// NotificationEvent tells subscribers that new analysis results landed.
type NotificationEvent struct {
	ID        string
	Kind      string
	Timestamp time.Time
}
