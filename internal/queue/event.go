// Package queue defines message payloads exchanged over the message broker.
package queue

// RepoEvent is published after a webhook delivery is processed.  It
// contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type RepoEvent struct {
	DeliveryID string `json:"delivery_id"`
	Repository string `json:"repository"`
	Event      string `json:"event"`
	Action     string `json:"action,omitempty"`
	Status     string `json:"status"`
	ReceivedAt string `json:"received_at"`
}
