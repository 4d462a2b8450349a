// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationEvent is published when the transaction lifecycle wants
// to tell a user something: payment approved, payment rejected. It
// carries the full message so downstream consumers can deliver it
// without querying the primary database.
type NotificationEvent struct {
	UserID  uint64 `json:"user_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
}
