// Package redelivery drains a journal of events whose initial publish
// exhausted its retries. The journal is a backstop behind the in-request
// publish path, not the primary delivery mechanism.
package redelivery

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is one journaled publish failure awaiting redelivery.
type Event struct {
	ID          int64
	OrderNumber string
	Payload     []byte
	Status      Status
	RetryCount  int
	LastError   *string
	CreatedAt   time.Time
}
