package entity

import "time"

// HistoryRecord is one past transition of a resource: who did what,
// with an optional note. The list is append-only and ordered by the
// backend; the engine renders it and never mutates it.
type HistoryRecord struct {
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
