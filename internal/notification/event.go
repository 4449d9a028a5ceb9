// Package notification fans out row change events to realtime subscribers.
package notification

import (
	"context"
	"time"
)

// Tables that emit change events.
const (
	TableFeedback = "citizen_feedback"
	TableMessages = "messages"
)

// Change types.
const (
	TypeInsert = "insert"
	TypeUpdate = "update"
)

// Event describes one row change.
type Event struct {
	Table    string    `json:"table"`
	Type     string    `json:"type"`
	RecordID string    `json:"record_id"`
	OwnerID  string    `json:"owner_id,omitempty"`
	District string    `json:"district,omitempty"`
	Mandal   string    `json:"mandal,omitempty"`
	Village  string    `json:"village,omitempty"`
	At       time.Time `json:"at"`
}

// Filter selects events for a subscriber. Empty fields match anything.
type Filter struct {
	Table    string
	OwnerID  string
	District string
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.OwnerID != "" && f.OwnerID != e.OwnerID {
		return false
	}
	if f.District != "" && f.District != e.District {
		return false
	}
	return true
}

// Publisher accepts change events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
