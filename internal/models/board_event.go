package models

import "time"

type BoardChangeType string

const (
	BoardChangeEntryAdded    BoardChangeType = "entry_added"
	BoardChangeEntryMoved    BoardChangeType = "entry_moved"
	BoardChangeNormalized    BoardChangeType = "normalized"
	BoardChangeStatusChanged BoardChangeType = "status_changed"
	BoardChangePriority      BoardChangeType = "priority_changed"
	BoardChangeEntryUpdated  BoardChangeType = "entry_updated"
)

// BoardChangeEvent is published to Redis Pub/Sub after a committed change so
// open boards know to re-read.
type BoardChangeEvent struct {
	TenantID         string          `json:"tenant_id"`
	RidingTypeID     string          `json:"riding_type_id"`
	ChangeType       BoardChangeType `json:"change_type"`
	AffectedEntryIDs []string        `json:"affected_entry_ids,omitempty"`
	Version          int64           `json:"version,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}
