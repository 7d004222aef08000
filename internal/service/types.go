package service

import (
	"time"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
)

type SaveRidingTypeInput struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	MinParticipants int    `json:"min_participants"`
	MaxParticipants int    `json:"max_participants"`
	Active          bool   `json:"active"`
}

type ListEntriesInput struct {
	RidingTypeID string               `json:"riding_type_id"`
	Statuses     []models.EntryStatus `json:"statuses,omitempty"`
	RequestedDay *string              `json:"requested_day,omitempty"`
}

// Board is one partition's entries in display order together with the
// partition version they were read at.
type Board struct {
	RidingTypeID string         `json:"riding_type_id"`
	Version      int64          `json:"version"`
	Entries      []models.Entry `json:"entries"`
}

type AddEntryInput struct {
	ParentID     string             `json:"parent_id"`
	ChildID      string             `json:"child_id"`
	RidingTypeID string             `json:"riding_type_id"`
	Preferences  models.Preferences `json:"preferences"`
	Notes        string             `json:"notes,omitempty"`
}

// MoveEntryInput places EntryID directly after BeforeID or directly before
// AfterID. Empty ids mean the edge of the list.
type MoveEntryInput struct {
	EntryID         string `json:"entry_id"`
	BeforeID        string `json:"before_id,omitempty"`
	AfterID         string `json:"after_id,omitempty"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type MoveEntryOutput struct {
	Entry   models.Entry `json:"entry"`
	Version int64        `json:"version"`
}

type SetStatusInput struct {
	EntryID      string             `json:"entry_id"`
	Status       models.EntryStatus `json:"status"`
	OfferToken   string             `json:"offer_token,omitempty"`
	OccurrenceID string             `json:"occurrence_id,omitempty"`
}

type OfferNextInput struct {
	RidingTypeID string  `json:"riding_type_id"`
	OccurrenceID string  `json:"occurrence_id"`
	RequestedDay *string `json:"requested_day,omitempty"`
}

type SlotReleasedInput struct {
	TenantID     string
	RidingTypeID string
	OccurrenceID string
	RequestedDay *string
	ReleasedAt   time.Time
}
