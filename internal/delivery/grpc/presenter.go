package grpc

import "github.com/vogiaan1904/farm-waitlist/internal/models"

// Request and response messages that are not plain service inputs.

type ListRidingTypesRequest struct{}

type ListRidingTypesResponse struct {
	RidingTypes []models.RidingType `json:"riding_types"`
}

type EntryRequest struct {
	EntryID string `json:"entry_id"`
}

type ListMyEntriesRequest struct {
	ParentID string `json:"parent_id,omitempty"`
}

type EntriesResponse struct {
	Entries []models.Entry `json:"entries"`
}

type SetPriorityRequest struct {
	EntryID  string `json:"entry_id"`
	Priority int    `json:"priority"`
}

type SetNotesRequest struct {
	EntryID string `json:"entry_id"`
	Notes   string `json:"notes"`
}

type RidingTypeRequest struct {
	RidingTypeID string `json:"riding_type_id"`
}

type NormalizeResponse struct {
	RidingTypeID string `json:"riding_type_id"`
	Version      int64  `json:"version"`
}
