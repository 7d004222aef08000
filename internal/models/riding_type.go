package models

import "time"

// RidingType is the activity category that defines a waitlist partition.
type RidingType struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	MinParticipants int       `json:"min_participants"`
	MaxParticipants int       `json:"max_participants"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
