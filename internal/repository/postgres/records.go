package postgres

import (
	"time"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
)

// partitionRecord is the per-partition serialization point. Every committed
// ordering change bumps Version.
type partitionRecord struct {
	TenantID     string `gorm:"type:varchar(64);primaryKey"`
	RidingTypeID string `gorm:"type:varchar(64);primaryKey"`
	Version      int64  `gorm:"not null;default:0"`
}

func (partitionRecord) TableName() string { return "waitlist_partitions" }

type entryRecord struct {
	ID                    string  `gorm:"type:varchar(64);primaryKey"`
	TenantID              string  `gorm:"type:varchar(64);not null;index:idx_waitlist_entries_partition,priority:1;index:idx_waitlist_entries_parent,priority:1"`
	RidingTypeID          string  `gorm:"type:varchar(64);not null;index:idx_waitlist_entries_partition,priority:2"`
	ParentID              string  `gorm:"type:varchar(64);not null;index:idx_waitlist_entries_parent,priority:2"`
	ChildID               string  `gorm:"type:varchar(64);not null"`
	RequestedDay          *string `gorm:"type:varchar(10)"`
	TimeWindowStart       *string `gorm:"type:varchar(5)"`
	TimeWindowEnd         *string `gorm:"type:varchar(5)"`
	PreferredInstructorID *string `gorm:"type:varchar(64)"`
	PreferredArenaID      *string `gorm:"type:varchar(64)"`
	PreferredHorseID      *string `gorm:"type:varchar(64)"`
	Priority              int     `gorm:"not null;default:0"`
	Position              int64   `gorm:"not null"`
	Status                string  `gorm:"type:varchar(16);not null;index:idx_waitlist_entries_partition,priority:3"`
	Notes                 string  `gorm:"type:text;not null;default:''"`
	LastContactedAt       *time.Time
	LinkedOccurrenceID    *string    `gorm:"type:varchar(64)"`
	OfferExpiresAt        *time.Time `gorm:"index"`
	OfferToken            *string    `gorm:"type:text"`
	CreatedAt             time.Time  `gorm:"not null"`
	CreatedBy             string     `gorm:"type:varchar(64);not null"`
	UpdatedAt             time.Time  `gorm:"not null"`
}

func (entryRecord) TableName() string { return "waitlist_entries" }

type ridingTypeRecord struct {
	ID              string `gorm:"type:varchar(64);primaryKey"`
	TenantID        string `gorm:"type:varchar(64);not null;index"`
	Code            string `gorm:"type:varchar(32);not null"`
	Name            string `gorm:"type:varchar(128);not null"`
	Description     string `gorm:"type:text;not null;default:''"`
	MinParticipants int    `gorm:"not null;default:0"`
	MaxParticipants int    `gorm:"not null;default:0"`
	Active          bool   `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ridingTypeRecord) TableName() string { return "riding_types" }

func toEntryRecord(e models.Entry) entryRecord {
	return entryRecord{
		ID:                    e.ID,
		TenantID:              e.TenantID,
		RidingTypeID:          e.RidingTypeID,
		ParentID:              e.ParentID,
		ChildID:               e.ChildID,
		RequestedDay:          e.Preferences.RequestedDay,
		TimeWindowStart:       e.Preferences.TimeWindowStart,
		TimeWindowEnd:         e.Preferences.TimeWindowEnd,
		PreferredInstructorID: e.Preferences.PreferredInstructorID,
		PreferredArenaID:      e.Preferences.PreferredArenaID,
		PreferredHorseID:      e.Preferences.PreferredHorseID,
		Priority:              e.Priority,
		Position:              e.Position,
		Status:                string(e.Status),
		Notes:                 e.Notes,
		LastContactedAt:       e.LastContactedAt,
		LinkedOccurrenceID:    nullable(e.Offer.LinkedOccurrenceID),
		OfferExpiresAt:        e.Offer.ExpiresAt,
		OfferToken:            nullable(e.Offer.Token),
		CreatedAt:             e.CreatedAt,
		CreatedBy:             e.CreatedBy,
		UpdatedAt:             e.UpdatedAt,
	}
}

func (r entryRecord) toModel() models.Entry {
	return models.Entry{
		ID:           r.ID,
		TenantID:     r.TenantID,
		RidingTypeID: r.RidingTypeID,
		ParentID:     r.ParentID,
		ChildID:      r.ChildID,
		Preferences: models.Preferences{
			RequestedDay:          r.RequestedDay,
			TimeWindowStart:       r.TimeWindowStart,
			TimeWindowEnd:         r.TimeWindowEnd,
			PreferredInstructorID: r.PreferredInstructorID,
			PreferredArenaID:      r.PreferredArenaID,
			PreferredHorseID:      r.PreferredHorseID,
		},
		Priority:        r.Priority,
		Position:        r.Position,
		Status:          models.EntryStatus(r.Status),
		Notes:           r.Notes,
		LastContactedAt: r.LastContactedAt,
		Offer: models.Offer{
			LinkedOccurrenceID: deref(r.LinkedOccurrenceID),
			ExpiresAt:          r.OfferExpiresAt,
			Token:              deref(r.OfferToken),
		},
		CreatedAt: r.CreatedAt,
		CreatedBy: r.CreatedBy,
		UpdatedAt: r.UpdatedAt,
	}
}

// patchColumns maps a patch to the columns it sets, so a write never
// touches fields it did not change.
func patchColumns(p models.EntryPatch, updatedAt time.Time) map[string]interface{} {
	cols := map[string]interface{}{"updated_at": updatedAt}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		cols["priority"] = *p.Priority
	}
	if p.Position != nil {
		cols["position"] = *p.Position
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	if p.LastContactedAt != nil {
		cols["last_contacted_at"] = *p.LastContactedAt
	}
	if p.ClearOffer {
		cols["linked_occurrence_id"] = nil
		cols["offer_token"] = nil
		if !p.KeepOfferExpiry {
			cols["offer_expires_at"] = nil
		}
	}
	if p.Offer != nil {
		cols["linked_occurrence_id"] = nullable(p.Offer.LinkedOccurrenceID)
		cols["offer_expires_at"] = p.Offer.ExpiresAt
		cols["offer_token"] = nullable(p.Offer.Token)
	}
	return cols
}

func toRidingTypeRecord(rt models.RidingType) ridingTypeRecord {
	return ridingTypeRecord{
		ID:              rt.ID,
		TenantID:        rt.TenantID,
		Code:            rt.Code,
		Name:            rt.Name,
		Description:     rt.Description,
		MinParticipants: rt.MinParticipants,
		MaxParticipants: rt.MaxParticipants,
		Active:          rt.Active,
		CreatedAt:       rt.CreatedAt,
		UpdatedAt:       rt.UpdatedAt,
	}
}

func (r ridingTypeRecord) toModel() models.RidingType {
	return models.RidingType{
		ID:              r.ID,
		TenantID:        r.TenantID,
		Code:            r.Code,
		Name:            r.Name,
		Description:     r.Description,
		MinParticipants: r.MinParticipants,
		MaxParticipants: r.MaxParticipants,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
