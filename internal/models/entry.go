package models

import (
	"sort"
	"time"
)

// PartitionKey scopes waitlist ordering. Entries in different partitions are
// never compared.
type PartitionKey struct {
	TenantID     string `json:"tenant_id"`
	RidingTypeID string `json:"riding_type_id"`
}

// Preferences are soft match criteria; the engine stores them but does not
// enforce them.
type Preferences struct {
	RequestedDay          *string `json:"requested_day,omitempty"`
	TimeWindowStart       *string `json:"time_window_start,omitempty"`
	TimeWindowEnd         *string `json:"time_window_end,omitempty"`
	PreferredInstructorID *string `json:"preferred_instructor_id,omitempty"`
	PreferredArenaID      *string `json:"preferred_arena_id,omitempty"`
	PreferredHorseID      *string `json:"preferred_horse_id,omitempty"`
}

// Offer is only populated while an entry is offered.
type Offer struct {
	LinkedOccurrenceID string     `json:"linked_occurrence_id,omitempty"`
	ExpiresAt          *time.Time `json:"offer_expires_at,omitempty"`
	Token              string     `json:"offer_token,omitempty"`
}

type Entry struct {
	ID              string      `json:"id"`
	TenantID        string      `json:"tenant_id"`
	RidingTypeID    string      `json:"riding_type_id"`
	ParentID        string      `json:"parent_id"`
	ChildID         string      `json:"child_id"`
	Preferences     Preferences `json:"preferences"`
	Priority        int         `json:"priority"`
	Position        int64       `json:"position"`
	Status          EntryStatus `json:"status"`
	Notes           string      `json:"notes,omitempty"`
	LastContactedAt *time.Time  `json:"last_contacted_at,omitempty"`
	Offer           Offer       `json:"offer"`
	CreatedAt       time.Time   `json:"created_at"`
	CreatedBy       string      `json:"created_by"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (e *Entry) Key() PartitionKey {
	return PartitionKey{TenantID: e.TenantID, RidingTypeID: e.RidingTypeID}
}

// OfferLapsed reports whether a stored offer has run past its expiry.
func (e *Entry) OfferLapsed(now time.Time) bool {
	return e.Status == EntryStatusOffered &&
		e.Offer.ExpiresAt != nil &&
		now.After(*e.Offer.ExpiresAt)
}

// Less is the partition total order: priority DESC, position ASC,
// created_at ASC, id ASC.
func Less(a, b *Entry) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func SortEntries(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool { return Less(&es[i], &es[j]) })
}

// SortByPosition orders entries by position alone, falling back to creation
// time and id.
func SortByPosition(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		a, b := &es[i], &es[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// EntryPatch is a field-level update. Nil fields are left untouched.
type EntryPatch struct {
	Status          *EntryStatus
	Priority        *int
	Position        *int64
	Notes           *string
	LastContactedAt *time.Time
	Offer           *Offer
	ClearOffer      bool
	// KeepOfferExpiry retains offer_expires_at when clearing an offer so
	// expired rows still show when the offer lapsed.
	KeepOfferExpiry bool
}

// Merge returns the patch equivalent to applying p and then next.
func (p EntryPatch) Merge(next EntryPatch) EntryPatch {
	out := p
	if next.Status != nil {
		out.Status = next.Status
	}
	if next.Priority != nil {
		out.Priority = next.Priority
	}
	if next.Position != nil {
		out.Position = next.Position
	}
	if next.Notes != nil {
		out.Notes = next.Notes
	}
	if next.LastContactedAt != nil {
		out.LastContactedAt = next.LastContactedAt
	}
	if next.ClearOffer {
		if out.Offer != nil {
			cleared := Offer{}
			if next.KeepOfferExpiry {
				cleared.ExpiresAt = out.Offer.ExpiresAt
			}
			out.Offer = &cleared
		} else {
			out.ClearOffer = true
			out.KeepOfferExpiry = next.KeepOfferExpiry
		}
	}
	if next.Offer != nil {
		out.Offer = next.Offer
	}
	return out
}

// Apply mutates e in place.
func (p EntryPatch) Apply(e *Entry, now time.Time) {
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Priority != nil {
		e.Priority = *p.Priority
	}
	if p.Position != nil {
		e.Position = *p.Position
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.LastContactedAt != nil {
		t := *p.LastContactedAt
		e.LastContactedAt = &t
	}
	if p.ClearOffer {
		exp := e.Offer.ExpiresAt
		e.Offer = Offer{}
		if p.KeepOfferExpiry {
			e.Offer.ExpiresAt = exp
		}
	}
	if p.Offer != nil {
		e.Offer = *p.Offer
	}
	e.UpdatedAt = now
}
