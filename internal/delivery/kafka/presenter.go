package kafka

import "time"

// Events published BY Waitlist Service

type EntryAddedEvent struct {
	EntryID      string    `json:"entry_id"`
	TenantID     string    `json:"tenant_id"`
	RidingTypeID string    `json:"riding_type_id"`
	ParentID     string    `json:"parent_id"`
	ChildID      string    `json:"child_id"`
	Position     int64     `json:"position"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	Timestamp    time.Time `json:"timestamp"`
}

type StatusChangedEvent struct {
	EntryID      string    `json:"entry_id"`
	TenantID     string    `json:"tenant_id"`
	RidingTypeID string    `json:"riding_type_id"`
	ParentID     string    `json:"parent_id"`
	ChildID      string    `json:"child_id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	ActorID      string    `json:"actor_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// OfferCreatedEvent carries the offer token so a downstream notifier can
// hand it to the family.
type OfferCreatedEvent struct {
	EntryID      string    `json:"entry_id"`
	TenantID     string    `json:"tenant_id"`
	RidingTypeID string    `json:"riding_type_id"`
	ParentID     string    `json:"parent_id"`
	ChildID      string    `json:"child_id"`
	OccurrenceID string    `json:"occurrence_id"`
	OfferToken   string    `json:"offer_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Timestamp    time.Time `json:"timestamp"`
}

// Events consumed BY Waitlist Service (from Schedule Service)

type SlotReleasedEvent struct {
	TenantID     string    `json:"tenant_id"`
	RidingTypeID string    `json:"riding_type_id"`
	OccurrenceID string    `json:"occurrence_id"`
	RequestedDay *string   `json:"requested_day,omitempty"`
	ReleasedAt   time.Time `json:"released_at"`
	Timestamp    time.Time `json:"timestamp"`
}

// PartitionKey keeps every event of one waitlist partition on the same
// Kafka partition.
func PartitionKey(tenantID, ridingTypeID string) string {
	return tenantID + ":" + ridingTypeID
}
