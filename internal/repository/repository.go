// Package repository defines the ordering store contract shared by the
// postgres and memory implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
)

var (
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict means a concurrent writer committed first: the partition
	// version or the row's status changed after it was read.
	ErrConflict = errors.New("repository: conflict")
)

// ListFilter narrows a partition listing. Statuses match stored statuses.
// RequestedDay matches entries for that day and entries with no day.
type ListFilter struct {
	Statuses     []models.EntryStatus
	RequestedDay *string
}

// MutateFunc stages changes on a partition snapshot. Returning an error
// discards everything staged.
type MutateFunc func(p *Partition) error

type EntryRepository interface {
	// ListByPartition returns entries ordered by priority DESC, position ASC,
	// created_at ASC, id ASC.
	ListByPartition(ctx context.Context, key models.PartitionKey, f ListFilter) ([]models.Entry, error)
	ListByParent(ctx context.Context, tenantID, parentID string, statuses []models.EntryStatus) ([]models.Entry, error)
	Get(ctx context.Context, tenantID, id string) (*models.Entry, error)
	// Version returns the current partition version, 0 for a partition that
	// has never been written.
	Version(ctx context.Context, key models.PartitionKey) (int64, error)
	// Mutate runs fn against a snapshot of the partition's open entries and
	// commits the staged changes atomically iff no other mutation committed in
	// between. It returns the partition version after the call.
	Mutate(ctx context.Context, key models.PartitionKey, fn MutateFunc) (int64, error)
	// UpdateFields applies a single-row patch guarded by the row's current
	// status.
	UpdateFields(ctx context.Context, tenantID, id string, expected models.EntryStatus, patch models.EntryPatch) (*models.Entry, error)
	ListLapsedOffers(ctx context.Context, now time.Time, limit int) ([]models.Entry, error)
}

type RidingTypeRepository interface {
	List(ctx context.Context, tenantID string) ([]models.RidingType, error)
	Get(ctx context.Context, tenantID, id string) (*models.RidingType, error)
	Save(ctx context.Context, rt *models.RidingType) error
}
