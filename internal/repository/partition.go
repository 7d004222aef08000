package repository

import (
	"fmt"
	"time"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
)

// StagedUpdate is a field-level write that only applies while the row still
// holds ExpectedStatus. Stores persist Patch, not Entry: columns the mutation
// did not touch may have been changed by UpdateFields since the snapshot.
type StagedUpdate struct {
	Entry          models.Entry
	Patch          models.EntryPatch
	ExpectedStatus models.EntryStatus
}

// Partition is a working copy of one partition's open entries. Changes are
// applied to the copy immediately, so later reads inside the same MutateFunc
// see them, and recorded for the store to persist on commit.
type Partition struct {
	Key     models.PartitionKey
	Version int64

	entries     []models.Entry
	maxPosition int64
	hasRows     bool
	now         time.Time

	original map[string]models.EntryStatus
	inserted map[string]bool
	dirty    map[string]bool
	patches  map[string]models.EntryPatch
	order    []string
}

// NewPartition is called by store implementations. entries must be the open
// entries of the partition; maxPosition and hasRows describe every row,
// closed ones included.
func NewPartition(key models.PartitionKey, version int64, entries []models.Entry, maxPosition int64, hasRows bool, now time.Time) *Partition {
	p := &Partition{
		Key:         key,
		Version:     version,
		entries:     entries,
		maxPosition: maxPosition,
		hasRows:     hasRows,
		now:         now,
		original:    make(map[string]models.EntryStatus, len(entries)),
		inserted:    make(map[string]bool),
		dirty:       make(map[string]bool),
		patches:     make(map[string]models.EntryPatch),
	}
	for _, e := range entries {
		p.original[e.ID] = e.Status
	}
	return p
}

func (p *Partition) Now() time.Time { return p.now }

// Entries returns a copy of the entries that are open in the working copy, in
// position order.
func (p *Partition) Entries() []models.Entry {
	out := make([]models.Entry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.Status.IsOpen() {
			out = append(out, e)
		}
	}
	models.SortByPosition(out)
	return out
}

// Find returns a copy of the entry with the given id.
func (p *Partition) Find(id string) (models.Entry, bool) {
	if i := p.index(id); i >= 0 {
		return p.entries[i], true
	}
	return models.Entry{}, false
}

// MaxPosition is the highest position of any row, staged inserts included.
func (p *Partition) MaxPosition() (int64, bool) {
	return p.maxPosition, p.hasRows
}

func (p *Partition) Insert(e models.Entry) error {
	if e.TenantID != p.Key.TenantID || e.RidingTypeID != p.Key.RidingTypeID {
		return fmt.Errorf("insert %s: entry belongs to another partition", e.ID)
	}
	if p.index(e.ID) >= 0 {
		return fmt.Errorf("insert %s: %w", e.ID, ErrConflict)
	}
	p.entries = append(p.entries, e)
	p.inserted[e.ID] = true
	p.order = append(p.order, e.ID)
	p.track(e.Position)
	return nil
}

// Update applies patch to a snapshot entry.
func (p *Partition) Update(id string, patch models.EntryPatch) error {
	i := p.index(id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	patch.Apply(&p.entries[i], p.now)
	p.track(p.entries[i].Position)
	if p.inserted[id] {
		return nil
	}
	if !p.dirty[id] {
		p.dirty[id] = true
		p.order = append(p.order, id)
	}
	p.patches[id] = p.patches[id].Merge(patch)
	return nil
}

func (p *Partition) SetPosition(id string, pos int64) error {
	return p.Update(id, models.EntryPatch{Position: &pos})
}

// Dirty reports whether anything was staged.
func (p *Partition) Dirty() bool {
	return len(p.order) > 0
}

// Changes returns the staged inserts and updates in the order they were
// first staged.
func (p *Partition) Changes() ([]models.Entry, []StagedUpdate) {
	var inserts []models.Entry
	var updates []StagedUpdate
	for _, id := range p.order {
		e, _ := p.Find(id)
		if p.inserted[id] {
			inserts = append(inserts, e)
			continue
		}
		updates = append(updates, StagedUpdate{Entry: e, Patch: p.patches[id], ExpectedStatus: p.original[id]})
	}
	return inserts, updates
}

// Validate checks that no two open entries share a position.
func (p *Partition) Validate() error {
	seen := make(map[int64]string, len(p.entries))
	for _, e := range p.entries {
		if !e.Status.IsOpen() {
			continue
		}
		if other, ok := seen[e.Position]; ok {
			return fmt.Errorf("entries %s and %s share position %d: %w", other, e.ID, e.Position, ErrConflict)
		}
		seen[e.Position] = e.ID
	}
	return nil
}

func (p *Partition) index(id string) int {
	for i := range p.entries {
		if p.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (p *Partition) track(pos int64) {
	if !p.hasRows || pos > p.maxPosition {
		p.maxPosition = pos
	}
	p.hasRows = true
}
