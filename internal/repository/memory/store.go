// Package memory is an in-process ordering store. It backs the service tests
// and the STORE_DRIVER=memory development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
)

type Store struct {
	mu          sync.RWMutex
	entries     map[string]models.Entry
	versions    map[models.PartitionKey]int64
	ridingTypes map[string]models.RidingType
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries:     make(map[string]models.Entry),
		versions:    make(map[models.PartitionKey]int64),
		ridingTypes: make(map[string]models.RidingType),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Entries returns the store as an EntryRepository.
func (s *Store) Entries() repository.EntryRepository { return entryRepo{s} }

// RidingTypes returns the store as a RidingTypeRepository.
func (s *Store) RidingTypes() repository.RidingTypeRepository { return ridingTypeRepo{s} }

type entryRepo struct{ s *Store }

func (r entryRepo) ListByPartition(ctx context.Context, key models.PartitionKey, f repository.ListFilter) ([]models.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Entry
	for _, e := range r.s.entries {
		if e.TenantID != key.TenantID || e.RidingTypeID != key.RidingTypeID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, e.Status) {
			continue
		}
		if f.RequestedDay != nil && e.Preferences.RequestedDay != nil && *e.Preferences.RequestedDay != *f.RequestedDay {
			continue
		}
		out = append(out, e)
	}
	models.SortEntries(out)
	return out, nil
}

func (r entryRepo) ListByParent(ctx context.Context, tenantID, parentID string, statuses []models.EntryStatus) ([]models.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Entry
	for _, e := range r.s.entries {
		if e.TenantID != tenantID || e.ParentID != parentID {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, e.Status) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r entryRepo) Get(ctx context.Context, tenantID, id string) (*models.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.entries[id]
	if !ok || e.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r entryRepo) Version(ctx context.Context, key models.PartitionKey) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.versions[key], nil
}

func (r entryRepo) Mutate(ctx context.Context, key models.PartitionKey, fn repository.MutateFunc) (int64, error) {
	p := r.snapshot(key)

	if err := fn(p); err != nil {
		return p.Version, err
	}
	if !p.Dirty() {
		return p.Version, nil
	}
	if err := p.Validate(); err != nil {
		return p.Version, err
	}
	if err := ctx.Err(); err != nil {
		return p.Version, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.versions[key] != p.Version {
		return r.s.versions[key], repository.ErrConflict
	}
	inserts, updates := p.Changes()
	for _, u := range updates {
		cur, ok := r.s.entries[u.Entry.ID]
		if !ok || cur.Status != u.ExpectedStatus {
			return p.Version, repository.ErrConflict
		}
	}
	for _, e := range inserts {
		if _, ok := r.s.entries[e.ID]; ok {
			return p.Version, repository.ErrConflict
		}
	}

	for _, e := range inserts {
		r.s.entries[e.ID] = e
	}
	for _, u := range updates {
		cur := r.s.entries[u.Entry.ID]
		u.Patch.Apply(&cur, u.Entry.UpdatedAt)
		r.s.entries[u.Entry.ID] = cur
	}
	r.s.versions[key] = p.Version + 1
	return p.Version + 1, nil
}

func (r entryRepo) snapshot(key models.PartitionKey) *repository.Partition {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var (
		open    []models.Entry
		max     int64
		hasRows bool
	)
	for _, e := range r.s.entries {
		if e.TenantID != key.TenantID || e.RidingTypeID != key.RidingTypeID {
			continue
		}
		if !hasRows || e.Position > max {
			max = e.Position
		}
		hasRows = true
		if e.Status.IsOpen() {
			open = append(open, e)
		}
	}
	models.SortByPosition(open)
	return repository.NewPartition(key, r.s.versions[key], open, max, hasRows, r.s.now())
}

func (r entryRepo) UpdateFields(ctx context.Context, tenantID, id string, expected models.EntryStatus, patch models.EntryPatch) (*models.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.entries[id]
	if !ok || e.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	if e.Status != expected {
		return nil, repository.ErrConflict
	}
	patch.Apply(&e, r.s.now())
	r.s.entries[id] = e
	return &e, nil
}

func (r entryRepo) ListLapsedOffers(ctx context.Context, now time.Time, limit int) ([]models.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Entry
	for _, e := range r.s.entries {
		if e.OfferLapsed(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Offer.ExpiresAt.Before(*out[j].Offer.ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type ridingTypeRepo struct{ s *Store }

func (r ridingTypeRepo) List(ctx context.Context, tenantID string) ([]models.RidingType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.RidingType
	for _, rt := range r.s.ridingTypes {
		if rt.TenantID == tenantID {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r ridingTypeRepo) Get(ctx context.Context, tenantID, id string) (*models.RidingType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rt, ok := r.s.ridingTypes[id]
	if !ok || rt.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}

func (r ridingTypeRepo) Save(ctx context.Context, rt *models.RidingType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if cur, ok := r.s.ridingTypes[rt.ID]; ok && cur.TenantID != rt.TenantID {
		return repository.ErrConflict
	}
	r.s.ridingTypes[rt.ID] = *rt
	return nil
}

func hasStatus(set []models.EntryStatus, s models.EntryStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
