package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/farm-waitlist/config"
	"github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka"
	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/internal/repository/memory"
	redisRepo "github.com/vogiaan1904/farm-waitlist/internal/repository/redis"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

const (
	tenant   = "farm-1"
	ponyType = "rt-pony"
	jumpType = "rt-jump"
)

var (
	staff  = models.Caller{TenantID: tenant, UserID: "staff-1", Role: models.RoleStaff}
	parent = models.Caller{TenantID: tenant, UserID: "parent-1", Role: models.RoleParent}
	other  = models.Caller{TenantID: tenant, UserID: "parent-2", Role: models.RoleParent}
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svc   *waitlistService
	prod  *fakeProducer
	board *fakeBoard
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memory.NewStore(),
		prod:  &fakeProducer{},
		board: newFakeBoard(),
		clock: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	f.svc = f.build(f.store.Entries())
	for _, rt := range []SaveRidingTypeInput{
		{ID: ponyType, Code: "PONY", Name: "Pony club", MaxParticipants: 6, Active: true},
		{ID: jumpType, Code: "JUMP", Name: "Show jumping", MaxParticipants: 4, Active: true},
	} {
		_, err := f.svc.SaveRidingType(f.ctx, staff, rt)
		require.NoError(t, err)
	}
	return f
}

// build wires a service around entries, sharing the fixture's clock and fakes.
func (f *fixture) build(entries repository.EntryRepository) *waitlistService {
	svc := NewWaitlistService(entries, f.store.RidingTypes(), f.prod, f.board, logger.NewNopLogger(), config.OfferConfig{
		TTL:         24 * time.Hour,
		TokenSecret: "test-secret",
	}).(*waitlistService)
	svc.now = func() time.Time { return f.clock }
	return svc
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) add(child string) *models.Entry {
	f.t.Helper()
	return f.addAs(staff, ponyType, "parent-of-"+child, child)
}

func (f *fixture) addAs(caller models.Caller, ridingType, parentID, child string) *models.Entry {
	f.t.Helper()
	e, err := f.svc.AddEntry(f.ctx, caller, AddEntryInput{
		ParentID:     parentID,
		ChildID:      child,
		RidingTypeID: ridingType,
	})
	require.NoError(f.t, err)
	// distinct creation times keep the final tie-break observable
	f.advance(time.Second)
	return e
}

func (f *fixture) list(statuses ...models.EntryStatus) *Board {
	f.t.Helper()
	b, err := f.svc.ListEntriesByType(f.ctx, staff, ListEntriesInput{RidingTypeID: ponyType, Statuses: statuses})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) order(statuses ...models.EntryStatus) []string {
	f.t.Helper()
	return childIDs(f.list(statuses...).Entries)
}

func (f *fixture) get(id string) *models.Entry {
	f.t.Helper()
	e, err := f.svc.GetEntry(f.ctx, staff, id)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) setStatus(caller models.Caller, id string, st models.EntryStatus) (*models.Entry, error) {
	return f.svc.SetStatus(f.ctx, caller, SetStatusInput{EntryID: id, Status: st, OccurrenceID: "occ-1"})
}

func childIDs(es []models.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ChildID
	}
	return out
}

type fakeProducer struct {
	mu      sync.Mutex
	added   []kafka.EntryAddedEvent
	changed []kafka.StatusChangedEvent
	offers  []kafka.OfferCreatedEvent
	err     error
}

func (p *fakeProducer) PublishEntryAdded(_ context.Context, ev kafka.EntryAddedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, ev)
	return p.err
}

func (p *fakeProducer) PublishStatusChanged(_ context.Context, ev kafka.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, ev)
	return p.err
}

func (p *fakeProducer) PublishOfferCreated(_ context.Context, ev kafka.OfferCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers = append(p.offers, ev)
	return p.err
}

func (p *fakeProducer) Close() error { return nil }

type fakeBoard struct {
	mu        sync.Mutex
	published []models.BoardChangeEvent
	subs      map[models.PartitionKey][]chan models.BoardChangeEvent
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{subs: make(map[models.PartitionKey][]chan models.BoardChangeEvent)}
}

func (b *fakeBoard) PublishBoardChange(_ context.Context, ev models.BoardChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, ev)
	for _, ch := range b.subs[models.PartitionKey{TenantID: ev.TenantID, RidingTypeID: ev.RidingTypeID}] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *fakeBoard) SubscribeBoard(_ context.Context, key models.PartitionKey) (redisRepo.BoardSubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.BoardChangeEvent, 8)
	b.subs[key] = append(b.subs[key], ch)
	return &fakeSub{ch: ch}, nil
}

func (b *fakeBoard) changes() []models.BoardChangeType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.BoardChangeType, len(b.published))
	for i, ev := range b.published {
		out[i] = ev.ChangeType
	}
	return out
}

type fakeSub struct {
	ch chan models.BoardChangeEvent
}

func (s *fakeSub) Events() <-chan models.BoardChangeEvent { return s.ch }
func (s *fakeSub) Close() error                           { return nil }

// interleavingRepo runs hook once, right before the first intercepted call
// reaches the store, so a second writer can commit in between a read and the
// write that depends on it.
type interleavingRepo struct {
	repository.EntryRepository
	mu   sync.Mutex
	hook func()
}

func (r *interleavingRepo) take() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.hook
	r.hook = nil
	return h
}

func (r *interleavingRepo) Mutate(ctx context.Context, key models.PartitionKey, fn repository.MutateFunc) (int64, error) {
	h := r.take()
	if h == nil {
		return r.EntryRepository.Mutate(ctx, key, fn)
	}
	return r.EntryRepository.Mutate(ctx, key, func(p *repository.Partition) error {
		h()
		return fn(p)
	})
}

func (r *interleavingRepo) UpdateFields(ctx context.Context, tenantID, id string, expected models.EntryStatus, patch models.EntryPatch) (*models.Entry, error) {
	if h := r.take(); h != nil {
		h()
	}
	return r.EntryRepository.UpdateFields(ctx, tenantID, id, expected, patch)
}
