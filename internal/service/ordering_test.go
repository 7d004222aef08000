package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/position"
)

func TestBoardScenario(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	c := f.add("C")
	assert.Equal(t, []string{"A", "B", "C"}, f.order())

	_, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: c.ID, AfterID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, f.order())

	_, err = f.svc.SetPriority(f.ctx, staff, b.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, f.order())

	_, err = f.setStatus(staff, a.ID, models.EntryStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, f.order(models.EntryStatusActive))
}

func TestAddEntryKeepsTotalOrder(t *testing.T) {
	f := newFixture(t)
	prios := []int{0, 3, 0, 1, 3, 0, 2, 1}
	for i, p := range prios {
		e := f.add(fmt.Sprintf("c%d", i))
		if p != 0 {
			_, err := f.svc.SetPriority(f.ctx, staff, e.ID, p)
			require.NoError(t, err)
		}
	}

	es := f.list().Entries
	require.Len(t, es, len(prios))
	for i := 1; i < len(es); i++ {
		prev, cur := es[i-1], es[i]
		require.GreaterOrEqual(t, prev.Priority, cur.Priority)
		if prev.Priority == cur.Priority {
			assert.Less(t, prev.Position, cur.Position)
		}
	}
	assert.Equal(t, []string{"c1", "c4", "c6", "c3", "c7", "c0", "c2", "c5"}, childIDs(es))
}

func TestAddEntryAppendsAtTail(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	assert.Equal(t, position.Gap, a.Position)
	assert.Equal(t, models.EntryStatusActive, a.Status)
	assert.Equal(t, staff.UserID, a.CreatedBy)

	b := f.add("B")
	assert.Equal(t, 2*position.Gap, b.Position)

	// a closed entry keeps its slot at the tail
	_, err := f.setStatus(staff, b.ID, models.EntryStatusCancelled)
	require.NoError(t, err)
	c := f.add("C")
	assert.Equal(t, 3*position.Gap, c.Position)
}

func TestAddEntryDuplicateActive(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")

	_, err := f.svc.AddEntry(f.ctx, staff, AddEntryInput{ParentID: "parent-of-A", ChildID: "A", RidingTypeID: ponyType})
	assert.ErrorIs(t, err, ErrDuplicateActive)

	// another riding type is a separate queue
	f.addAs(staff, jumpType, "parent-of-A", "A")

	_, err = f.setStatus(staff, a.ID, models.EntryStatusPaused)
	require.NoError(t, err)
	_, err = f.svc.AddEntry(f.ctx, staff, AddEntryInput{ParentID: "parent-of-A", ChildID: "A", RidingTypeID: ponyType})
	assert.ErrorIs(t, err, ErrDuplicateActive)

	_, err = f.setStatus(staff, a.ID, models.EntryStatusCancelled)
	require.NoError(t, err)
	again := f.add("A")
	assert.NotEqual(t, a.ID, again.ID)
}

func TestAddEntryValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SaveRidingType(f.ctx, staff, SaveRidingTypeInput{ID: "rt-closed", Code: "OLD", Name: "Retired", Active: false})
	require.NoError(t, err)

	bad := "2026-13-01"
	start, end := "10:00", "09:00"
	tests := []struct {
		name   string
		caller models.Caller
		in     AddEntryInput
		want   error
	}{
		{"missing child", staff, AddEntryInput{ParentID: "p", RidingTypeID: ponyType}, ErrInvalidArgument},
		{"unknown riding type", staff, AddEntryInput{ParentID: "p", ChildID: "c", RidingTypeID: "nope"}, ErrNotFound},
		{"inactive riding type", staff, AddEntryInput{ParentID: "p", ChildID: "c", RidingTypeID: "rt-closed"}, ErrInvalidArgument},
		{"bad day", staff, AddEntryInput{ParentID: "p", ChildID: "c", RidingTypeID: ponyType,
			Preferences: models.Preferences{RequestedDay: &bad}}, ErrInvalidArgument},
		{"inverted window", staff, AddEntryInput{ParentID: "p", ChildID: "c", RidingTypeID: ponyType,
			Preferences: models.Preferences{TimeWindowStart: &start, TimeWindowEnd: &end}}, ErrInvalidArgument},
		{"parent for someone else", parent, AddEntryInput{ParentID: "parent-2", ChildID: "c", RidingTypeID: ponyType}, ErrForbidden},
		{"anonymous", models.Caller{TenantID: tenant, Role: models.RoleStaff}, AddEntryInput{ParentID: "p", ChildID: "c", RidingTypeID: ponyType}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddEntry(f.ctx, tt.caller, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.order())
}

func TestParentAddsOwnEntry(t *testing.T) {
	f := newFixture(t)
	day := "2026-05-09"
	e, err := f.svc.AddEntry(f.ctx, parent, AddEntryInput{
		ChildID:      "kid",
		RidingTypeID: ponyType,
		Preferences:  models.Preferences{RequestedDay: &day},
	})
	require.NoError(t, err)
	assert.Equal(t, parent.UserID, e.ParentID)
	assert.Equal(t, parent.UserID, e.CreatedBy)

	mine, err := f.svc.ListMyEntries(f.ctx, parent, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, e.ID, mine[0].ID)

	_, err = f.svc.ListMyEntries(f.ctx, parent, "parent-2")
	assert.ErrorIs(t, err, ErrForbidden)

	theirs, err := f.svc.ListMyEntries(f.ctx, other, "")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = f.svc.GetEntry(f.ctx, other, e.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ListEntriesByType(f.ctx, parent, ListEntriesInput{RidingTypeID: ponyType})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMoveEntryPlacesBetweenNeighbours(t *testing.T) {
	tests := []struct {
		name          string
		move          string
		before, after string
		want          []string
	}{
		{"to head", "D", "", "A", []string{"D", "A", "B", "C"}},
		{"to tail", "A", "D", "", []string{"B", "C", "D", "A"}},
		{"between pair", "D", "A", "B", []string{"A", "D", "B", "C"}},
		{"after only", "A", "C", "", []string{"B", "C", "A", "D"}},
		{"before only", "D", "", "B", []string{"A", "D", "B", "C"}},
		{"no neighbours goes to tail", "B", "", "", []string{"A", "C", "D", "B"}},
		{"wide pair uses gap after before", "D", "A", "C", []string{"A", "D", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ids := map[string]string{}
			for _, c := range []string{"A", "B", "C", "D"} {
				ids[c] = f.add(c).ID
			}

			out, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{
				EntryID:  ids[tt.move],
				BeforeID: ids[tt.before],
				AfterID:  ids[tt.after],
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.order())
			assert.Equal(t, f.list().Version, out.Version)
		})
	}
}

func TestMoveEntryIgnoresFilteredNeighbours(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	c := f.add("C")
	_, err := f.setStatus(staff, b.ID, models.EntryStatusPaused)
	require.NoError(t, err)

	// the board filtered to active shows A, C; dropping C between them
	// must still land strictly between A and the hidden B
	_, err = f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: c.ID, BeforeID: a.ID})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C", "B"}, f.order())
	assert.Equal(t, []string{"A", "C"}, f.order(models.EntryStatusActive))
}

func TestMoveEntryInvalidNeighbours(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	c := f.add("C")
	gone := f.add("gone")
	_, err := f.setStatus(staff, gone.ID, models.EntryStatusCancelled)
	require.NoError(t, err)
	foreign := f.addAs(staff, jumpType, "p", "X")

	tests := []struct {
		name string
		in   MoveEntryInput
	}{
		{"self as before", MoveEntryInput{EntryID: a.ID, BeforeID: a.ID}},
		{"self as after", MoveEntryInput{EntryID: a.ID, AfterID: a.ID}},
		{"same neighbour twice", MoveEntryInput{EntryID: a.ID, BeforeID: b.ID, AfterID: b.ID}},
		{"misordered pair", MoveEntryInput{EntryID: a.ID, BeforeID: c.ID, AfterID: b.ID}},
		{"foreign partition", MoveEntryInput{EntryID: a.ID, BeforeID: foreign.ID}},
		{"closed neighbour", MoveEntryInput{EntryID: a.ID, AfterID: gone.ID}},
		{"missing neighbour", MoveEntryInput{EntryID: a.ID, BeforeID: "nope"}},
	}
	before := f.list()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.MoveEntry(f.ctx, staff, tt.in)
			assert.ErrorIs(t, err, ErrInvalidNeighbors)
		})
	}
	assert.Equal(t, before, f.list())
}

func TestMoveEntryStatusRules(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	c := f.add("C")

	_, err := f.setStatus(staff, b.ID, models.EntryStatusPaused)
	require.NoError(t, err)
	_, err = f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: b.ID, AfterID: a.ID})
	require.NoError(t, err, "paused entries can be moved")

	_, err = f.setStatus(staff, a.ID, models.EntryStatusOffered)
	require.NoError(t, err)
	_, err = f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: a.ID, AfterID: b.ID})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.setStatus(staff, c.ID, models.EntryStatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: c.ID, AfterID: b.ID})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.MoveEntry(f.ctx, parent, MoveEntryInput{EntryID: b.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMoveEntryExpectedVersion(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	v := f.list().Version

	stale := v - 1
	_, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: b.ID, AfterID: a.ID, ExpectedVersion: &stale})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, []string{"A", "B"}, f.order())

	out, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: b.ID, AfterID: a.ID, ExpectedVersion: &v})
	require.NoError(t, err)
	assert.Equal(t, v+1, out.Version)
	assert.Equal(t, []string{"B", "A"}, f.order())
}

func TestRepeatedInsertsIntoOneGap(t *testing.T) {
	f := newFixture(t)
	head := f.add("head")
	f.add("tail")
	var moved []string
	for i := 0; i < 50; i++ {
		moved = append(moved, f.add(fmt.Sprintf("m%02d", i)).ChildID)
	}

	// each mover goes directly after head, so the gap after head is halved
	// every time and has to be renumbered along the way
	for i := 0; i < 50; i++ {
		id := f.list().Entries[2+i].ID
		_, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: id, BeforeID: head.ID})
		require.NoError(t, err, "move %d", i)

		seen := map[int64]string{}
		for _, e := range f.list().Entries {
			if other, dup := seen[e.Position]; dup {
				t.Fatalf("move %d: %s and %s share position %d", i, other, e.ChildID, e.Position)
			}
			seen[e.Position] = e.ChildID
		}
	}

	want := []string{"head"}
	for i := len(moved) - 1; i >= 0; i-- {
		want = append(want, moved[i])
	}
	want = append(want, "tail")
	assert.Equal(t, want, f.order())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	c := f.add("C")
	_, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: c.ID, BeforeID: a.ID, AfterID: b.ID})
	require.NoError(t, err)
	_, err = f.svc.SetPriority(f.ctx, staff, b.ID, 5)
	require.NoError(t, err)
	wantOrder := f.order()

	v1, err := f.svc.Normalize(f.ctx, staff, ponyType)
	require.NoError(t, err)
	first := f.list()
	assert.Equal(t, wantOrder, childIDs(first.Entries))

	byChild := map[string]int64{}
	for _, e := range first.Entries {
		byChild[e.ChildID] = e.Position
	}
	assert.Equal(t, map[string]int64{"A": position.Gap, "C": 2 * position.Gap, "B": 3 * position.Gap}, byChild)

	v2, err := f.svc.Normalize(f.ctx, staff, ponyType)
	require.NoError(t, err)
	assert.Equal(t, v1, v2, "second normalize writes nothing")
	assert.Equal(t, first, f.list())

	_, err = f.svc.Normalize(f.ctx, staff, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Normalize(f.ctx, parent, ponyType)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConcurrentMovesIntoSameGap(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	c := f.add("C")
	d := f.add("D")

	repo := &interleavingRepo{EntryRepository: f.store.Entries()}
	first := f.build(repo)
	second := f.build(f.store.Entries())

	var secondErr error
	repo.hook = func() {
		_, secondErr = second.MoveEntry(context.Background(), staff, MoveEntryInput{EntryID: d.ID, BeforeID: a.ID, AfterID: b.ID})
	}

	_, err := first.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: c.ID, BeforeID: a.ID, AfterID: b.ID})
	require.NoError(t, secondErr)
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, []string{"A", "D", "B", "C"}, f.order())
}

func TestMoveEntryKeepsConcurrentFieldWrites(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	c := f.add("C")

	repo := &interleavingRepo{EntryRepository: f.store.Entries()}
	mover := f.build(repo)
	editor := f.build(f.store.Entries())

	var hookErrs []error
	repo.hook = func() {
		_, err := editor.SetPriority(context.Background(), staff, c.ID, 10)
		hookErrs = append(hookErrs, err)
		_, err = editor.SetNotes(context.Background(), staff, c.ID, "sibling rides Tuesdays")
		hookErrs = append(hookErrs, err)
		_, err = editor.SetLastContacted(context.Background(), staff, c.ID)
		hookErrs = append(hookErrs, err)
	}

	out, err := mover.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: c.ID, BeforeID: a.ID, AfterID: b.ID})
	require.NoError(t, err)
	for _, herr := range hookErrs {
		require.NoError(t, herr)
	}
	assert.Greater(t, out.Entry.Position, a.Position)
	assert.Less(t, out.Entry.Position, b.Position)

	got := f.get(c.ID)
	assert.Equal(t, out.Entry.Position, got.Position)
	assert.Equal(t, 10, got.Priority)
	assert.Equal(t, "sibling rides Tuesdays", got.Notes)
	assert.NotNil(t, got.LastContactedAt)
	assert.Equal(t, []string{"C", "A", "B"}, f.order())
}

func TestMoveEntryResolvesNeighboursInBoardOrder(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	c := f.add("C")

	_, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: c.ID, AfterID: a.ID})
	require.NoError(t, err)
	_, err = f.svc.SetPriority(f.ctx, staff, b.ID, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C", "A"}, f.order())

	_, err = f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: a.ID, BeforeID: b.ID, AfterID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, f.order())

	_, err = f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: a.ID, BeforeID: c.ID, AfterID: b.ID})
	assert.ErrorIs(t, err, ErrInvalidNeighbors, "B comes before C on the board")
}

func TestMoveEntryStaysInPriorityBand(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	f.add("C")
	d := f.add("D")
	for _, id := range []string{a.ID, b.ID} {
		_, err := f.svc.SetPriority(f.ctx, staff, id, 5)
		require.NoError(t, err)
	}

	out, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: d.ID, BeforeID: a.ID, AfterID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Entry.Priority)
	assert.Equal(t, []string{"A", "B", "D", "C"}, f.order())
}

func TestSetPriorityAndNotes(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	v := f.list().Version

	e, err := f.svc.SetPriority(f.ctx, staff, a.ID, -2)
	require.NoError(t, err)
	assert.Equal(t, -2, e.Priority)
	assert.Equal(t, a.Position, e.Position)
	assert.Equal(t, v, f.list().Version, "field writes leave the ordering version alone")

	e, err = f.svc.SetNotes(f.ctx, staff, a.ID, "  prefers mornings ")
	require.NoError(t, err)
	assert.Equal(t, "prefers mornings", e.Notes)

	_, err = f.svc.SetPriority(f.ctx, parent, a.ID, 3)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.setStatus(staff, a.ID, models.EntryStatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.SetPriority(f.ctx, staff, a.ID, 3)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSetLastContacted(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")

	e, err := f.svc.SetLastContacted(f.ctx, staff, a.ID)
	require.NoError(t, err)
	require.NotNil(t, e.LastContactedAt)
	assert.True(t, f.clock.Equal(*e.LastContactedAt))

	_, err = f.setStatus(staff, a.ID, models.EntryStatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.SetLastContacted(f.ctx, staff, a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListEntriesByDay(t *testing.T) {
	f := newFixture(t)
	mon, tue := "2026-05-11", "2026-05-12"
	for _, in := range []AddEntryInput{
		{ParentID: "p1", ChildID: "mon", Preferences: models.Preferences{RequestedDay: &mon}},
		{ParentID: "p2", ChildID: "tue", Preferences: models.Preferences{RequestedDay: &tue}},
		{ParentID: "p3", ChildID: "any"},
	} {
		in.RidingTypeID = ponyType
		_, err := f.svc.AddEntry(f.ctx, staff, in)
		require.NoError(t, err)
		f.advance(time.Second)
	}

	b, err := f.svc.ListEntriesByType(f.ctx, staff, ListEntriesInput{RidingTypeID: ponyType, RequestedDay: &mon})
	require.NoError(t, err)
	assert.Equal(t, []string{"mon", "any"}, childIDs(b.Entries))

	bad := "monday"
	_, err = f.svc.ListEntriesByType(f.ctx, staff, ListEntriesInput{RidingTypeID: ponyType, RequestedDay: &bad})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.ListEntriesByType(f.ctx, staff, ListEntriesInput{RidingTypeID: ponyType, Statuses: []models.EntryStatus{"waiting"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSideEffectsFollowCommits(t *testing.T) {
	f := newFixture(t)
	a := f.add("A")
	b := f.add("B")
	_, err := f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: b.ID, AfterID: a.ID})
	require.NoError(t, err)
	_, err = f.setStatus(staff, a.ID, models.EntryStatusPaused)
	require.NoError(t, err)

	// a rejected write publishes nothing
	_, err = f.svc.MoveEntry(f.ctx, staff, MoveEntryInput{EntryID: a.ID, BeforeID: "nope"})
	require.Error(t, err)

	require.Len(t, f.prod.added, 2)
	assert.Equal(t, a.ID, f.prod.added[0].EntryID)
	require.Len(t, f.prod.changed, 1)
	assert.Equal(t, "active", f.prod.changed[0].From)
	assert.Equal(t, "paused", f.prod.changed[0].To)
	assert.Equal(t, staff.UserID, f.prod.changed[0].ActorID)

	assert.Equal(t, []models.BoardChangeType{
		models.BoardChangeEntryAdded,
		models.BoardChangeEntryAdded,
		models.BoardChangeEntryMoved,
		models.BoardChangeStatusChanged,
	}, f.board.changes())
}

func TestPublishFailuresDoNotFailWrites(t *testing.T) {
	f := newFixture(t)
	f.prod.err = fmt.Errorf("broker down")

	a := f.add("A")
	assert.Equal(t, []string{"A"}, f.order())
	_, err := f.setStatus(staff, a.ID, models.EntryStatusPaused)
	assert.NoError(t, err)
}
