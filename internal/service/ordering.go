package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka"
	"github.com/vogiaan1904/farm-waitlist/internal/lifecycle"
	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/position"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/pkg/util"
)

func (s *waitlistService) AddEntry(ctx context.Context, caller models.Caller, in AddEntryInput) (*models.Entry, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	if !caller.IsStaff() {
		if in.ParentID != "" && in.ParentID != caller.UserID {
			return nil, ErrForbidden
		}
		in.ParentID = caller.UserID
	}
	if in.ParentID == "" || in.ChildID == "" {
		return nil, fmt.Errorf("%w: parent and child are required", ErrInvalidArgument)
	}
	if err := validatePreferences(in.Preferences); err != nil {
		return nil, err
	}
	if len(in.Notes) > maxNotesLength {
		return nil, fmt.Errorf("%w: notes too long", ErrInvalidArgument)
	}

	rt, err := s.ridingType(ctx, caller.TenantID, in.RidingTypeID)
	if err != nil {
		return nil, err
	}
	if !rt.Active {
		return nil, fmt.Errorf("%w: riding type %s is not accepting entries", ErrInvalidArgument, rt.ID)
	}

	key := models.PartitionKey{TenantID: caller.TenantID, RidingTypeID: rt.ID}
	var added models.Entry
	v, err := s.entries.Mutate(ctx, key, func(p *repository.Partition) error {
		now := s.now()
		for _, e := range p.Entries() {
			if e.ChildID == in.ChildID && lifecycle.Effective(&e, now).IsOpen() {
				return fmt.Errorf("%w: entry %s", ErrDuplicateActive, e.ID)
			}
		}

		pos, err := appendPosition(p)
		if err != nil {
			return err
		}

		added = models.Entry{
			ID:           s.newID(),
			TenantID:     key.TenantID,
			RidingTypeID: key.RidingTypeID,
			ParentID:     in.ParentID,
			ChildID:      in.ChildID,
			Preferences:  in.Preferences,
			Position:     pos,
			Status:       models.EntryStatusActive,
			Notes:        in.Notes,
			CreatedAt:    now,
			CreatedBy:    caller.UserID,
			UpdatedAt:    now,
		}
		return p.Insert(added)
	})
	if err != nil {
		return nil, s.mutationErr(ctx, "AddEntry", err)
	}

	s.l.Infof(ctx, "Entry %s added to %s at position %d", added.ID, key.RidingTypeID, added.Position)

	if s.prod != nil {
		if err := s.prod.PublishEntryAdded(ctx, kafka.EntryAddedEvent{
			EntryID:      added.ID,
			TenantID:     added.TenantID,
			RidingTypeID: added.RidingTypeID,
			ParentID:     added.ParentID,
			ChildID:      added.ChildID,
			Position:     added.Position,
			CreatedBy:    added.CreatedBy,
			CreatedAt:    added.CreatedAt,
		}); err != nil {
			s.l.Errorf(ctx, "service.waitlistService.AddEntry: %v", err)
		}
	}
	s.notifyBoard(ctx, key, models.BoardChangeEntryAdded, v, added.ID)

	return &added, nil
}

func (s *waitlistService) MoveEntry(ctx context.Context, caller models.Caller, in MoveEntryInput) (*MoveEntryOutput, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if in.EntryID == in.BeforeID || in.EntryID == in.AfterID {
		return nil, fmt.Errorf("%w: entry cannot be its own neighbour", ErrInvalidNeighbors)
	}
	if in.BeforeID != "" && in.BeforeID == in.AfterID {
		return nil, fmt.Errorf("%w: before and after are the same entry", ErrInvalidNeighbors)
	}

	e, err := s.loadEntry(ctx, caller, in.EntryID)
	if err != nil {
		return nil, err
	}

	key := e.Key()
	var moved models.Entry
	v, err := s.entries.Mutate(ctx, key, func(p *repository.Partition) error {
		if in.ExpectedVersion != nil && *in.ExpectedVersion != p.Version {
			return fmt.Errorf("%w: board version %d, expected %d", ErrConflict, p.Version, *in.ExpectedVersion)
		}

		cur, ok := p.Find(in.EntryID)
		if !ok || !cur.Status.IsMovable() {
			st := e.Status
			if ok {
				st = cur.Status
			}
			return fmt.Errorf("%w: cannot move a %s entry", ErrInvalidTransition, st)
		}

		pos, err := placeBetween(p, in.EntryID, in.BeforeID, in.AfterID)
		if errors.Is(err, position.ErrExhausted) {
			if err := normalizePartition(p); err != nil {
				return err
			}
			pos, err = placeBetween(p, in.EntryID, in.BeforeID, in.AfterID)
		}
		if err != nil {
			return err
		}

		if err := p.SetPosition(in.EntryID, pos); err != nil {
			return err
		}
		moved, _ = p.Find(in.EntryID)
		return nil
	})
	if err != nil {
		return nil, s.mutationErr(ctx, "MoveEntry", err)
	}

	s.l.Infof(ctx, "Entry %s moved to position %d", moved.ID, moved.Position)
	s.notifyBoard(ctx, key, models.BoardChangeEntryMoved, v, moved.ID)

	return &MoveEntryOutput{Entry: moved, Version: v}, nil
}

// appendPosition places a new entry after every row of the partition. If the
// tail has run out of room the open entries are renumbered and the new entry
// goes after the last of them.
func appendPosition(p *repository.Partition) (int64, error) {
	max, hasRows := p.MaxPosition()
	pos, err := position.Append(max, !hasRows)
	if !errors.Is(err, position.ErrExhausted) {
		return pos, err
	}

	if err := normalizePartition(p); err != nil {
		return 0, err
	}
	open := p.Entries()
	if len(open) == 0 {
		return position.Append(0, true)
	}
	return position.Append(open[len(open)-1].Position, false)
}

// placeBetween finds the position for id given its requested neighbours.
// Neighbours are resolved in board order (priority, then position). Position
// only ranks entries within a priority band, so the new position is taken from
// the gap next to the nearest entry of the mover's own priority on the
// requested side; a request that crosses bands lands at the edge of the band.
func placeBetween(p *repository.Partition, id, beforeID, afterID string) (int64, error) {
	self, _ := p.Find(id)

	var open []models.Entry
	for _, e := range p.Entries() {
		if e.ID != id {
			open = append(open, e)
		}
	}
	board := make([]models.Entry, len(open))
	copy(board, open)
	models.SortEntries(board)

	indexOf := func(nid string) (int, error) {
		for i := range board {
			if board[i].ID == nid {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: %s is not an open entry of this riding type", ErrInvalidNeighbors, nid)
	}

	k := len(board)
	if beforeID != "" {
		bi, err := indexOf(beforeID)
		if err != nil {
			return 0, err
		}
		k = bi + 1
	}
	if afterID != "" {
		ai, err := indexOf(afterID)
		if err != nil {
			return 0, err
		}
		if beforeID != "" && ai < k {
			return 0, fmt.Errorf("%w: %s does not come before %s", ErrInvalidNeighbors, beforeID, afterID)
		}
		if beforeID == "" {
			k = ai
		}
	}

	var prevSame, nextSame *models.Entry
	for i := k - 1; i >= 0; i-- {
		if board[i].Priority == self.Priority {
			prevSame = &board[i]
			break
		}
	}
	for i := k; i < len(board); i++ {
		if board[i].Priority == self.Priority {
			nextSame = &board[i]
			break
		}
	}

	// open is in position order.
	var lower, upper *int64
	switch {
	case prevSame != nil:
		lower = &prevSame.Position
		for i := range open {
			if open[i].Position > *lower {
				upper = &open[i].Position
				break
			}
		}
	case nextSame != nil:
		upper = &nextSame.Position
		for i := len(open) - 1; i >= 0; i-- {
			if open[i].Position < *upper {
				lower = &open[i].Position
				break
			}
		}
	case len(open) > 0:
		lower = &open[len(open)-1].Position
	}

	return position.Between(lower, upper)
}

func (s *waitlistService) Normalize(ctx context.Context, caller models.Caller, ridingTypeID string) (int64, error) {
	if err := requireStaff(caller); err != nil {
		return 0, err
	}
	if _, err := s.ridingType(ctx, caller.TenantID, ridingTypeID); err != nil {
		return 0, err
	}

	key := models.PartitionKey{TenantID: caller.TenantID, RidingTypeID: ridingTypeID}
	var changed bool
	v, err := s.entries.Mutate(ctx, key, func(p *repository.Partition) error {
		if err := normalizePartition(p); err != nil {
			return err
		}
		changed = p.Dirty()
		return nil
	})
	if err != nil {
		return 0, s.mutationErr(ctx, "Normalize", err)
	}

	if changed {
		s.l.Infof(ctx, "Normalized %s/%s", key.TenantID, key.RidingTypeID)
		s.notifyBoard(ctx, key, models.BoardChangeNormalized, v)
	}
	return v, nil
}

// normalizePartition renumbers open entries to Gap, 2*Gap, ... in their
// current position order. Entries already in place are not touched, so a
// normalized partition stages nothing.
func normalizePartition(p *repository.Partition) error {
	open := p.Entries()
	targets := position.Spread(len(open))
	for i, e := range open {
		if e.Position == targets[i] {
			continue
		}
		if err := p.SetPosition(e.ID, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *waitlistService) SetPriority(ctx context.Context, caller models.Caller, entryID string, priority int) (*models.Entry, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	e, err := s.loadEntry(ctx, caller, entryID)
	if err != nil {
		return nil, err
	}
	if st := lifecycle.Effective(e, s.now()); st.IsClosed() {
		return nil, fmt.Errorf("%w: entry is %s", ErrInvalidTransition, st)
	}

	out, err := s.entries.UpdateFields(ctx, caller.TenantID, e.ID, e.Status, models.EntryPatch{Priority: &priority})
	if err != nil {
		return nil, s.mutationErr(ctx, "SetPriority", err)
	}

	s.notifyBoard(ctx, e.Key(), models.BoardChangePriority, 0, e.ID)
	return out, nil
}

func (s *waitlistService) SetLastContacted(ctx context.Context, caller models.Caller, entryID string) (*models.Entry, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	e, err := s.loadEntry(ctx, caller, entryID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if st := lifecycle.Effective(e, now); st.IsClosed() {
		return nil, fmt.Errorf("%w: entry is %s", ErrInvalidTransition, st)
	}

	out, err := s.entries.UpdateFields(ctx, caller.TenantID, e.ID, e.Status, models.EntryPatch{LastContactedAt: &now})
	if err != nil {
		return nil, s.mutationErr(ctx, "SetLastContacted", err)
	}

	s.notifyBoard(ctx, e.Key(), models.BoardChangeEntryUpdated, 0, e.ID)
	return out, nil
}

func (s *waitlistService) SetNotes(ctx context.Context, caller models.Caller, entryID, notes string) (*models.Entry, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if len(notes) > maxNotesLength {
		return nil, fmt.Errorf("%w: notes too long", ErrInvalidArgument)
	}
	e, err := s.loadEntry(ctx, caller, entryID)
	if err != nil {
		return nil, err
	}

	notes = strings.TrimSpace(notes)
	out, err := s.entries.UpdateFields(ctx, caller.TenantID, e.ID, e.Status, models.EntryPatch{Notes: &notes})
	if err != nil {
		return nil, s.mutationErr(ctx, "SetNotes", err)
	}

	s.notifyBoard(ctx, e.Key(), models.BoardChangeEntryUpdated, 0, e.ID)
	return out, nil
}

func validatePreferences(p models.Preferences) error {
	if p.RequestedDay != nil {
		if _, err := util.ParseDate(*p.RequestedDay); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}

	var start, end int
	var err error
	if p.TimeWindowStart != nil {
		if start, err = util.ParseTimeOfDay(*p.TimeWindowStart); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if p.TimeWindowEnd != nil {
		if end, err = util.ParseTimeOfDay(*p.TimeWindowEnd); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if p.TimeWindowStart != nil && p.TimeWindowEnd != nil && start >= end {
		return fmt.Errorf("%w: time window must end after it starts", ErrInvalidArgument)
	}
	return nil
}

// mutationErr maps store errors and logs the ones callers cannot act on.
func (s *waitlistService) mutationErr(ctx context.Context, op string, err error) error {
	mapped := storeErr(err)
	for _, known := range []error{
		ErrNotFound, ErrConflict, ErrInvalidTransition, ErrInvalidNeighbors,
		ErrDuplicateActive, ErrForbidden, ErrInvalidArgument,
	} {
		if errors.Is(mapped, known) {
			s.l.Warnf(ctx, "service.waitlistService.%s: %v", op, err)
			if mapped == err {
				return err
			}
			return fmt.Errorf("%w: %v", mapped, err)
		}
	}
	s.l.Errorf(ctx, "service.waitlistService.%s: %v", op, err)
	return err
}
