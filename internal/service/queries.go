package service

import (
	"context"
	"fmt"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/pkg/util"
)

func (s *waitlistService) ListEntriesByType(ctx context.Context, caller models.Caller, in ListEntriesInput) (*Board, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if _, err := s.ridingType(ctx, caller.TenantID, in.RidingTypeID); err != nil {
		return nil, err
	}

	f, err := storeFilter(in.Statuses, in.RequestedDay)
	if err != nil {
		return nil, err
	}
	return s.readBoard(ctx, models.PartitionKey{TenantID: caller.TenantID, RidingTypeID: in.RidingTypeID}, in.Statuses, f)
}

// readBoard reads the version before the entries so a client holding it can
// never be ahead of the rows it saw.
func (s *waitlistService) readBoard(ctx context.Context, key models.PartitionKey, want []models.EntryStatus, f repository.ListFilter) (*Board, error) {
	v, err := s.entries.Version(ctx, key)
	if err != nil {
		s.l.Errorf(ctx, "service.waitlistService.readBoard: %v", err)
		return nil, storeErr(err)
	}

	es, err := s.entries.ListByPartition(ctx, key, f)
	if err != nil {
		s.l.Errorf(ctx, "service.waitlistService.readBoard: %v", err)
		return nil, storeErr(err)
	}

	return &Board{
		RidingTypeID: key.RidingTypeID,
		Version:      v,
		Entries:      keepStatuses(s.effective(es), want),
	}, nil
}

func (s *waitlistService) ListMyEntries(ctx context.Context, caller models.Caller, parentID string) ([]models.Entry, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	if !caller.IsStaff() {
		if parentID != "" && parentID != caller.UserID {
			return nil, ErrForbidden
		}
		parentID = caller.UserID
	}
	if parentID == "" {
		return nil, fmt.Errorf("%w: parent id is required", ErrInvalidArgument)
	}

	es, err := s.entries.ListByParent(ctx, caller.TenantID, parentID, models.OpenStatuses)
	if err != nil {
		s.l.Errorf(ctx, "service.waitlistService.ListMyEntries: %v", err)
		return nil, storeErr(err)
	}
	return keepStatuses(s.effective(es), models.OpenStatuses), nil
}

func (s *waitlistService) GetEntry(ctx context.Context, caller models.Caller, entryID string) (*models.Entry, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	e, err := s.loadEntry(ctx, caller, entryID)
	if err != nil {
		return nil, err
	}
	out := s.effective([]models.Entry{*e})[0]
	return &out, nil
}

func (s *waitlistService) StreamBoard(ctx context.Context, caller models.Caller, ridingTypeID string, upds chan<- *BoardStreamUpdate) error {
	if err := requireStaff(caller); err != nil {
		return err
	}
	if s.board == nil {
		return ErrStreamUnavailable
	}
	if _, err := s.ridingType(ctx, caller.TenantID, ridingTypeID); err != nil {
		return err
	}

	key := models.PartitionKey{TenantID: caller.TenantID, RidingTypeID: ridingTypeID}

	// Subscribe before the first read so no change slips in between.
	sub, err := s.board.SubscribeBoard(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board changes: %w", err)
	}
	defer sub.Close()

	send := func(change *models.BoardChangeEvent) error {
		b, err := s.readBoard(ctx, key, models.OpenStatuses, repository.ListFilter{Statuses: models.OpenStatuses})
		if err != nil {
			return err
		}
		select {
		case upds <- &BoardStreamUpdate{Change: change, Board: b}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := send(nil); err != nil {
		return err
	}

	s.l.Infof(ctx, "Started streaming board %s/%s", key.TenantID, key.RidingTypeID)

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := send(&ev); err != nil {
				s.l.Errorf(ctx, "service.waitlistService.StreamBoard: %v", err)
				return err
			}
		}
	}
}

// storeFilter turns requested (effective) statuses into stored statuses.
// A lapsed offer is still stored as offered, so asking for expired has to
// read offered rows too.
func storeFilter(want []models.EntryStatus, day *string) (repository.ListFilter, error) {
	f := repository.ListFilter{}
	if day != nil {
		if _, err := util.ParseDate(*day); err != nil {
			return f, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		f.RequestedDay = day
	}

	seen := make(map[models.EntryStatus]bool)
	for _, st := range want {
		if !st.IsValid() {
			return f, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, st)
		}
		if !seen[st] {
			seen[st] = true
			f.Statuses = append(f.Statuses, st)
		}
	}
	if seen[models.EntryStatusExpired] && !seen[models.EntryStatusOffered] {
		f.Statuses = append(f.Statuses, models.EntryStatusOffered)
	}
	return f, nil
}

// keepStatuses filters by effective status. An empty want keeps everything.
func keepStatuses(es []models.Entry, want []models.EntryStatus) []models.Entry {
	if len(want) == 0 {
		return es
	}
	out := make([]models.Entry, 0, len(es))
	for _, e := range es {
		for _, st := range want {
			if e.Status == st {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
