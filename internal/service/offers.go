package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka"
	"github.com/vogiaan1904/farm-waitlist/internal/lifecycle"
	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/pkg/util"
)

// parentTargets are the statuses a parent may move their own entry to.
var parentTargets = map[models.EntryStatus]bool{
	models.EntryStatusActive:    true,
	models.EntryStatusPaused:    true,
	models.EntryStatusCancelled: true,
	models.EntryStatusAccepted:  true,
	models.EntryStatusDeclined:  true,
}

func (s *waitlistService) SetStatus(ctx context.Context, caller models.Caller, in SetStatusInput) (*models.Entry, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	if !caller.IsStaff() && !parentTargets[in.Status] {
		return nil, fmt.Errorf("%w: parents cannot set %s", ErrForbidden, in.Status)
	}

	e, err := s.loadEntry(ctx, caller, in.EntryID)
	if err != nil {
		return nil, err
	}

	if in.Status == models.EntryStatusOffered {
		if in.OccurrenceID == "" {
			return nil, fmt.Errorf("%w: occurrence id is required to offer", ErrInvalidArgument)
		}
		return s.offerEntry(ctx, caller, e.Key(), func(p *repository.Partition) (string, error) {
			return e.ID, nil
		}, in.OccurrenceID)
	}

	now := s.now()
	if err := lifecycle.Check(e, in.Status, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	patch := models.EntryPatch{Status: &in.Status}
	switch in.Status {
	case models.EntryStatusAccepted:
		if err := s.checkOfferToken(e, in.OfferToken); err != nil {
			s.l.Warnf(ctx, "service.waitlistService.SetStatus: entry %s: %v", e.ID, err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		patch.ClearOffer = true
	case models.EntryStatusDeclined:
		patch.ClearOffer = true
	case models.EntryStatusExpired:
		patch.ClearOffer = true
		patch.KeepOfferExpiry = true
	}

	out, err := s.entries.UpdateFields(ctx, caller.TenantID, e.ID, e.Status, patch)
	if err != nil {
		return nil, s.mutationErr(ctx, "SetStatus", err)
	}

	s.l.Infof(ctx, "Entry %s: %s -> %s by %s", e.ID, e.Status, out.Status, caller.UserID)
	s.statusChanged(ctx, caller, e.Status, out)

	return out, nil
}

func (s *waitlistService) checkOfferToken(e *models.Entry, token string) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if claims.EntryID != e.ID || token != e.Offer.Token {
		return ErrTokenInvalidClaims
	}
	return nil
}

func (s *waitlistService) OfferNext(ctx context.Context, caller models.Caller, in OfferNextInput) (*models.Entry, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if in.OccurrenceID == "" {
		return nil, fmt.Errorf("%w: occurrence id is required", ErrInvalidArgument)
	}
	if in.RequestedDay != nil {
		if _, err := util.ParseDate(*in.RequestedDay); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if _, err := s.ridingType(ctx, caller.TenantID, in.RidingTypeID); err != nil {
		return nil, err
	}

	key := models.PartitionKey{TenantID: caller.TenantID, RidingTypeID: in.RidingTypeID}
	return s.offerEntry(ctx, caller, key, func(p *repository.Partition) (string, error) {
		now := s.now()
		candidates := make([]models.Entry, 0)
		for _, e := range p.Entries() {
			if e.Status != models.EntryStatusActive {
				continue
			}
			if in.RequestedDay != nil && e.Preferences.RequestedDay != nil && *e.Preferences.RequestedDay != *in.RequestedDay {
				continue
			}
			if hasOutstandingOffer(p, e.ChildID, now) {
				continue
			}
			candidates = append(candidates, e)
		}
		if len(candidates) == 0 {
			return "", fmt.Errorf("%w: no eligible entry", ErrNotFound)
		}
		models.SortEntries(candidates)
		return candidates[0].ID, nil
	}, in.OccurrenceID)
}

// offerEntry moves the entry chosen by pick to offered inside a partition
// mutation, so two offers for the same child cannot both commit.
func (s *waitlistService) offerEntry(
	ctx context.Context,
	caller models.Caller,
	key models.PartitionKey,
	pick func(p *repository.Partition) (string, error),
	occurrenceID string,
) (*models.Entry, error) {
	var (
		offered models.Entry
		from    models.EntryStatus
	)
	v, err := s.entries.Mutate(ctx, key, func(p *repository.Partition) error {
		id, err := pick(p)
		if err != nil {
			return err
		}

		cur, ok := p.Find(id)
		if !ok {
			return fmt.Errorf("%w: entry %s is closed", ErrInvalidTransition, id)
		}
		now := s.now()
		if err := lifecycle.Check(&cur, models.EntryStatusOffered, now); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		if hasOutstandingOffer(p, cur.ChildID, now) {
			return fmt.Errorf("%w: child %s already holds an offer", ErrInvalidTransition, cur.ChildID)
		}

		expAt := now.Add(s.offerTTL).Truncate(time.Second)
		token, err := s.tokens.Issue(cur.ID, occurrenceID, expAt)
		if err != nil {
			return err
		}

		st := models.EntryStatusOffered
		if err := p.Update(cur.ID, models.EntryPatch{
			Status: &st,
			Offer: &models.Offer{
				LinkedOccurrenceID: occurrenceID,
				ExpiresAt:          &expAt,
				Token:              token,
			},
		}); err != nil {
			return err
		}
		from = cur.Status
		offered, _ = p.Find(cur.ID)
		return nil
	})
	if err != nil {
		return nil, s.mutationErr(ctx, "offerEntry", err)
	}

	s.l.Infof(ctx, "Entry %s offered occurrence %s until %s", offered.ID, occurrenceID, util.TimePtrToISO8601Str(offered.Offer.ExpiresAt))

	if s.prod != nil {
		if err := s.prod.PublishOfferCreated(ctx, kafka.OfferCreatedEvent{
			EntryID:      offered.ID,
			TenantID:     offered.TenantID,
			RidingTypeID: offered.RidingTypeID,
			ParentID:     offered.ParentID,
			ChildID:      offered.ChildID,
			OccurrenceID: occurrenceID,
			OfferToken:   offered.Offer.Token,
			ExpiresAt:    *offered.Offer.ExpiresAt,
		}); err != nil {
			s.l.Errorf(ctx, "service.waitlistService.offerEntry: %v", err)
		}
	}
	s.statusChangedAt(ctx, caller, from, &offered, v)

	return &offered, nil
}

func hasOutstandingOffer(p *repository.Partition, childID string, now time.Time) bool {
	for _, e := range p.Entries() {
		if e.ChildID == childID && lifecycle.Effective(&e, now) == models.EntryStatusOffered {
			return true
		}
	}
	return false
}

// ExpireLapsedOffers persists expiry for offers that lapsed. Reads already
// treat them as expired; this only makes the stored status and the emitted
// events catch up.
func (s *waitlistService) ExpireLapsedOffers(ctx context.Context, limit int) (int, error) {
	now := s.now()
	lapsed, err := s.entries.ListLapsedOffers(ctx, now, limit)
	if err != nil {
		s.l.Errorf(ctx, "service.waitlistService.ExpireLapsedOffers: %v", err)
		return 0, storeErr(err)
	}

	expired := 0
	for i := range lapsed {
		e := &lapsed[i]
		if err := lifecycle.Check(e, models.EntryStatusExpired, now); err != nil {
			continue
		}

		st := models.EntryStatusExpired
		out, err := s.entries.UpdateFields(ctx, e.TenantID, e.ID, models.EntryStatusOffered, models.EntryPatch{
			Status:          &st,
			ClearOffer:      true,
			KeepOfferExpiry: true,
		})
		if errors.Is(err, repository.ErrConflict) {
			// resolved by someone else since it was listed
			continue
		}
		if err != nil {
			s.l.Errorf(ctx, "service.waitlistService.ExpireLapsedOffers: entry %s: %v", e.ID, err)
			return expired, storeErr(err)
		}

		expired++
		s.statusChanged(ctx, models.SystemCaller(e.TenantID), models.EntryStatusOffered, out)
	}

	if expired > 0 {
		s.l.Infof(ctx, "Expired %d lapsed offers", expired)
	}
	return expired, nil
}

func (s *waitlistService) HandleSlotReleased(ctx context.Context, in SlotReleasedInput) error {
	caller := models.SystemCaller(in.TenantID)
	e, err := s.OfferNext(ctx, caller, OfferNextInput{
		RidingTypeID: in.RidingTypeID,
		OccurrenceID: in.OccurrenceID,
		RequestedDay: in.RequestedDay,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		s.l.Infof(ctx, "Slot %s released for %s: nobody to offer it to", in.OccurrenceID, in.RidingTypeID)
		return nil
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrForbidden):
		s.l.Warnf(ctx, "service.waitlistService.HandleSlotReleased: dropping event: %v", err)
		return nil
	case err != nil:
		return err
	}

	s.l.Infof(ctx, "Slot %s released for %s offered to entry %s", in.OccurrenceID, in.RidingTypeID, e.ID)
	return nil
}

func (s *waitlistService) statusChanged(ctx context.Context, caller models.Caller, from models.EntryStatus, e *models.Entry) {
	s.statusChangedAt(ctx, caller, from, e, 0)
}

func (s *waitlistService) statusChangedAt(ctx context.Context, caller models.Caller, from models.EntryStatus, e *models.Entry, version int64) {
	if s.prod != nil {
		if err := s.prod.PublishStatusChanged(ctx, kafka.StatusChangedEvent{
			EntryID:      e.ID,
			TenantID:     e.TenantID,
			RidingTypeID: e.RidingTypeID,
			ParentID:     e.ParentID,
			ChildID:      e.ChildID,
			From:         string(from),
			To:           string(e.Status),
			ActorID:      caller.UserID,
		}); err != nil {
			s.l.Errorf(ctx, "service.waitlistService.statusChanged: %v", err)
		}
	}
	s.notifyBoard(ctx, e.Key(), models.BoardChangeStatusChanged, version, e.ID)
}

func (s *waitlistService) notifyBoard(ctx context.Context, key models.PartitionKey, typ models.BoardChangeType, version int64, ids ...string) {
	if s.board == nil {
		return
	}
	if err := s.board.PublishBoardChange(ctx, models.BoardChangeEvent{
		TenantID:         key.TenantID,
		RidingTypeID:     key.RidingTypeID,
		ChangeType:       typ,
		AffectedEntryIDs: ids,
		Version:          version,
		Timestamp:        s.now(),
	}); err != nil {
		s.l.Errorf(ctx, "service.waitlistService.notifyBoard: %v", err)
	}
}
