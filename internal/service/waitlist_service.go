package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vogiaan1904/farm-waitlist/config"
	"github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/farm-waitlist/internal/lifecycle"
	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	redisRepo "github.com/vogiaan1904/farm-waitlist/internal/repository/redis"
	pkgLog "github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

type WaitlistService interface {
	ListRidingTypes(ctx context.Context, caller models.Caller) ([]models.RidingType, error)
	SaveRidingType(ctx context.Context, caller models.Caller, in SaveRidingTypeInput) (*models.RidingType, error)

	ListEntriesByType(ctx context.Context, caller models.Caller, in ListEntriesInput) (*Board, error)
	ListMyEntries(ctx context.Context, caller models.Caller, parentID string) ([]models.Entry, error)
	GetEntry(ctx context.Context, caller models.Caller, entryID string) (*models.Entry, error)

	AddEntry(ctx context.Context, caller models.Caller, in AddEntryInput) (*models.Entry, error)
	MoveEntry(ctx context.Context, caller models.Caller, in MoveEntryInput) (*MoveEntryOutput, error)
	SetPriority(ctx context.Context, caller models.Caller, entryID string, priority int) (*models.Entry, error)
	SetStatus(ctx context.Context, caller models.Caller, in SetStatusInput) (*models.Entry, error)
	SetLastContacted(ctx context.Context, caller models.Caller, entryID string) (*models.Entry, error)
	SetNotes(ctx context.Context, caller models.Caller, entryID, notes string) (*models.Entry, error)
	Normalize(ctx context.Context, caller models.Caller, ridingTypeID string) (int64, error)

	OfferNext(ctx context.Context, caller models.Caller, in OfferNextInput) (*models.Entry, error)
	ExpireLapsedOffers(ctx context.Context, limit int) (int, error)
	HandleSlotReleased(ctx context.Context, in SlotReleasedInput) error

	// StreamBoard sends the board once, then again after every change
	// announced for the partition, until ctx is done.
	StreamBoard(ctx context.Context, caller models.Caller, ridingTypeID string, upds chan<- *BoardStreamUpdate) error
}

type BoardStreamUpdate struct {
	Change *models.BoardChangeEvent `json:"change,omitempty"`
	Board  *Board                   `json:"board"`
}

const maxNotesLength = 4000

type waitlistService struct {
	entries repository.EntryRepository
	types   repository.RidingTypeRepository
	prod    producer.Producer
	board   redisRepo.BoardNotifier
	tokens  *offerTokens
	l       pkgLog.Logger

	offerTTL time.Duration
	now      func() time.Time
	newID    func() string
}

// NewWaitlistService wires the engine. prod and board may be nil when Kafka
// or Redis are disabled; their side effects are then skipped.
func NewWaitlistService(
	entries repository.EntryRepository,
	types repository.RidingTypeRepository,
	prod producer.Producer,
	board redisRepo.BoardNotifier,
	l pkgLog.Logger,
	cfg config.OfferConfig,
) WaitlistService {
	s := &waitlistService{
		entries:  entries,
		types:    types,
		prod:     prod,
		board:    board,
		l:        l,
		offerTTL: cfg.TTL,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	s.tokens = newOfferTokens(cfg.TokenSecret, func() time.Time { return s.now() })
	return s
}

func (s *waitlistService) ListRidingTypes(ctx context.Context, caller models.Caller) ([]models.RidingType, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}

	rts, err := s.types.List(ctx, caller.TenantID)
	if err != nil {
		s.l.Errorf(ctx, "service.waitlistService.ListRidingTypes: %v", err)
		return nil, storeErr(err)
	}
	return rts, nil
}

func (s *waitlistService) SaveRidingType(ctx context.Context, caller models.Caller, in SaveRidingTypeInput) (*models.RidingType, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if in.Code == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: code and name are required", ErrInvalidArgument)
	}
	if in.MinParticipants < 0 || in.MaxParticipants < 0 ||
		(in.MaxParticipants > 0 && in.MinParticipants > in.MaxParticipants) {
		return nil, fmt.Errorf("%w: participant bounds", ErrInvalidArgument)
	}

	now := s.now()
	rt := &models.RidingType{
		ID:              in.ID,
		TenantID:        caller.TenantID,
		Code:            in.Code,
		Name:            in.Name,
		Description:     in.Description,
		MinParticipants: in.MinParticipants,
		MaxParticipants: in.MaxParticipants,
		Active:          in.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if rt.ID == "" {
		rt.ID = s.newID()
	} else {
		cur, err := s.types.Get(ctx, caller.TenantID, rt.ID)
		switch {
		case err == nil:
			rt.CreatedAt = cur.CreatedAt
		case !errors.Is(err, repository.ErrNotFound):
			s.l.Errorf(ctx, "service.waitlistService.SaveRidingType: %v", err)
			return nil, storeErr(err)
		}
	}

	if err := s.types.Save(ctx, rt); err != nil {
		s.l.Errorf(ctx, "service.waitlistService.SaveRidingType: %v", err)
		return nil, storeErr(err)
	}
	return rt, nil
}

func (s *waitlistService) ridingType(ctx context.Context, tenantID, id string) (*models.RidingType, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: riding type id is required", ErrInvalidArgument)
	}
	rt, err := s.types.Get(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("riding type %s: %w", id, storeErr(err))
	}
	return rt, nil
}

func (s *waitlistService) loadEntry(ctx context.Context, caller models.Caller, entryID string) (*models.Entry, error) {
	if entryID == "" {
		return nil, fmt.Errorf("%w: entry id is required", ErrInvalidArgument)
	}
	e, err := s.entries.Get(ctx, caller.TenantID, entryID)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, storeErr(err))
	}
	if !caller.IsStaff() && e.ParentID != caller.UserID {
		return nil, ErrForbidden
	}
	return e, nil
}

func checkCaller(c models.Caller) error {
	if c.TenantID == "" || c.UserID == "" {
		return fmt.Errorf("%w: missing caller identity", ErrForbidden)
	}
	if c.Role != models.RoleParent && c.Role != models.RoleStaff {
		return fmt.Errorf("%w: unknown role %q", ErrForbidden, c.Role)
	}
	return nil
}

func requireStaff(c models.Caller) error {
	if err := checkCaller(c); err != nil {
		return err
	}
	if !c.IsStaff() {
		return fmt.Errorf("%w: staff only", ErrForbidden)
	}
	return nil
}

// effective materialises lazy expiry on a list while keeping its order.
func (s *waitlistService) effective(es []models.Entry) []models.Entry {
	now := s.now()
	out := make([]models.Entry, len(es))
	for i, e := range es {
		out[i] = lifecycle.Apply(e, now)
	}
	return out
}
