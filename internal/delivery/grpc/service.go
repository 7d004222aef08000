package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery"
	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
	pkgGrpc "github.com/vogiaan1904/farm-waitlist/pkg/grpc"
)

type grpcService struct {
	svc service.WaitlistService
	l   logger.Logger
}

func NewGrpcService(svc service.WaitlistService, l logger.Logger) WaitlistServer {
	return &grpcService{
		svc: svc,
		l:   l,
	}
}

func callerFromContext(ctx context.Context) (models.Caller, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	first := func(key string) string {
		if vs := md.Get(key); len(vs) > 0 {
			return vs[0]
		}
		return ""
	}
	return delivery.ParseCaller(
		first(pkgGrpc.MetadataTenantID),
		first(pkgGrpc.MetadataCallerID),
		first(pkgGrpc.MetadataCallerRole),
	)
}

func (s *grpcService) ListRidingTypes(ctx context.Context, _ *ListRidingTypesRequest) (*ListRidingTypesResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "ListRidingTypes", err)
	}

	rts, err := s.svc.ListRidingTypes(ctx, caller)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "ListRidingTypes", err)
	}

	return &ListRidingTypesResponse{RidingTypes: rts}, nil
}

func (s *grpcService) SaveRidingType(ctx context.Context, req *service.SaveRidingTypeInput) (*models.RidingType, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SaveRidingType", err)
	}

	rt, err := s.svc.SaveRidingType(ctx, caller, *req)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SaveRidingType", err)
	}

	return rt, nil
}

func (s *grpcService) ListEntriesByType(ctx context.Context, req *service.ListEntriesInput) (*service.Board, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "ListEntriesByType", err)
	}

	b, err := s.svc.ListEntriesByType(ctx, caller, *req)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "ListEntriesByType", err)
	}

	return b, nil
}

func (s *grpcService) ListMyEntries(ctx context.Context, req *ListMyEntriesRequest) (*EntriesResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "ListMyEntries", err)
	}

	es, err := s.svc.ListMyEntries(ctx, caller, req.ParentID)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "ListMyEntries", err)
	}

	return &EntriesResponse{Entries: es}, nil
}

func (s *grpcService) GetEntry(ctx context.Context, req *EntryRequest) (*models.Entry, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "GetEntry", err)
	}

	e, err := s.svc.GetEntry(ctx, caller, req.EntryID)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "GetEntry", err)
	}

	return e, nil
}

func (s *grpcService) AddEntry(ctx context.Context, req *service.AddEntryInput) (*models.Entry, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "AddEntry", err)
	}

	e, err := s.svc.AddEntry(ctx, caller, *req)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "AddEntry", err)
	}

	return e, nil
}

func (s *grpcService) MoveEntry(ctx context.Context, req *service.MoveEntryInput) (*service.MoveEntryOutput, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "MoveEntry", err)
	}

	out, err := s.svc.MoveEntry(ctx, caller, *req)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "MoveEntry", err)
	}

	return out, nil
}

func (s *grpcService) SetPriority(ctx context.Context, req *SetPriorityRequest) (*models.Entry, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SetPriority", err)
	}

	e, err := s.svc.SetPriority(ctx, caller, req.EntryID, req.Priority)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SetPriority", err)
	}

	return e, nil
}

func (s *grpcService) SetStatus(ctx context.Context, req *service.SetStatusInput) (*models.Entry, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SetStatus", err)
	}

	e, err := s.svc.SetStatus(ctx, caller, *req)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SetStatus", err)
	}

	return e, nil
}

func (s *grpcService) SetLastContacted(ctx context.Context, req *EntryRequest) (*models.Entry, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SetLastContacted", err)
	}

	e, err := s.svc.SetLastContacted(ctx, caller, req.EntryID)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SetLastContacted", err)
	}

	return e, nil
}

func (s *grpcService) SetNotes(ctx context.Context, req *SetNotesRequest) (*models.Entry, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SetNotes", err)
	}

	e, err := s.svc.SetNotes(ctx, caller, req.EntryID, req.Notes)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "SetNotes", err)
	}

	return e, nil
}

func (s *grpcService) Normalize(ctx context.Context, req *RidingTypeRequest) (*NormalizeResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "Normalize", err)
	}

	v, err := s.svc.Normalize(ctx, caller, req.RidingTypeID)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "Normalize", err)
	}

	return &NormalizeResponse{RidingTypeID: req.RidingTypeID, Version: v}, nil
}

func (s *grpcService) OfferNext(ctx context.Context, req *service.OfferNextInput) (*models.Entry, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "OfferNext", err)
	}

	e, err := s.svc.OfferNext(ctx, caller, *req)
	if err != nil {
		return nil, s.mapGRPCError(ctx, "OfferNext", err)
	}

	return e, nil
}

func (s *grpcService) StreamBoard(req *RidingTypeRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()

	caller, err := callerFromContext(ctx)
	if err != nil {
		return s.mapGRPCError(ctx, "StreamBoard", err)
	}

	s.l.Infof(ctx, "Starting board stream for %s", req.RidingTypeID)

	upds := make(chan *service.BoardStreamUpdate, 10)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.svc.StreamBoard(ctx, caller, req.RidingTypeID, upds)
	}()

	for {
		select {
		case <-ctx.Done():
			s.l.Infof(ctx, "Board stream for %s cancelled by client", req.RidingTypeID)
			return ctx.Err()

		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				return s.mapGRPCError(ctx, "StreamBoard", err)
			}
			s.l.Infof(ctx, "Board stream for %s completed", req.RidingTypeID)
			return nil

		case upd := <-upds:
			if err := stream.SendMsg(upd); err != nil {
				s.l.Errorf(ctx, "delivery.grpc.StreamBoard: %v", err)
				return err
			}

			s.l.Debugf(ctx, "Sent board version %d for %s", upd.Board.Version, req.RidingTypeID)
		}
	}
}
