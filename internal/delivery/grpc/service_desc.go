package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
	pkgGrpc "github.com/vogiaan1904/farm-waitlist/pkg/grpc"
)

// WaitlistServer is the server side of waitlist.v1.WaitlistService.
type WaitlistServer interface {
	ListRidingTypes(ctx context.Context, req *ListRidingTypesRequest) (*ListRidingTypesResponse, error)
	SaveRidingType(ctx context.Context, req *service.SaveRidingTypeInput) (*models.RidingType, error)
	ListEntriesByType(ctx context.Context, req *service.ListEntriesInput) (*service.Board, error)
	ListMyEntries(ctx context.Context, req *ListMyEntriesRequest) (*EntriesResponse, error)
	GetEntry(ctx context.Context, req *EntryRequest) (*models.Entry, error)
	AddEntry(ctx context.Context, req *service.AddEntryInput) (*models.Entry, error)
	MoveEntry(ctx context.Context, req *service.MoveEntryInput) (*service.MoveEntryOutput, error)
	SetPriority(ctx context.Context, req *SetPriorityRequest) (*models.Entry, error)
	SetStatus(ctx context.Context, req *service.SetStatusInput) (*models.Entry, error)
	SetLastContacted(ctx context.Context, req *EntryRequest) (*models.Entry, error)
	SetNotes(ctx context.Context, req *SetNotesRequest) (*models.Entry, error)
	Normalize(ctx context.Context, req *RidingTypeRequest) (*NormalizeResponse, error)
	OfferNext(ctx context.Context, req *service.OfferNextInput) (*models.Entry, error)
	StreamBoard(req *RidingTypeRequest, stream grpc.ServerStream) error
}

func RegisterWaitlistServer(s grpc.ServiceRegistrar, srv WaitlistServer) {
	s.RegisterService(&WaitlistServiceDesc, srv)
}

// WaitlistServiceDesc is written by hand; messages travel with the JSON
// codec from pkg/grpc instead of generated protobuf types.
var WaitlistServiceDesc = grpc.ServiceDesc{
	ServiceName: pkgGrpc.WaitlistServiceName,
	HandlerType: (*WaitlistServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListRidingTypes", WaitlistServer.ListRidingTypes),
		unary("SaveRidingType", WaitlistServer.SaveRidingType),
		unary("ListEntriesByType", WaitlistServer.ListEntriesByType),
		unary("ListMyEntries", WaitlistServer.ListMyEntries),
		unary("GetEntry", WaitlistServer.GetEntry),
		unary("AddEntry", WaitlistServer.AddEntry),
		unary("MoveEntry", WaitlistServer.MoveEntry),
		unary("SetPriority", WaitlistServer.SetPriority),
		unary("SetStatus", WaitlistServer.SetStatus),
		unary("SetLastContacted", WaitlistServer.SetLastContacted),
		unary("SetNotes", WaitlistServer.SetNotes),
		unary("Normalize", WaitlistServer.Normalize),
		unary("OfferNext", WaitlistServer.OfferNext),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamBoard",
			Handler:       streamBoardHandler,
			ServerStreams: true,
		},
	},
	Metadata: "waitlist/v1/waitlist.json",
}

func unary[Req, Resp any](name string, call func(WaitlistServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(WaitlistServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: pkgGrpc.MethodName(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(WaitlistServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func streamBoardHandler(srv any, stream grpc.ServerStream) error {
	in := new(RidingTypeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(WaitlistServer).StreamBoard(in, stream)
}
