package grpc

import (
	"context"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery"
	resp "github.com/vogiaan1904/farm-waitlist/pkg/response"
)

// mapGRPCError converts a service error into a gRPC status. Errors without a
// business code are logged here and reach the client as Internal.
func (s *grpcService) mapGRPCError(ctx context.Context, method string, err error) error {
	if _, ok := delivery.LookupError(err); !ok {
		s.l.Errorf(ctx, "delivery.grpc.%s: %v", method, err)
	}
	return resp.ParseGRPCError(delivery.GRPCError(err))
}
