package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

// LoggingUnaryInterceptor tags the context with the method and caller and
// logs one line per call.
func LoggingUnaryInterceptor(l logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = withCallFields(ctx, l, info.FullMethod)

		start := time.Now()
		resp, err := handler(ctx, req)
		l.Infof(ctx, "%s %s in %s", info.FullMethod, status.Code(err), time.Since(start))
		return resp, err
	}
}

func LoggingStreamInterceptor(l logger.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := withCallFields(ss.Context(), l, info.FullMethod)

		start := time.Now()
		err := handler(srv, &loggedStream{ServerStream: ss, ctx: ctx})
		l.Infof(ctx, "%s %s after %s", info.FullMethod, status.Code(err), time.Since(start))
		return err
	}
}

func withCallFields(ctx context.Context, l logger.Logger, method string) context.Context {
	kv := []any{"method", method}
	if c, err := callerFromContext(ctx); err == nil {
		kv = append(kv, "tenant_id", c.TenantID, "caller_id", c.UserID)
	}
	return l.With(ctx, kv...)
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context { return s.ctx }
