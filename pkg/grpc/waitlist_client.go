package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	WaitlistServiceName = "waitlist.v1.WaitlistService"

	MetadataTenantID   = "x-tenant-id"
	MetadataCallerID   = "x-caller-id"
	MetadataCallerRole = "x-caller-role"
)

// MethodName returns the full gRPC method path for a waitlist RPC.
func MethodName(method string) string {
	return "/" + WaitlistServiceName + "/" + method
}

type WaitlistClient struct {
	conn *grpc.ClientConn
}

// NewWaitlistClient dials the waitlist service over plaintext. Extra options
// are applied after the defaults.
func NewWaitlistClient(addr string, opts ...grpc.DialOption) (*WaitlistClient, func(), error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create waitlist client: %w", err)
	}

	return &WaitlistClient{conn: conn}, func() { conn.Close() }, nil
}

// WithCaller attaches the caller identity the service authorizes against.
func WithCaller(ctx context.Context, tenantID, callerID, role string) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		MetadataTenantID, tenantID,
		MetadataCallerID, callerID,
		MetadataCallerRole, role,
	)
}

// Call invokes a unary RPC by method name, e.g. "AddEntry".
func (c *WaitlistClient) Call(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, MethodName(method), in, out)
}

// StreamBoard opens the board stream. Read updates with RecvMsg until it
// returns an error.
func (c *WaitlistClient) StreamBoard(ctx context.Context, in any) (grpc.ClientStream, error) {
	desc := &grpc.StreamDesc{StreamName: "StreamBoard", ServerStreams: true}
	st, err := c.conn.NewStream(ctx, desc, MethodName("StreamBoard"))
	if err != nil {
		return nil, err
	}
	if err := st.SendMsg(in); err != nil {
		return nil, err
	}
	if err := st.CloseSend(); err != nil {
		return nil, err
	}
	return st, nil
}
