package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
)

type GRPCError struct {
	Code     string
	Message  string
	GrpcCode codes.Code
}

func NewGRPCError(grpcCode codes.Code, code string, message string) *GRPCError {
	return &GRPCError{
		Code:     code,
		Message:  message,
		GrpcCode: grpcCode,
	}
}

func (e GRPCError) Error() string {
	return fmt.Sprintf("%s - %s", e.Code, e.Message)
}
