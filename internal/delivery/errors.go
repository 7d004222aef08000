// Package delivery holds what the HTTP and gRPC transports share.
package delivery

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/vogiaan1904/farm-waitlist/internal/service"
	pkgErrors "github.com/vogiaan1904/farm-waitlist/pkg/errors"
)

// ErrorMapping ties a service error to its business code and transport
// statuses.
type ErrorMapping struct {
	Target   error
	Business *pkgErrors.BusinessError
	GRPC     codes.Code
	HTTP     int
}

var errorMappings = []ErrorMapping{
	{service.ErrNotFound, pkgErrors.NewBusinessError("WTL001", "Not found"), codes.NotFound, http.StatusNotFound},
	{service.ErrConflict, pkgErrors.NewBusinessError("WTL002", "Concurrent modification"), codes.Aborted, http.StatusConflict},
	{service.ErrInvalidTransition, pkgErrors.NewBusinessError("WTL003", "Invalid status transition"), codes.FailedPrecondition, http.StatusUnprocessableEntity},
	{service.ErrInvalidNeighbors, pkgErrors.NewBusinessError("WTL004", "Invalid move neighbours"), codes.InvalidArgument, http.StatusBadRequest},
	{service.ErrDuplicateActive, pkgErrors.NewBusinessError("WTL005", "Duplicate open entry"), codes.AlreadyExists, http.StatusConflict},
	{service.ErrForbidden, pkgErrors.NewBusinessError("WTL006", "Forbidden"), codes.PermissionDenied, http.StatusForbidden},
	{service.ErrInvalidArgument, pkgErrors.NewBusinessError("WTL007", "Invalid argument"), codes.InvalidArgument, http.StatusBadRequest},
	{service.ErrStreamUnavailable, pkgErrors.NewBusinessError("WTL008", "Board stream unavailable"), codes.Unavailable, http.StatusServiceUnavailable},
}

// LookupError finds the mapping for err, matching wrapped errors.
func LookupError(err error) (ErrorMapping, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.Target) {
			return m, true
		}
	}
	return ErrorMapping{}, false
}

// GRPCError converts a service error into a typed gRPC error carrying the
// service's message. Unknown errors are returned unchanged.
func GRPCError(err error) error {
	m, ok := LookupError(err)
	if !ok {
		return err
	}
	return pkgErrors.NewGRPCError(m.GRPC, m.Business.Code, err.Error())
}

// HTTPError is GRPCError for the HTTP transport.
func HTTPError(err error) error {
	m, ok := LookupError(err)
	if !ok {
		return err
	}
	return pkgErrors.NewHTTPError(m.HTTP, m.Business.Code, err.Error())
}
