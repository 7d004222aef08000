package service

import (
	"errors"

	"github.com/vogiaan1904/farm-waitlist/internal/repository"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("concurrent modification, re-read and retry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidNeighbors  = errors.New("invalid move neighbours")
	ErrDuplicateActive   = errors.New("child already has an open entry for this riding type")
	ErrForbidden         = errors.New("caller is not allowed to perform this operation")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrStreamUnavailable = errors.New("board stream is not available")
)

// storeErr translates repository errors into service errors.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	default:
		return err
	}
}
