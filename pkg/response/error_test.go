package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgErrors "github.com/vogiaan1904/farm-waitlist/pkg/errors"
)

func TestParseHTTPError(t *testing.T) {
	code, body := ParseHTTPError(fmt.Errorf("wrapped: %w", pkgErrors.NewHTTPError(http.StatusConflict, "WTL002", "stale board")))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, Resp{ErrorCode: "WTL002", Message: "stale board"}, body)

	code, body = ParseHTTPError(pkgErrors.NewHTTPError(0, "X", "no status"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "X", body.ErrorCode)

	code, body = ParseHTTPError(errors.New("db password leaked here"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body.Message)
}

func TestParseGRPCError(t *testing.T) {
	err := ParseGRPCError(pkgErrors.NewGRPCError(codes.NotFound, "WTL001", "entry e1"))
	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "WTL001 - entry e1", st.Message())

	st, _ = status.FromError(ParseGRPCError(errors.New("boom")))
	assert.Equal(t, codes.Internal, st.Code())
}
