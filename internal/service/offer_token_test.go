package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferTokens(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tokens := newOfferTokens("secret", clock)

	tok, err := tokens.Issue("e1", "occ-1", now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "e1", claims.EntryID)
	assert.Equal(t, "occ-1", claims.OccurrenceID)
	assert.NotEmpty(t, claims.ID)

	other, err := tokens.Issue("e1", "occ-1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, tok, other, "each offer gets its own jti")

	_, err = newOfferTokens("different", clock).Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = tokens.Verify("")
	assert.ErrorIs(t, err, ErrTokenEmpty)

	_, err = tokens.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	later := newOfferTokens("secret", func() time.Time { return now.Add(2 * time.Hour) })
	_, err = later.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestOfferTokensRejectOtherAlgorithms(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	claims := OfferClaims{
		EntryID: "e1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = newOfferTokens("secret", func() time.Time { return now }).Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
