package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenEmpty         = errors.New("offer token is empty")
	ErrTokenInvalid       = errors.New("offer token is invalid")
	ErrTokenInvalidClaims = errors.New("offer token claims do not match the offer")
)

type OfferClaims struct {
	EntryID      string `json:"entry_id"`
	OccurrenceID string `json:"occurrence_id"`
	jwt.RegisteredClaims
}

// offerTokens signs and verifies single-use offer tokens. Single use is
// enforced by the entry leaving offered, not by the token itself.
type offerTokens struct {
	secret []byte
	now    func() time.Time
}

func newOfferTokens(secret string, now func() time.Time) *offerTokens {
	return &offerTokens{secret: []byte(secret), now: now}
}

func (t *offerTokens) Issue(entryID, occurrenceID string, expAt time.Time) (string, error) {
	claims := OfferClaims{
		EntryID:      entryID,
		OccurrenceID: occurrenceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expAt),
			IssuedAt:  jwt.NewNumericDate(t.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign offer token: %w", err)
	}

	return tokenStr, nil
}

func (t *offerTokens) Verify(token string) (*OfferClaims, error) {
	if token == "" {
		return nil, ErrTokenEmpty
	}

	var claims OfferClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}
