package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func offered(expiresIn time.Duration) *models.Entry {
	exp := now.Add(expiresIn)
	return &models.Entry{
		ID:     "e1",
		Status: models.EntryStatusOffered,
		Offer:  models.Offer{LinkedOccurrenceID: "occ", ExpiresAt: &exp, Token: "tok"},
	}
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(models.EntryStatusActive, models.EntryStatusPaused))
	assert.True(t, Allowed(models.EntryStatusPaused, models.EntryStatusActive))
	assert.True(t, Allowed(models.EntryStatusPaused, models.EntryStatusOffered))
	assert.True(t, Allowed(models.EntryStatusOffered, models.EntryStatusAccepted))
	assert.False(t, Allowed(models.EntryStatusOffered, models.EntryStatusOffered))
	assert.False(t, Allowed(models.EntryStatusOffered, models.EntryStatusCancelled))
	assert.False(t, Allowed(models.EntryStatusActive, models.EntryStatusAccepted))
	assert.False(t, Allowed(models.EntryStatusActive, models.EntryStatusActive))
}

func TestClosedStatusesHaveNoExit(t *testing.T) {
	closed := []models.EntryStatus{
		models.EntryStatusAccepted,
		models.EntryStatusDeclined,
		models.EntryStatusExpired,
		models.EntryStatusCancelled,
	}
	for _, from := range closed {
		assert.Empty(t, Targets(from))
		for _, to := range models.AllStatuses {
			e := &models.Entry{Status: from}
			assert.ErrorIs(t, Check(e, to, now), ErrInvalidTransition, "%s -> %s", from, to)
		}
	}
}

func TestEffective(t *testing.T) {
	assert.Equal(t, models.EntryStatusOffered, Effective(offered(time.Minute), now))
	assert.Equal(t, models.EntryStatusExpired, Effective(offered(-time.Second), now))
	// exactly at the expiry instant the offer still stands
	assert.Equal(t, models.EntryStatusOffered, Effective(offered(0), now))

	active := &models.Entry{Status: models.EntryStatusActive}
	assert.Equal(t, models.EntryStatusActive, Effective(active, now))
}

func TestApply(t *testing.T) {
	got := Apply(*offered(-time.Minute), now)
	assert.Equal(t, models.EntryStatusExpired, got.Status)
	assert.Empty(t, got.Offer.Token)
	assert.NotNil(t, got.Offer.ExpiresAt)

	live := Apply(*offered(time.Minute), now)
	assert.Equal(t, models.EntryStatusOffered, live.Status)
	assert.Equal(t, "tok", live.Offer.Token)
}

func TestCheckExpiry(t *testing.T) {
	assert.ErrorIs(t, Check(offered(time.Minute), models.EntryStatusExpired, now), ErrInvalidTransition)
	assert.NoError(t, Check(offered(-time.Minute), models.EntryStatusExpired, now))

	// a lapsed offer can no longer be answered
	assert.ErrorIs(t, Check(offered(-time.Minute), models.EntryStatusAccepted, now), ErrInvalidTransition)
	assert.ErrorIs(t, Check(offered(-time.Minute), models.EntryStatusDeclined, now), ErrInvalidTransition)

	assert.NoError(t, Check(offered(time.Minute), models.EntryStatusDeclined, now))
	assert.ErrorIs(t, Check(&models.Entry{Status: models.EntryStatusActive}, models.EntryStatusExpired, now), ErrInvalidTransition)
	assert.ErrorIs(t, Check(&models.Entry{Status: models.EntryStatusActive}, "bogus", now), ErrInvalidTransition)
}
