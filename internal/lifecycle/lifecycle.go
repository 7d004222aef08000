// Package lifecycle holds the waitlist entry state machine and the lazy
// offer-expiry rule.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[models.EntryStatus][]models.EntryStatus{
	models.EntryStatusActive: {
		models.EntryStatusPaused,
		models.EntryStatusOffered,
		models.EntryStatusCancelled,
	},
	models.EntryStatusPaused: {
		models.EntryStatusActive,
		models.EntryStatusOffered,
		models.EntryStatusCancelled,
	},
	models.EntryStatusOffered: {
		models.EntryStatusAccepted,
		models.EntryStatusDeclined,
		models.EntryStatusExpired,
	},
}

// Allowed reports whether the table has an edge from -> to. It does not look
// at offer expiry; use Check for that.
func Allowed(from, to models.EntryStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Targets lists the statuses reachable from s.
func Targets(s models.EntryStatus) []models.EntryStatus {
	out := make([]models.EntryStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// Effective returns the status a reader should see: an offer past its expiry
// reads as expired even before anything persists it.
func Effective(e *models.Entry, now time.Time) models.EntryStatus {
	if e.OfferLapsed(now) {
		return models.EntryStatusExpired
	}
	return e.Status
}

// Apply returns a copy of e with its effective status materialised and the
// offer token dropped when the offer has lapsed.
func Apply(e models.Entry, now time.Time) models.Entry {
	if e.OfferLapsed(now) {
		e.Status = models.EntryStatusExpired
		e.Offer.Token = ""
		e.Offer.LinkedOccurrenceID = ""
	}
	return e
}

// Check validates moving e to the target status at now.
//
// Expiry is the one edge driven by the clock: offered -> expired is only
// legal once the offer has lapsed, and a lapsed offer can go nowhere else.
func Check(e *models.Entry, to models.EntryStatus, now time.Time) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	from := Effective(e, now)
	if to == models.EntryStatusExpired {
		if e.Status == models.EntryStatusOffered && from == models.EntryStatusExpired {
			return nil
		}
		if e.Status == models.EntryStatusOffered {
			return fmt.Errorf("%w: offer has not lapsed", ErrInvalidTransition)
		}
	}

	if !Allowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
