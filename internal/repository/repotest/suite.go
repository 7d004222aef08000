// Package repotest holds behaviour tests shared by every ordering store
// implementation.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
)

// Factory returns fresh, empty repositories for one subtest.
type Factory func(t *testing.T) (repository.EntryRepository, repository.RidingTypeRepository)

var key = models.PartitionKey{TenantID: "t1", RidingTypeID: "rt1"}

var base = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func entry(id, child string, pos int64, prio int, status models.EntryStatus) models.Entry {
	return models.Entry{
		ID:           id,
		TenantID:     key.TenantID,
		RidingTypeID: key.RidingTypeID,
		ParentID:     "p-" + child,
		ChildID:      child,
		Priority:     prio,
		Position:     pos,
		Status:       status,
		CreatedAt:    base.Add(time.Duration(pos) * time.Second),
		CreatedBy:    "p-" + child,
		UpdatedAt:    base,
	}
}

func seed(t *testing.T, repo repository.EntryRepository, es ...models.Entry) int64 {
	t.Helper()
	v, err := repo.Mutate(context.Background(), key, func(p *repository.Partition) error {
		for _, e := range es {
			if err := p.Insert(e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return v
}

func ids(es []models.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

// Run exercises the EntryRepository and RidingTypeRepository contracts.
func Run(t *testing.T, newRepos Factory) {
	ctx := context.Background()

	t.Run("list orders by priority then position", func(t *testing.T) {
		repo, _ := newRepos(t)
		seed(t, repo,
			entry("a", "c1", 10, 0, models.EntryStatusActive),
			entry("b", "c2", 5, 0, models.EntryStatusPaused),
			entry("c", "c3", 20, 3, models.EntryStatusActive),
			entry("d", "c4", 1, 0, models.EntryStatusCancelled),
		)

		got, err := repo.ListByPartition(ctx, key, repository.ListFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "d", "b", "a"}, ids(got))

		got, err = repo.ListByPartition(ctx, key, repository.ListFilter{
			Statuses: []models.EntryStatus{models.EntryStatusActive},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, ids(got))

		other, err := repo.ListByPartition(ctx, models.PartitionKey{TenantID: "t2", RidingTypeID: "rt1"}, repository.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("list filters by requested day", func(t *testing.T) {
		repo, _ := newRepos(t)
		mon, tue := "2026-01-05", "2026-01-06"
		a := entry("a", "c1", 1, 0, models.EntryStatusActive)
		a.Preferences.RequestedDay = &mon
		b := entry("b", "c2", 2, 0, models.EntryStatusActive)
		b.Preferences.RequestedDay = &tue
		c := entry("c", "c3", 3, 0, models.EntryStatusActive)
		seed(t, repo, a, b, c)

		got, err := repo.ListByPartition(ctx, key, repository.ListFilter{RequestedDay: &mon})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(got))
		require.NotNil(t, got[0].Preferences.RequestedDay)
		assert.Equal(t, mon, *got[0].Preferences.RequestedDay)
	})

	t.Run("get and list by parent", func(t *testing.T) {
		repo, _ := newRepos(t)
		seed(t, repo,
			entry("a", "c1", 1, 0, models.EntryStatusActive),
			entry("b", "c1", 2, 0, models.EntryStatusCancelled),
		)

		e, err := repo.Get(ctx, key.TenantID, "a")
		require.NoError(t, err)
		assert.Equal(t, "c1", e.ChildID)
		assert.Equal(t, int64(1), e.Position)

		_, err = repo.Get(ctx, "other-tenant", "a")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = repo.Get(ctx, key.TenantID, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		mine, err := repo.ListByParent(ctx, key.TenantID, "p-c1", models.OpenStatuses)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids(mine))
	})

	t.Run("mutate bumps version only when something changed", func(t *testing.T) {
		repo, _ := newRepos(t)
		v0, err := repo.Version(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v0)

		v1 := seed(t, repo, entry("a", "c1", 1, 0, models.EntryStatusActive))
		assert.Equal(t, int64(1), v1)

		v, err := repo.Mutate(ctx, key, func(p *repository.Partition) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, v1, v)

		v2, err := repo.Mutate(ctx, key, func(p *repository.Partition) error {
			return p.SetPosition("a", 7)
		})
		require.NoError(t, err)
		assert.Equal(t, v1+1, v2)

		cur, err := repo.Version(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, v2, cur)

		e, err := repo.Get(ctx, key.TenantID, "a")
		require.NoError(t, err)
		assert.Equal(t, int64(7), e.Position)
	})

	t.Run("mutate snapshot holds open entries and max position", func(t *testing.T) {
		repo, _ := newRepos(t)
		seed(t, repo,
			entry("a", "c1", 10, 0, models.EntryStatusActive),
			entry("b", "c2", 90, 0, models.EntryStatusDeclined),
			entry("c", "c3", 5, 0, models.EntryStatusOffered),
		)

		_, err := repo.Mutate(ctx, key, func(p *repository.Partition) error {
			assert.Equal(t, []string{"c", "a"}, ids(p.Entries()))
			max, ok := p.MaxPosition()
			assert.True(t, ok)
			assert.Equal(t, int64(90), max)
			_, found := p.Find("b")
			assert.False(t, found)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("concurrent mutation conflicts", func(t *testing.T) {
		repo, _ := newRepos(t)
		v1 := seed(t, repo,
			entry("a", "c1", 10, 0, models.EntryStatusActive),
			entry("b", "c2", 20, 0, models.EntryStatusActive),
		)

		_, err := repo.Mutate(ctx, key, func(p *repository.Partition) error {
			// another writer commits while this snapshot is open
			_, inner := repo.Mutate(ctx, key, func(q *repository.Partition) error {
				return q.SetPosition("b", 5)
			})
			require.NoError(t, inner)
			return p.SetPosition("a", 30)
		})
		assert.ErrorIs(t, err, repository.ErrConflict)

		got, err := repo.ListByPartition(ctx, key, repository.ListFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, ids(got))
		assert.Equal(t, int64(10), got[1].Position)

		v, err := repo.Version(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, v1+1, v)
	})

	t.Run("mutate rejects staged update when status moved", func(t *testing.T) {
		repo, _ := newRepos(t)
		seed(t, repo, entry("a", "c1", 10, 0, models.EntryStatusActive))

		_, err := repo.Mutate(ctx, key, func(p *repository.Partition) error {
			_, inner := repo.UpdateFields(ctx, key.TenantID, "a", models.EntryStatusActive, models.EntryPatch{
				Status: statusPtr(models.EntryStatusCancelled),
			})
			require.NoError(t, inner)
			return p.SetPosition("a", 30)
		})
		assert.ErrorIs(t, err, repository.ErrConflict)

		e, err := repo.Get(ctx, key.TenantID, "a")
		require.NoError(t, err)
		assert.Equal(t, models.EntryStatusCancelled, e.Status)
		assert.Equal(t, int64(10), e.Position)
	})

	t.Run("mutate rejects colliding positions", func(t *testing.T) {
		repo, _ := newRepos(t)
		v := seed(t, repo,
			entry("a", "c1", 10, 0, models.EntryStatusActive),
			entry("b", "c2", 20, 0, models.EntryStatusActive),
		)

		_, err := repo.Mutate(ctx, key, func(p *repository.Partition) error {
			return p.SetPosition("b", 10)
		})
		assert.ErrorIs(t, err, repository.ErrConflict)

		cur, err := repo.Version(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, v, cur)
	})

	t.Run("mutate error discards staged changes", func(t *testing.T) {
		repo, _ := newRepos(t)
		seed(t, repo, entry("a", "c1", 10, 0, models.EntryStatusActive))

		boom := fmt.Errorf("boom")
		_, err := repo.Mutate(ctx, key, func(p *repository.Partition) error {
			require.NoError(t, p.Insert(entry("b", "c2", 20, 0, models.EntryStatusActive)))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.ListByPartition(ctx, key, repository.ListFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids(got))
	})

	t.Run("update fields checks status", func(t *testing.T) {
		repo, _ := newRepos(t)
		v := seed(t, repo, entry("a", "c1", 10, 0, models.EntryStatusActive))

		prio := 4
		notes := "call after 5pm"
		e, err := repo.UpdateFields(ctx, key.TenantID, "a", models.EntryStatusActive, models.EntryPatch{
			Priority: &prio,
			Notes:    &notes,
			Status:   statusPtr(models.EntryStatusPaused),
		})
		require.NoError(t, err)
		assert.Equal(t, 4, e.Priority)
		assert.Equal(t, models.EntryStatusPaused, e.Status)

		_, err = repo.UpdateFields(ctx, key.TenantID, "a", models.EntryStatusActive, models.EntryPatch{Priority: &prio})
		assert.ErrorIs(t, err, repository.ErrConflict)

		_, err = repo.UpdateFields(ctx, key.TenantID, "missing", models.EntryStatusActive, models.EntryPatch{Priority: &prio})
		assert.ErrorIs(t, err, repository.ErrNotFound)

		stored, err := repo.Get(ctx, key.TenantID, "a")
		require.NoError(t, err)
		assert.Equal(t, notes, stored.Notes)
		assert.Equal(t, models.EntryStatusPaused, stored.Status)

		cur, err := repo.Version(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, v, cur)
	})

	t.Run("staged update keeps columns written by update fields", func(t *testing.T) {
		repo, _ := newRepos(t)
		seed(t, repo,
			entry("a", "c1", 10, 0, models.EntryStatusActive),
			entry("b", "c2", 20, 0, models.EntryStatusActive),
		)

		prio := 10
		notes := "prefers mornings"
		_, err := repo.Mutate(ctx, key, func(p *repository.Partition) error {
			_, inner := repo.UpdateFields(ctx, key.TenantID, "b", models.EntryStatusActive, models.EntryPatch{
				Priority: &prio,
				Notes:    &notes,
			})
			require.NoError(t, inner)
			return p.SetPosition("b", 5)
		})
		require.NoError(t, err)

		b, err := repo.Get(ctx, key.TenantID, "b")
		require.NoError(t, err)
		assert.Equal(t, int64(5), b.Position)
		assert.Equal(t, 10, b.Priority)
		assert.Equal(t, notes, b.Notes)
	})

	t.Run("offer fields round trip and clear", func(t *testing.T) {
		repo, _ := newRepos(t)
		seed(t, repo, entry("a", "c1", 10, 0, models.EntryStatusActive))

		exp := base.Add(time.Hour)
		_, err := repo.Mutate(ctx, key, func(p *repository.Partition) error {
			return p.Update("a", models.EntryPatch{
				Status: statusPtr(models.EntryStatusOffered),
				Offer:  &models.Offer{LinkedOccurrenceID: "occ-1", ExpiresAt: &exp, Token: "tok"},
			})
		})
		require.NoError(t, err)

		e, err := repo.Get(ctx, key.TenantID, "a")
		require.NoError(t, err)
		assert.Equal(t, "occ-1", e.Offer.LinkedOccurrenceID)
		assert.Equal(t, "tok", e.Offer.Token)
		require.NotNil(t, e.Offer.ExpiresAt)
		assert.True(t, exp.Equal(*e.Offer.ExpiresAt))

		e, err = repo.UpdateFields(ctx, key.TenantID, "a", models.EntryStatusOffered, models.EntryPatch{
			Status:          statusPtr(models.EntryStatusExpired),
			ClearOffer:      true,
			KeepOfferExpiry: true,
		})
		require.NoError(t, err)
		assert.Empty(t, e.Offer.Token)
		assert.NotNil(t, e.Offer.ExpiresAt)

		stored, err := repo.Get(ctx, key.TenantID, "a")
		require.NoError(t, err)
		assert.Empty(t, stored.Offer.Token)
		assert.Empty(t, stored.Offer.LinkedOccurrenceID)
		assert.NotNil(t, stored.Offer.ExpiresAt)
	})

	t.Run("list lapsed offers", func(t *testing.T) {
		repo, _ := newRepos(t)
		early, late := base.Add(time.Minute), base.Add(time.Hour)
		a := entry("a", "c1", 1, 0, models.EntryStatusOffered)
		a.Offer = models.Offer{LinkedOccurrenceID: "o", ExpiresAt: &late, Token: "x"}
		b := entry("b", "c2", 2, 0, models.EntryStatusOffered)
		b.Offer = models.Offer{LinkedOccurrenceID: "o", ExpiresAt: &early, Token: "y"}
		c := entry("c", "c3", 3, 0, models.EntryStatusActive)
		seed(t, repo, a, b, c)

		got, err := repo.ListLapsedOffers(ctx, base.Add(2*time.Hour), 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, ids(got))

		got, err = repo.ListLapsedOffers(ctx, base.Add(30*time.Minute), 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(got))

		got, err = repo.ListLapsedOffers(ctx, base.Add(2*time.Hour), 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("riding types", func(t *testing.T) {
		_, rts := newRepos(t)
		require.NoError(t, rts.Save(ctx, &models.RidingType{
			ID: "rt1", TenantID: "t1", Code: "PONY", Name: "Pony club", MaxParticipants: 6, Active: true,
			CreatedAt: base, UpdatedAt: base,
		}))
		require.NoError(t, rts.Save(ctx, &models.RidingType{
			ID: "rt2", TenantID: "t1", Code: "ADV", Name: "Advanced", Active: true,
			CreatedAt: base, UpdatedAt: base,
		}))

		list, err := rts.List(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Advanced", list[0].Name)

		require.NoError(t, rts.Save(ctx, &models.RidingType{
			ID: "rt1", TenantID: "t1", Code: "PONY", Name: "Pony club", MaxParticipants: 8, Active: false,
			CreatedAt: base, UpdatedAt: base.Add(time.Hour),
		}))
		rt, err := rts.Get(ctx, "t1", "rt1")
		require.NoError(t, err)
		assert.Equal(t, 8, rt.MaxParticipants)
		assert.False(t, rt.Active)

		_, err = rts.Get(ctx, "t2", "rt1")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func statusPtr(s models.EntryStatus) *models.EntryStatus { return &s }
