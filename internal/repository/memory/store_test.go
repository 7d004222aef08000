package memory

import (
	"testing"

	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/internal/repository/repotest"
)

func TestStore(t *testing.T) {
	repotest.Run(t, func(t *testing.T) (repository.EntryRepository, repository.RidingTypeRepository) {
		s := NewStore()
		return s.Entries(), s.RidingTypes()
	})
}
