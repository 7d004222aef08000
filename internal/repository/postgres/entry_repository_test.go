package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/internal/repository/repotest"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

// newTestDB opens a private in-memory sqlite database with the waitlist
// schema. A single connection keeps the memory database alive and makes
// sqlite serialize writers the way the partition CAS expects.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestEntryRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) (repository.EntryRepository, repository.RidingTypeRepository) {
		db := newTestDB(t)
		l := logger.NewNopLogger()
		return NewEntryRepository(db, l), NewRidingTypeRepository(db, l)
	})
}
