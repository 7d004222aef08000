package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vogiaan1904/farm-waitlist/config"
	repo "github.com/vogiaan1904/farm-waitlist/internal/repository/postgres"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

func Connect(ctx context.Context, cfg config.PostgresConfig, l logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), repo.GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get Postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx, db); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate Postgres: %w", err)
		}
	}

	l.Info(ctx, "Connected to Postgres.")

	return db, nil
}

func Disconnect(ctx context.Context, db *gorm.DB, l logger.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	sqlDB.Close()

	l.Info(ctx, "Connection to Postgres closed.")
}
