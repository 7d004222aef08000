package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vogiaan1904/farm-waitlist/config"
	"github.com/vogiaan1904/farm-waitlist/internal/infra/postgres"
	pgRepo "github.com/vogiaan1904/farm-waitlist/internal/repository/postgres"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Store.Driver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=%s, got %q", config.StoreDriverPostgres, a.cfg.Store.Driver)
			}

			ctx := cmd.Context()
			db, err := postgres.Connect(ctx, a.cfg.Postgres, a.l)
			if err != nil {
				return err
			}
			defer postgres.Disconnect(context.Background(), db, a.l)

			if err := pgRepo.Migrate(ctx, db); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}

			a.l.Info(ctx, "Migration complete.")
			return nil
		},
	}
}
