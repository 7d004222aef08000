package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vogiaan1904/farm-waitlist/config"
	"github.com/vogiaan1904/farm-waitlist/internal/infra/postgres"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/internal/repository/memory"
	pgRepo "github.com/vogiaan1904/farm-waitlist/internal/repository/postgres"
	pkgLog "github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

// app carries what every subcommand needs once config is loaded.
type app struct {
	cfg *config.Config
	l   pkgLog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "waitlist",
		Short:         "Riding-school waitlist service",
		Long:          "Runs and operates the waitlist ordering and offer engine.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			a.l = pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
				Level:    cfg.Log.Level,
				Mode:     cfg.Log.Mode,
				Encoding: cfg.Log.Encoding,
				Service:  "waitlist",
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.l.Sync()
		},
	}

	cmd.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newNormalizeCommand(a),
		newSweepCommand(a),
	)
	return cmd
}

// openStore returns repositories for the configured driver and a func
// that releases them.
func (a *app) openStore(ctx context.Context) (repository.EntryRepository, repository.RidingTypeRepository, func(), error) {
	switch a.cfg.Store.Driver {
	case config.StoreDriverMemory:
		a.l.Warn(ctx, "Using in-memory store; data is lost on exit.")
		st := memory.NewStore()
		return st.Entries(), st.RidingTypes(), func() {}, nil
	default:
		db, err := postgres.Connect(ctx, a.cfg.Postgres, a.l)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { postgres.Disconnect(context.Background(), db, a.l) }
		return pgRepo.NewEntryRepository(db, a.l), pgRepo.NewRidingTypeRepository(db, a.l), closeFn, nil
	}
}
