package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vogiaan1904/farm-waitlist/internal/service"
)

func newSweepCommand(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark lapsed offers as expired",
		Long: `Mark lapsed offers as expired in the store.

Reads already treat a lapsed offer as expired; sweeping only persists that
status. With --once a single pass runs and the command exits, otherwise it
sweeps every SWEEP_INTERVAL until interrupted. Kafka and Redis are not
connected here, so no status-changed events are published. Run the sweeper
inside serve (SWEEP_ENABLED=true) to get them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Sweep.BatchSize <= 0 {
				return fmt.Errorf("SWEEP_BATCH_SIZE must be positive")
			}

			entries, types, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := service.NewWaitlistService(entries, types, nil, nil, a.l, a.cfg.Offer)
			sweeper := service.NewOfferSweeper(svc, a.l, a.cfg.Sweep)

			if once {
				n, err := sweeper.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d offers\n", n)
				return nil
			}

			if a.cfg.Sweep.Interval <= 0 {
				return fmt.Errorf("SWEEP_INTERVAL must be positive")
			}
			if err := sweeper.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			if err := sweeper.Stop(); err != nil {
				return err
			}

			st := sweeper.GetStatus()
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d offers, %d errors\n", st.TotalExpired, st.ErrorCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	return cmd
}
