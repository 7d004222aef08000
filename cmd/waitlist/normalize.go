package main

import (
	"fmt"

	"github.com/spf13/cobra"

	grpcDelivery "github.com/vogiaan1904/farm-waitlist/internal/delivery/grpc"
	"github.com/vogiaan1904/farm-waitlist/internal/models"
	pkgGrpc "github.com/vogiaan1904/farm-waitlist/pkg/grpc"
)

type normalizeOptions struct {
	Addr         string
	TenantID     string
	CallerID     string
	RidingTypeID string
}

// newNormalizeCommand respaces one riding type's queue through a running
// server, so the rewrite goes through the same partition checks as any
// other mutation.
func newNormalizeCommand(a *app) *cobra.Command {
	opts := &normalizeOptions{}

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Respace queue positions for a riding type",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := opts.Addr
			if addr == "" {
				addr = fmt.Sprintf("localhost:%d", a.cfg.Server.GRpcPort)
			}

			cli, closeCli, err := pkgGrpc.NewWaitlistClient(addr)
			if err != nil {
				return err
			}
			defer closeCli()

			ctx := pkgGrpc.WithCaller(cmd.Context(), opts.TenantID, opts.CallerID, string(models.RoleStaff))

			var out grpcDelivery.NormalizeResponse
			if err := cli.Call(ctx, "Normalize", &grpcDelivery.RidingTypeRequest{RidingTypeID: opts.RidingTypeID}, &out); err != nil {
				return fmt.Errorf("normalize %s: %w", opts.RidingTypeID, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "riding type %s normalized at version %d\n", out.RidingTypeID, out.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "gRPC address (default localhost:SERVER_GRPC_PORT)")
	cmd.Flags().StringVar(&opts.TenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&opts.CallerID, "caller", "waitlist-cli", "staff caller id")
	cmd.Flags().StringVar(&opts.RidingTypeID, "riding-type", "", "riding type id")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("riding-type")

	return cmd
}
