package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"easel/internal/logging"
	"easel/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the buffered queue and store health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg, logging.NewNop())
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			health, err := store.CheckHealth(cmd.Context())
			if err != nil {
				return fmt.Errorf("check store health: %w", err)
			}

			rows := [][]string{
				{"Queue database", store.Path()},
				{"Readable", yesNo(health.DatabaseReadable)},
				{"Schema present", yesNo(health.TableExists)},
				{"Integrity check", yesNo(health.IntegrityCheck)},
				{"Buffered operations", fmt.Sprintf("%d", health.TotalOps)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}
