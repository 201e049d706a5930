package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"easel/internal/logging"
	"easel/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage buffered operations",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg, logging.NewNop())
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List buffered operations in replay order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				ops, err := store.Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load queue: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(ops) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(ops))
				for i, op := range ops {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						op.ID,
						string(op.Kind),
						describePayload(op),
						op.CanvasID,
						op.ActorID,
						op.EnqueuedAt.Format(time.RFC3339),
					})
				}
				headers := []string{"#", "Operation", "Kind", "Payload", "Canvas", "Actor", "Enqueued"}
				fmt.Fprintln(out, renderTable(headers, rows, 0))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard all buffered operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to discard buffered operations without --force")
			}
			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.Count(cmd.Context())
				if err != nil {
					return fmt.Errorf("count queue: %w", err)
				}
				if err := store.Save(cmd.Context(), nil); err != nil {
					return fmt.Errorf("clear queue: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded %d buffered operation(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm discarding unsynced edits")
	return cmd
}

func describePayload(op queue.Op) string {
	switch op.Kind {
	case queue.KindUpsert:
		ids := make([]string, 0, len(op.Shapes))
		for _, s := range op.Shapes {
			ids = append(ids, s.ID)
		}
		return fmt.Sprintf("%d shape(s): %s", len(op.Shapes), strings.Join(ids, ", "))
	case queue.KindRemove:
		return fmt.Sprintf("remove %s", strings.Join(op.ShapeIDs, ", "))
	default:
		return string(op.Kind)
	}
}
