package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"log/slog"

	"github.com/spf13/cobra"

	"easel/internal/daemon"
	"easel/internal/logging"
	"easel/internal/syncer"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd, ctx)
		},
	}
}

func runDaemonProcess(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "easel.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// Mirror engine state into the log so the queue is observable
	// without attaching a UI.
	unsubscribe := d.Publisher().Subscribe(func(st syncer.Status) {
		logger.Debug("sync state",
			slog.Bool(logging.FieldOnline, st.IsOnline),
			slog.Int(logging.FieldQueued, len(st.QueuedOperations)),
			slog.Bool("syncing", st.IsSyncing),
			slog.Int(logging.FieldAttempt, st.FailedSyncAttempts))
	})
	defer unsubscribe()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("easel daemon shutting down")
	d.Stop()
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
