package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"easel/internal/backend"
	"easel/internal/config"
	"easel/internal/connectivity"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/syncer"
)

// Daemon owns the background sync services and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	queue     *queue.Queue
	monitor   *connectivity.Monitor
	engine    *syncer.Engine
	publisher *syncer.Publisher
	logPath   string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Sync         syncer.Status
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. A failing
// queue store is tolerated: the session continues memory-only and the
// failure is logged.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	monitor, err := connectivity.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build connectivity monitor: %w", err)
	}

	store, err := queue.Open(cfg, logger)
	if err != nil {
		logger.Warn("queue store unavailable, continuing in memory", slog.Any("error", err))
		store = nil
	}

	q := queue.New(queue.Options{
		Store:     store,
		MaxQueued: cfg.Sync.MaxQueued,
		Online:    monitor.Online,
		Logger:    logger,
	})

	client, err := backend.NewClient(cfg, logger)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("build backend client: %w", err)
	}

	publisher := syncer.NewPublisher(logger)
	engine, err := syncer.New(syncer.Options{
		Queue:        q,
		Connectivity: monitor,
		Transport:    client.Send,
		Publisher:    publisher,
		Logger:       logger,
		MaxAttempts:  cfg.Sync.MaxAttempts,
		BaseDelay:    time.Duration(cfg.Sync.BaseDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Sync.MaxDelayMS) * time.Millisecond,
		DrainRate:    cfg.Sync.DrainRate,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("build sync engine: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "easeld.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "daemon"),
		store:     store,
		queue:     q,
		monitor:   monitor,
		engine:    engine,
		publisher: publisher,
		logPath:   filepath.Join(cfg.Paths.LogDir, "easel.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the monitor and engine.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another easel daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.monitor.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start connectivity monitor: %w", err)
	}
	if err := d.engine.Start(runCtx); err != nil {
		d.monitor.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start sync engine: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("easel daemon started", slog.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.engine.Stop()
	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", slog.Any("error", err))
	}
	d.running.Store(false)
	d.logger.Info("easel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Engine exposes the sync engine for embedding callers.
func (d *Daemon) Engine() *syncer.Engine {
	return d.engine
}

// Publisher exposes the state publisher so UI layers can subscribe.
func (d *Daemon) Publisher() *syncer.Publisher {
	return d.publisher
}

// Monitor exposes the connectivity monitor, including its manual
// override.
func (d *Daemon) Monitor() *connectivity.Monitor {
	return d.monitor
}

// DatabaseHealth returns queue store diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("queue store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Sync:         d.engine.Status(),
		QueueDBPath:  d.cfg.QueueDBPath(),
		LockFilePath: d.lockPath,
	}
}
