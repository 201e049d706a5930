package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"easel/internal/config"
	"easel/internal/logging"
)

// Listener receives edge-triggered connectivity transitions.
type Listener func(online bool)

// Options configures a Monitor.
type Options struct {
	Source   Source
	Interval time.Duration
	Logger   *slog.Logger
}

// Monitor polls a Source and notifies listeners when reachability
// flips. It starts offline until the first successful probe.
type Monitor struct {
	source   Source
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	online    bool
	override  *bool
	listeners map[int]Listener
	nextID    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Monitor from explicit options.
func New(opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		source:    opts.Source,
		interval:  interval,
		logger:    logging.WithComponent(logger, "connectivity"),
		listeners: make(map[int]Listener),
	}
}

// NewFromConfig builds a Monitor with an HTTP probe source derived from
// the configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Monitor, error) {
	source, err := NewHTTPSource(cfg)
	if err != nil {
		return nil, err
	}
	return New(Options{
		Source:   source,
		Interval: time.Duration(cfg.Connectivity.ProbeInterval) * time.Second,
		Logger:   logger,
	}), nil
}

// Start launches the polling loop. The first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	if m.source == nil {
		return errors.New("connectivity source unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("connectivity monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop(runCtx)
	return nil
}

// Stop cancels the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a listener for transitions and returns its
// unsubscribe function. Listeners are invoked synchronously from the
// goroutine that observed the transition, and only on edges.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetOverride pins the connectivity state, suppressing probe results
// until ClearOverride is called.
func (m *Monitor) SetOverride(online bool) {
	m.mu.Lock()
	m.override = &online
	m.mu.Unlock()
	m.transition(online, "override")
}

// ClearOverride returns control to the probe loop. The state reported
// by the next probe wins.
func (m *Monitor) ClearOverride() {
	m.mu.Lock()
	m.override = nil
	m.mu.Unlock()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	m.poll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	m.mu.Lock()
	if m.override != nil {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	err := m.source.Check(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Debug("probe failed", slog.Any("error", err))
	}
	m.transition(err == nil, "probe")
}

// transition applies a new state and, on an edge, notifies listeners
// outside the lock. Probe-driven transitions are discarded while an
// override is pinned, including results from probes that were already
// in flight when the override was set.
func (m *Monitor) transition(online bool, cause string) {
	m.mu.Lock()
	if m.override != nil && cause != "override" {
		m.mu.Unlock()
		return
	}
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	notify := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		notify = append(notify, fn)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed",
		slog.Bool(logging.FieldOnline, online),
		slog.String("cause", cause),
	)
	for _, fn := range notify {
		fn(online)
	}
}
