package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"easel/internal/connectivity"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/shape"
)

// ConnectivitySource is the engine's view of the connectivity monitor.
type ConnectivitySource interface {
	Online() bool
	Subscribe(fn connectivity.Listener) func()
}

type state int

const (
	stateIdle state = iota
	stateSyncing
	stateBackoff
)

// Options configures an Engine.
type Options struct {
	Queue        *queue.Queue
	Connectivity ConnectivitySource
	Transport    queue.TransportFunc
	Publisher    *Publisher
	Logger       *slog.Logger

	// MaxAttempts caps consecutive failed drains before the engine goes
	// idle and waits for the next online edge.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff between retries.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Zero means uncapped.
	MaxDelay time.Duration
	// DrainRate limits replayed operations per second. Zero disables
	// pacing.
	DrainRate int
}

// Engine owns the sync state machine. It buffers edits through the
// queue while offline and replays them on reconnect, one drain at a
// time.
type Engine struct {
	queue        *queue.Queue
	connectivity ConnectivitySource
	transport    queue.TransportFunc
	publisher    *Publisher
	logger       *slog.Logger

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	limiter     *rate.Limiter

	mu          sync.Mutex
	running     bool
	state       state
	failures    int
	lastAttempt *time.Time
	retryTimer  *time.Timer

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// New builds an Engine from explicit options.
func New(opts Options) (*Engine, error) {
	if opts.Queue == nil {
		return nil, errors.New("syncer: queue is required")
	}
	if opts.Connectivity == nil {
		return nil, errors.New("syncer: connectivity source is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("syncer: transport is required")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	var limiter *rate.Limiter
	if opts.DrainRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.DrainRate), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Engine{
		queue:        opts.Queue,
		connectivity: opts.Connectivity,
		transport:    opts.Transport,
		publisher:    opts.Publisher,
		logger:       logging.WithComponent(logger, "syncer"),
		maxAttempts:  maxAttempts,
		baseDelay:    baseDelay,
		maxDelay:     opts.MaxDelay,
		limiter:      limiter,
	}, nil
}

// Start subscribes to connectivity edges and, when already online with
// a backlog, kicks off an initial drain.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("sync engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.ctx = runCtx
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	e.unsubscribe = e.connectivity.Subscribe(e.handleEdge)

	if e.connectivity.Online() && e.queue.Len() > 0 {
		e.RequestSync()
	}
	return nil
}

// Stop cancels any in-flight drain and pending retry, then waits for
// the drain goroutine to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.stopRetryLocked()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// EnqueueUpsert buffers an upsert while offline and publishes the new
// state. Online enqueues are no-ops: the live path sends directly.
func (e *Engine) EnqueueUpsert(ctx context.Context, canvasID, actorID string, shapes ...shape.Shape) *queue.Op {
	op := e.queue.EnqueueUpsert(ctx, canvasID, actorID, shapes...)
	if op != nil {
		e.publish()
	}
	return op
}

// EnqueueRemove buffers a remove while offline and publishes the new
// state.
func (e *Engine) EnqueueRemove(ctx context.Context, canvasID, actorID string, shapeIDs ...string) *queue.Op {
	op := e.queue.EnqueueRemove(ctx, canvasID, actorID, shapeIDs...)
	if op != nil {
		e.publish()
	}
	return op
}

// RequestSync starts a drain unless one is already in flight. It
// reports whether a drain was started.
func (e *Engine) RequestSync() bool {
	e.mu.Lock()
	if !e.running || e.state == stateSyncing {
		e.mu.Unlock()
		return false
	}
	e.stopRetryLocked()
	e.state = stateSyncing
	now := time.Now().UTC()
	e.lastAttempt = &now
	ctx := e.ctx
	e.wg.Add(1)
	e.mu.Unlock()

	e.publish()
	go e.drain(ctx)
	return true
}

// Status builds an observable snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{
		IsSyncing:          e.state == stateSyncing,
		FailedSyncAttempts: e.failures,
	}
	if e.lastAttempt != nil {
		at := *e.lastAttempt
		st.LastSyncAttempt = &at
	}
	e.mu.Unlock()

	st.IsOnline = e.connectivity.Online()
	st.QueuedOperations = e.queue.Snapshot()
	return st
}

// handleEdge reacts to connectivity transitions. The online edge
// resets the failure counter and drains any backlog; the offline edge
// cancels a pending retry, since a drain cannot succeed until the next
// reconnect.
func (e *Engine) handleEdge(online bool) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.stopRetryLocked()
	if online {
		e.failures = 0
	}
	e.mu.Unlock()

	if online && e.queue.Len() > 0 {
		if e.RequestSync() {
			return
		}
	}
	e.publish()
}

func (e *Engine) drain(ctx context.Context) {
	defer e.wg.Done()

	err := e.queue.DrainInOrder(ctx, e.send)
	if err == nil {
		e.mu.Lock()
		e.state = stateIdle
		e.failures = 0
		e.mu.Unlock()

		e.logger.Info("drain complete")
		e.publish()
		return
	}

	if ctx.Err() != nil {
		e.mu.Lock()
		e.state = stateIdle
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.failures++
	failures := e.failures
	if failures >= e.maxAttempts {
		e.state = stateIdle
		e.mu.Unlock()

		e.logger.Warn("drain attempts exhausted, waiting for next online edge",
			slog.Int(logging.FieldAttempt, failures),
			slog.Int(logging.FieldQueued, e.queue.Len()),
			slog.Any("error", err))
		e.publish()
		return
	}

	delay := e.backoffDelay(failures)
	e.state = stateBackoff
	e.retryTimer = time.AfterFunc(delay, e.retry)
	e.mu.Unlock()

	e.logger.Warn("drain failed, retry scheduled",
		slog.Int(logging.FieldAttempt, failures),
		slog.Duration(logging.FieldDelay, delay),
		slog.Any("error", err))
	e.publish()
}

// retry fires from the backoff timer. A connectivity edge or an
// explicit sync request may have preempted it.
func (e *Engine) retry() {
	e.mu.Lock()
	if !e.running || e.state != stateBackoff {
		e.mu.Unlock()
		return
	}
	e.retryTimer = nil
	e.state = stateSyncing
	now := time.Now().UTC()
	e.lastAttempt = &now
	ctx := e.ctx
	e.wg.Add(1)
	e.mu.Unlock()

	e.publish()
	go e.drain(ctx)
}

// send wraps the transport with optional rate pacing.
func (e *Engine) send(ctx context.Context, op queue.Op) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return e.transport(ctx, op)
}

// backoffDelay computes baseDelay doubled per consecutive failure,
// capped at maxDelay.
func (e *Engine) backoffDelay(failures int) time.Duration {
	delay := e.baseDelay
	for i := 1; i < failures; i++ {
		delay *= 2
		if e.maxDelay > 0 && delay >= e.maxDelay {
			return e.maxDelay
		}
	}
	if e.maxDelay > 0 && delay > e.maxDelay {
		return e.maxDelay
	}
	return delay
}

func (e *Engine) stopRetryLocked() {
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	if e.state == stateBackoff {
		e.state = stateIdle
	}
}

func (e *Engine) publish() {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(e.Status())
}
