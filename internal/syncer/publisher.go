package syncer

import (
	"sync"
	"time"

	"log/slog"

	"easel/internal/logging"
	"easel/internal/queue"
)

// Status is an observable snapshot of the sync engine. QueuedOperations
// is a deep copy; mutating it never affects engine state.
type Status struct {
	IsOnline           bool
	QueuedOperations   []queue.Op
	IsSyncing          bool
	LastSyncAttempt    *time.Time
	FailedSyncAttempts int
}

func (s Status) clone() Status {
	out := s
	if s.LastSyncAttempt != nil {
		at := *s.LastSyncAttempt
		out.LastSyncAttempt = &at
	}
	if s.QueuedOperations != nil {
		out.QueuedOperations = make([]queue.Op, len(s.QueuedOperations))
		for i, op := range s.QueuedOperations {
			out.QueuedOperations[i] = op.Clone()
		}
	}
	return out
}

// StatusListener receives state snapshots.
type StatusListener func(Status)

// Publisher fans Status snapshots out to subscribed listeners.
// Notification is synchronous and each listener runs inside its own
// recover boundary, so one faulty observer cannot interrupt the rest.
type Publisher struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[int]StatusListener
	nextID    int
}

// NewPublisher builds an empty publisher.
func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		logger:    logging.WithComponent(logger, "state-publisher"),
		listeners: make(map[int]StatusListener),
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
func (p *Publisher) Subscribe(fn StatusListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Publish delivers the status to every listener in turn. Each listener
// gets its own copy of the snapshot.
func (p *Publisher) Publish(status Status) {
	p.mu.Lock()
	notify := make([]StatusListener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		notify = append(notify, fn)
	}
	p.mu.Unlock()

	for _, fn := range notify {
		p.notify(fn, status.clone())
	}
}

func (p *Publisher) notify(fn StatusListener, status Status) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("status listener panicked", slog.Any("panic", r))
		}
	}()
	fn(status)
}
