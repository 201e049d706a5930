package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"easel/internal/logging"
	"easel/internal/shape"
)

// DefaultMaxQueued bounds the offline buffer when no limit is configured.
const DefaultMaxQueued = 1000

// Options configures a Queue.
type Options struct {
	// Store persists snapshots. Optional: without one the queue is
	// memory-only and buffered edits do not survive restart.
	Store *Store
	// MaxQueued bounds the queue; older entries are evicted first.
	MaxQueued int
	// Online reports current connectivity. While online, Enqueue is a no-op
	// because mutations take the live path instead of the buffer.
	Online func() bool
	Logger *slog.Logger
}

// Queue is the bounded offline buffer of canvas mutations. All mutation goes
// through Enqueue, DrainInOrder, and Clear; callers never touch the backing
// slice, which keeps a single writer per instant.
type Queue struct {
	mu     sync.Mutex
	ops    []Op
	max    int
	online func() bool
	store  *Store
	logger *slog.Logger
}

// New builds a Queue, loading any persisted snapshot. Load failures fall
// back to an empty queue: a broken local store must never block editing.
func New(opts Options) *Queue {
	max := opts.MaxQueued
	if max <= 0 {
		max = DefaultMaxQueued
	}
	online := opts.Online
	if online == nil {
		online = func() bool { return false }
	}

	q := &Queue{
		max:    max,
		online: online,
		store:  opts.Store,
		logger: logging.WithComponent(opts.Logger, "queue"),
	}

	if q.store != nil {
		ops, err := q.store.Load(context.Background())
		if err != nil {
			q.logger.Warn("load persisted queue failed, starting empty", slog.Any("error", err))
		} else {
			q.ops = ops
			if len(ops) > 0 {
				q.logger.Info("restored buffered operations", slog.Int(logging.FieldQueued, len(ops)))
			}
		}
	}
	return q
}

// EnqueueUpsert buffers full shape records while offline. Online enqueues
// are no-ops: the live path already sent the mutation. Returns the queued
// operation, or nil when nothing was buffered.
func (q *Queue) EnqueueUpsert(ctx context.Context, canvasID, actorID string, shapes ...shape.Shape) *Op {
	if len(shapes) == 0 {
		return nil
	}
	return q.enqueue(ctx, Op{
		Kind:     KindUpsert,
		Shapes:   shape.CloneSlice(shapes),
		CanvasID: canvasID,
		ActorID:  actorID,
	})
}

// EnqueueRemove buffers shape deletions while offline.
func (q *Queue) EnqueueRemove(ctx context.Context, canvasID, actorID string, shapeIDs ...string) *Op {
	if len(shapeIDs) == 0 {
		return nil
	}
	ids := make([]string, len(shapeIDs))
	copy(ids, shapeIDs)
	return q.enqueue(ctx, Op{
		Kind:     KindRemove,
		ShapeIDs: ids,
		CanvasID: canvasID,
		ActorID:  actorID,
	})
}

func (q *Queue) enqueue(ctx context.Context, op Op) *Op {
	if q.online() {
		return nil
	}

	op.ID = uuid.NewString()
	op.EnqueuedAt = time.Now().UTC()

	q.mu.Lock()
	q.ops = append(q.ops, op)
	if evicted := len(q.ops) - q.max; evicted > 0 {
		// Bounded buffer: dropping the oldest edits is the accepted trade-off
		// for not growing without limit during a long outage.
		q.ops = append(q.ops[:0:0], q.ops[evicted:]...)
		q.logger.Warn("queue over capacity, evicted oldest operations",
			slog.Int("evicted", evicted), slog.Int(logging.FieldQueued, len(q.ops)))
	}
	q.persistLocked(ctx)
	queued := op.Clone()
	q.mu.Unlock()

	q.logger.Debug("operation buffered",
		slog.String(logging.FieldOpID, queued.ID),
		slog.String(logging.FieldOpKind, string(queued.Kind)),
		slog.String(logging.FieldCanvasID, queued.CanvasID),
		slog.Int("size", queued.Size()))
	return &queued
}

// DrainInOrder replays buffered operations through transport strictly in
// enqueue order, one at a time. The first failure aborts the drain with the
// entire queue left intact; only a fully successful pass removes anything.
// Operations enqueued while the drain is in flight are untouched either way.
func (q *Queue) DrainInOrder(ctx context.Context, transport TransportFunc) error {
	q.mu.Lock()
	batch := make([]Op, len(q.ops))
	copy(batch, q.ops)
	q.mu.Unlock()

	for i, op := range batch {
		if err := transport(ctx, op.Clone()); err != nil {
			q.logger.Warn("drain aborted",
				slog.String(logging.FieldOpID, op.ID),
				slog.Int("sent", i),
				slog.Int(logging.FieldQueued, len(batch)),
				slog.Any("error", err))
			return err
		}
	}

	drained := make(map[string]struct{}, len(batch))
	for _, op := range batch {
		drained[op.ID] = struct{}{}
	}

	q.mu.Lock()
	// Remove by ID rather than by prefix: an enqueue racing the drain may
	// have evicted part of the batch already.
	kept := q.ops[:0:0]
	for _, op := range q.ops {
		if _, ok := drained[op.ID]; !ok {
			kept = append(kept, op)
		}
	}
	q.ops = kept
	q.persistLocked(ctx)
	remaining := len(q.ops)
	q.mu.Unlock()

	if len(batch) > 0 {
		q.logger.Info("drain complete",
			slog.Int("sent", len(batch)), slog.Int(logging.FieldQueued, remaining))
	}
	return nil
}

// Clear discards all buffered operations and persists the empty snapshot.
func (q *Queue) Clear(ctx context.Context) int {
	q.mu.Lock()
	removed := len(q.ops)
	q.ops = nil
	q.persistLocked(ctx)
	q.mu.Unlock()
	return removed
}

// Len returns the number of buffered operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Snapshot returns a deep copy of the buffered operations in replay order.
func (q *Queue) Snapshot() []Op {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Op, len(q.ops))
	for i, op := range q.ops {
		out[i] = op.Clone()
	}
	return out
}

// persistLocked writes the current snapshot. Persistence failures are logged
// and swallowed: the in-memory queue stays authoritative for the session.
func (q *Queue) persistLocked(ctx context.Context) {
	if q.store == nil {
		return
	}
	if err := q.store.Save(ctx, q.ops); err != nil {
		q.logger.Warn("persist queue snapshot failed, continuing in memory", slog.Any("error", err))
	}
}
