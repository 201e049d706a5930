package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/shape"
	"easel/internal/testsupport"
)

func TestEnqueueNoopWhileOnline(t *testing.T) {
	q := queue.New(queue.Options{
		Online: func() bool { return true },
		Logger: logging.NewNop(),
	})

	if op := q.EnqueueUpsert(context.Background(), "c1", "alice", shape.Shape{ID: "s1"}); op != nil {
		t.Fatalf("online enqueue should be a no-op, got %+v", op)
	}
	if q.Len() != 0 {
		t.Fatalf("queue should stay empty, got %d", q.Len())
	}
}

func TestEnqueueAssignsUniqueIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	q := newOfflineQueue(t, store, 100)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		op := q.EnqueueRemove(ctx, "c1", "alice", fmt.Sprintf("s%d", i))
		if op == nil {
			t.Fatal("offline enqueue should buffer")
		}
		if _, dup := seen[op.ID]; dup {
			t.Fatalf("duplicate op ID %s", op.ID)
		}
		seen[op.ID] = struct{}{}
	}
}

func TestDrainReplaysInEnqueueOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	q := newOfflineQueue(t, store, 100)
	ctx := context.Background()

	var want []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		q.EnqueueUpsert(ctx, "c1", "alice", shape.Shape{ID: id, UpdatedBy: "alice"})
		want = append(want, id)
	}

	var got []string
	err := q.DrainInOrder(ctx, func(ctx context.Context, op queue.Op) error {
		got = append(got, op.Shapes[0].ID)
		return nil
	})
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d sends, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("replay order broken at %d: want %s, got %s", i, want[i], got[i])
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be empty after full drain, got %d", q.Len())
	}

	// The persisted snapshot must agree.
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("persisted snapshot should be empty, got %d", count)
	}
}

func TestDrainEmptyQueueSucceeds(t *testing.T) {
	q := queue.New(queue.Options{Logger: logging.NewNop()})
	err := q.DrainInOrder(context.Background(), func(context.Context, queue.Op) error {
		t.Fatal("transport must not be invoked for an empty queue")
		return nil
	})
	if err != nil {
		t.Fatalf("empty drain should succeed: %v", err)
	}
}

func TestDrainFailureKeepsEntireQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	q := newOfflineQueue(t, store, 100)
	ctx := context.Background()

	q.EnqueueUpsert(ctx, "c1", "alice", shape.Shape{ID: "s1"})
	q.EnqueueUpsert(ctx, "c1", "alice", shape.Shape{ID: "s2"})
	q.EnqueueUpsert(ctx, "c1", "alice", shape.Shape{ID: "s3"})

	boom := errors.New("backend rejected")
	calls := 0
	err := q.DrainInOrder(ctx, func(ctx context.Context, op queue.Op) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("drain must stop at the first failure, made %d calls", calls)
	}

	// No partial removal: all three remain, in order, in memory and on disk.
	if q.Len() != 3 {
		t.Fatalf("expected 3 ops still queued, got %d", q.Len())
	}
	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(persisted) != 3 {
		t.Fatalf("expected 3 persisted ops, got %d", len(persisted))
	}
	for i, wantID := range []string{"s1", "s2", "s3"} {
		if persisted[i].Shapes[0].ID != wantID {
			t.Fatalf("persisted order broken at %d: %+v", i, persisted[i])
		}
	}
}

func TestBoundedGrowthEvictsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	const limit = 1000
	q := newOfflineQueue(t, store, limit)
	ctx := context.Background()

	for i := 0; i < limit+1; i++ {
		q.EnqueueRemove(ctx, "c1", "alice", fmt.Sprintf("s%d", i))
	}

	if q.Len() != limit {
		t.Fatalf("queue must not grow past the cap, got %d", q.Len())
	}
	snapshot := q.Snapshot()
	if snapshot[0].ShapeIDs[0] != "s1" {
		t.Fatalf("oldest entry should be evicted first, head is %s", snapshot[0].ShapeIDs[0])
	}
	if snapshot[limit-1].ShapeIDs[0] != fmt.Sprintf("s%d", limit) {
		t.Fatalf("newest entry missing, tail is %s", snapshot[limit-1].ShapeIDs[0])
	}
}

func TestClearPersistsEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	q := newOfflineQueue(t, store, 10)
	ctx := context.Background()

	q.EnqueueRemove(ctx, "c1", "alice", "s1")
	q.EnqueueRemove(ctx, "c1", "alice", "s2")

	if removed := q.Clear(ctx); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("persisted snapshot should be empty, got %d", count)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	q := queue.New(queue.Options{Online: offline, Logger: logging.NewNop()})
	ctx := context.Background()

	q.EnqueueUpsert(ctx, "c1", "alice", shape.Shape{ID: "s1", Fill: "#000"})

	snapshot := q.Snapshot()
	snapshot[0].Shapes[0].Fill = "#fff"

	if q.Snapshot()[0].Shapes[0].Fill != "#000" {
		t.Fatal("mutating a snapshot must not affect queue state")
	}
}

func TestNewStartsEmptyWhenStoreUnreadable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.Save(ctx, []queue.Op{{ID: "op-1", Kind: queue.KindRemove, ShapeIDs: []string{"s1"}, EnqueuedAt: time.Now().UTC()}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Wreck the snapshot table so the initial load fails outright.
	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DROP TABLE queued_ops`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	_ = db.Close()

	q := newOfflineQueue(t, store, 10)
	if q.Len() != 0 {
		t.Fatalf("unreadable store must start the queue empty, got %d", q.Len())
	}

	// Buffering keeps working in memory even though persistence is broken.
	if op := q.EnqueueRemove(ctx, "c1", "alice", "s2"); op == nil {
		t.Fatal("queue must keep buffering after a store failure")
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 buffered op, got %d", q.Len())
	}
}

func TestQueueWithoutStoreIsMemoryOnly(t *testing.T) {
	q := queue.New(queue.Options{Online: offline, Logger: logging.NewNop()})
	ctx := context.Background()

	if op := q.EnqueueRemove(ctx, "c1", "alice", "s1"); op == nil {
		t.Fatal("memory-only queue should still buffer")
	}
	if err := q.DrainInOrder(ctx, func(context.Context, queue.Op) error { return nil }); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}
