package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/shape"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[backend]
base_url = "http://127.0.0.1:1"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func seedQueue(t *testing.T, configPath string, ops []queue.Op) {
	t.Helper()
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := queue.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.Save(context.Background(), ops); err != nil {
		t.Fatalf("seed queue: %v", err)
	}
}

func TestQueueListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("expected empty-queue message, got:\n%s", out)
	}
}

func TestQueueListShowsBufferedOps(t *testing.T) {
	configPath := writeTestConfig(t)
	at := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	seedQueue(t, configPath, []queue.Op{
		{
			ID:         "op-1",
			Kind:       queue.KindUpsert,
			Shapes:     []shape.Shape{{ID: "s1", UpdatedAt: at, UpdatedBy: "alice"}},
			EnqueuedAt: at,
			CanvasID:   "c1",
			ActorID:    "alice",
		},
		{
			ID:         "op-2",
			Kind:       queue.KindRemove,
			ShapeIDs:   []string{"s2"},
			EnqueuedAt: at.Add(time.Second),
			CanvasID:   "c1",
			ActorID:    "alice",
		},
	})

	out, err := runCommand(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	for _, want := range []string{"op-1", "op-2", "upsert", "remove s2", "alice"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Index(out, "op-1") > strings.Index(out, "op-2") {
		t.Fatalf("operations must list in replay order:\n%s", out)
	}
}

func TestQueueClearRequiresForce(t *testing.T) {
	configPath := writeTestConfig(t)
	seedQueue(t, configPath, []queue.Op{
		{ID: "op-1", Kind: queue.KindRemove, ShapeIDs: []string{"s1"}, EnqueuedAt: time.Now().UTC()},
	})

	if _, err := runCommand(t, "--config", configPath, "queue", "clear"); err == nil {
		t.Fatal("queue clear without --force must fail")
	}

	out, err := runCommand(t, "--config", configPath, "queue", "clear", "--force")
	if err != nil {
		t.Fatalf("queue clear --force failed: %v", err)
	}
	if !strings.Contains(out, "Discarded 1") {
		t.Fatalf("expected discard count, got:\n%s", out)
	}

	out, err = runCommand(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("expected empty queue after clear:\n%s", out)
	}
}

func TestStatusReportsStoreHealth(t *testing.T) {
	configPath := writeTestConfig(t)
	seedQueue(t, configPath, []queue.Op{
		{ID: "op-1", Kind: queue.KindRemove, ShapeIDs: []string{"s1"}, EnqueuedAt: time.Now().UTC()},
	})

	out, err := runCommand(t, "--config", configPath, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"queue.db", "Buffered operations", "1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output:\n%s", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[backend]") {
		t.Fatalf("sample config missing backend section:\n%s", data)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("config init must refuse to overwrite without --overwrite")
	}
}
