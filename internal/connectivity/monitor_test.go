package connectivity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"easel/internal/connectivity"
	"easel/internal/logging"
)

type fakeSource struct {
	mu  sync.Mutex
	err error
}

func (s *fakeSource) Check(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSource) set(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func newTestMonitor(t *testing.T, source connectivity.Source) *connectivity.Monitor {
	t.Helper()
	m := connectivity.New(connectivity.Options{
		Source:   source,
		Interval: 5 * time.Millisecond,
		Logger:   logging.NewNop(),
	})
	t.Cleanup(m.Stop)
	return m
}

func waitForEdge(t *testing.T, edges <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-edges:
		if got != want {
			t.Fatalf("expected transition to online=%v, got %v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transition to online=%v", want)
	}
}

func TestMonitorStartsOffline(t *testing.T) {
	source := &fakeSource{err: errors.New("unreachable")}
	m := newTestMonitor(t, source)

	if m.Online() {
		t.Fatal("monitor must start offline")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if m.Online() {
		t.Fatal("failing probes must keep the monitor offline")
	}
}

func TestMonitorDetectsEdges(t *testing.T) {
	source := &fakeSource{err: errors.New("unreachable")}
	m := newTestMonitor(t, source)

	edges := make(chan bool, 16)
	unsubscribe := m.Subscribe(func(online bool) { edges <- online })
	defer unsubscribe()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	source.set(nil)
	waitForEdge(t, edges, true)
	if !m.Online() {
		t.Fatal("expected online after successful probe")
	}

	source.set(errors.New("gone again"))
	waitForEdge(t, edges, false)
	if m.Online() {
		t.Fatal("expected offline after failing probe")
	}
}

func TestMonitorNotifiesOnlyOnTransitions(t *testing.T) {
	source := &fakeSource{}
	m := newTestMonitor(t, source)

	edges := make(chan bool, 16)
	defer m.Subscribe(func(online bool) { edges <- online })()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForEdge(t, edges, true)

	// Repeated successful probes must not re-notify.
	time.Sleep(50 * time.Millisecond)
	select {
	case online := <-edges:
		t.Fatalf("unexpected extra notification online=%v", online)
	default:
	}
}

func TestMonitorUnsubscribeStopsNotifications(t *testing.T) {
	source := &fakeSource{err: errors.New("unreachable")}
	m := newTestMonitor(t, source)

	edges := make(chan bool, 16)
	unsubscribe := m.Subscribe(func(online bool) { edges <- online })
	unsubscribe()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	source.set(nil)

	time.Sleep(50 * time.Millisecond)
	select {
	case online := <-edges:
		t.Fatalf("unsubscribed listener notified with online=%v", online)
	default:
	}
	if !m.Online() {
		t.Fatal("monitor itself should still track state")
	}
}

func TestMonitorOverride(t *testing.T) {
	source := &fakeSource{err: errors.New("unreachable")}
	m := newTestMonitor(t, source)

	edges := make(chan bool, 16)
	defer m.Subscribe(func(online bool) { edges <- online })()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Force online despite a failing probe; the probe loop must not
	// flip it back while the override holds.
	m.SetOverride(true)
	waitForEdge(t, edges, true)
	time.Sleep(50 * time.Millisecond)
	if !m.Online() {
		t.Fatal("override must pin the monitor online")
	}

	m.ClearOverride()
	waitForEdge(t, edges, false)
	if m.Online() {
		t.Fatal("probe should win again after the override clears")
	}
}

type blockingSource struct {
	started chan struct{}
	release chan error
}

func newBlockingSource() *blockingSource {
	return &blockingSource{
		started: make(chan struct{}, 1),
		release: make(chan error, 1),
	}
}

func (s *blockingSource) Check(ctx context.Context) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	select {
	case err := <-s.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestOverrideWinsOverInFlightCheck(t *testing.T) {
	source := newBlockingSource()
	m := newTestMonitor(t, source)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-source.started

	// Pin online while the first probe is still blocked inside Check.
	m.SetOverride(true)
	if !m.Online() {
		t.Fatal("override must pin the monitor online")
	}

	// The stale probe completes with a failure; its result must be
	// discarded, not applied over the override.
	source.release <- errors.New("unreachable")
	time.Sleep(50 * time.Millisecond)
	if !m.Online() {
		t.Fatal("in-flight probe result must not clobber the override")
	}

	// Once the override clears, probe results win again.
	m.ClearOverride()
	source.release <- errors.New("still unreachable")
	waitForState(t, m, false)
}

func waitForState(t *testing.T, m *connectivity.Monitor, online bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Online() == online {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for online=%v", online)
}

func TestMonitorStartTwiceFails(t *testing.T) {
	m := newTestMonitor(t, &fakeSource{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
}
