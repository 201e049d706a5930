package shape_test

import (
	"testing"
	"time"

	"easel/internal/shape"
)

func TestNewerPrefersLaterTimestamp(t *testing.T) {
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	current := shape.Shape{ID: "s1", UpdatedAt: base, UpdatedBy: "alice"}
	candidate := shape.Shape{ID: "s1", UpdatedAt: base.Add(time.Millisecond), UpdatedBy: "bob"}

	if !shape.Newer(current, candidate) {
		t.Fatal("later UpdatedAt should win")
	}
	if shape.Newer(candidate, current) {
		t.Fatal("earlier UpdatedAt should lose")
	}
}

func TestNewerBreaksTiesByActor(t *testing.T) {
	at := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	a := shape.Shape{ID: "s1", UpdatedAt: at, UpdatedBy: "alice"}
	b := shape.Shape{ID: "s1", UpdatedAt: at, UpdatedBy: "bob"}

	if !shape.Newer(a, b) {
		t.Fatal("greater actor ID should win ties")
	}
	if shape.Newer(b, a) {
		t.Fatal("tie-break must be asymmetric")
	}
}

func TestMergeKeepsWinnersPerID(t *testing.T) {
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	state := shape.Merge(nil, []shape.Shape{
		{ID: "s1", X: 1, UpdatedAt: base, UpdatedBy: "alice"},
		{ID: "s2", X: 2, UpdatedAt: base, UpdatedBy: "alice"},
	})

	state = shape.Merge(state, []shape.Shape{
		{ID: "s1", X: 10, UpdatedAt: base.Add(time.Second), UpdatedBy: "bob"},
		{ID: "s2", X: 20, UpdatedAt: base.Add(-time.Second), UpdatedBy: "bob"},
	})

	if state["s1"].X != 10 {
		t.Fatalf("s1 should take newer write, got %+v", state["s1"])
	}
	if state["s2"].X != 2 {
		t.Fatalf("s2 should keep existing write, got %+v", state["s2"])
	}
}

func TestCloneIsDeep(t *testing.T) {
	rotation := 45.0
	original := shape.Shape{ID: "s1", Rotation: &rotation}
	cp := original.Clone()

	*cp.Rotation = 90
	if *original.Rotation != 45 {
		t.Fatal("Clone must not share rotation pointer")
	}
}
