package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"easel/internal/shape"
)

// Kind identifies the mutation an operation carries.
type Kind string

const (
	KindUpsert Kind = "upsert"
	KindRemove Kind = "remove"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindUpsert:
		return KindUpsert, true
	case KindRemove:
		return KindRemove, true
	default:
		return "", false
	}
}

// Op is a buffered canvas mutation awaiting replay. Upserts carry full shape
// records; removes carry shape identifiers. EnqueuedAt orders the queue and
// is never rewritten after enqueue.
type Op struct {
	ID         string
	Kind       Kind
	Shapes     []shape.Shape
	ShapeIDs   []string
	EnqueuedAt time.Time
	CanvasID   string
	ActorID    string
}

// Clone returns a deep copy safe to hand to observers.
func (o Op) Clone() Op {
	cp := o
	cp.Shapes = shape.CloneSlice(o.Shapes)
	if o.ShapeIDs != nil {
		cp.ShapeIDs = make([]string, len(o.ShapeIDs))
		copy(cp.ShapeIDs, o.ShapeIDs)
	}
	return cp
}

// Size returns the number of shape records or identifiers the op carries.
func (o Op) Size() int {
	if o.Kind == KindRemove {
		return len(o.ShapeIDs)
	}
	return len(o.Shapes)
}

func (o Op) encodePayload() (string, error) {
	var (
		raw []byte
		err error
	)
	switch o.Kind {
	case KindUpsert:
		raw, err = json.Marshal(o.Shapes)
	case KindRemove:
		raw, err = json.Marshal(o.ShapeIDs)
	default:
		return "", fmt.Errorf("unknown op kind %q", o.Kind)
	}
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", o.Kind, err)
	}
	return string(raw), nil
}

func decodePayload(op *Op, raw string) error {
	switch op.Kind {
	case KindUpsert:
		if err := json.Unmarshal([]byte(raw), &op.Shapes); err != nil {
			return fmt.Errorf("unmarshal upsert payload: %w", err)
		}
	case KindRemove:
		if err := json.Unmarshal([]byte(raw), &op.ShapeIDs); err != nil {
			return fmt.Errorf("unmarshal remove payload: %w", err)
		}
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
	return nil
}

// TransportFunc sends a single operation to the shared backend. The engine
// supplies one at drain time; any error aborts the drain with the queue left
// intact.
type TransportFunc func(ctx context.Context, op Op) error
