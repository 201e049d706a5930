package shape

import "time"

// Shape is a single element on the shared canvas. The sync engine treats
// shapes as opaque beyond the reconciliation fields: UpdatedAt and UpdatedBy
// must survive buffering unchanged so last-write-wins comparison on the
// backend stays correct after a delayed replay.
type Shape struct {
	ID       string   `json:"id"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	W        float64  `json:"w"`
	H        float64  `json:"h"`
	Rotation *float64 `json:"rotation,omitempty"`

	Fill   string `json:"fill,omitempty"`
	Stroke string `json:"stroke,omitempty"`
	Text   string `json:"text,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// Clone returns a deep copy so snapshot consumers cannot mutate queue state.
func (s Shape) Clone() Shape {
	cp := s
	if s.Rotation != nil {
		rotation := *s.Rotation
		cp.Rotation = &rotation
	}
	return cp
}

// Newer reports whether candidate should replace current under the
// last-write-wins policy. Ties break toward the candidate with the greater
// actor ID so concurrent same-instant writes resolve deterministically on
// every client.
func Newer(current, candidate Shape) bool {
	if candidate.UpdatedAt.After(current.UpdatedAt) {
		return true
	}
	if candidate.UpdatedAt.Equal(current.UpdatedAt) {
		return candidate.UpdatedBy > current.UpdatedBy
	}
	return false
}

// Merge folds incoming records into a map of shapes by ID, keeping the
// last-write-wins winner per identifier. It mirrors what the backend is
// assumed to do; clients use it for optimistic local state.
func Merge(existing map[string]Shape, incoming []Shape) map[string]Shape {
	if existing == nil {
		existing = make(map[string]Shape, len(incoming))
	}
	for _, candidate := range incoming {
		current, ok := existing[candidate.ID]
		if !ok || Newer(current, candidate) {
			existing[candidate.ID] = candidate.Clone()
		}
	}
	return existing
}

// CloneSlice deep-copies a slice of shapes.
func CloneSlice(shapes []Shape) []Shape {
	if shapes == nil {
		return nil
	}
	out := make([]Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Clone()
	}
	return out
}
