package broadcast

import "sync"

// CursorTable tracks, for each neighbour, the number of values at the start
// of the store log that the neighbour has acknowledged (the watermark).
//
// A neighbour without an entry has a watermark of 0. Watermarks never
// decrease.
type CursorTable struct {
	store *Store

	watermarks map[string]int

	// mu protects the above fields.
	mu sync.Mutex
}

func NewCursorTable(store *Store) *CursorTable {
	return &CursorTable{
		store:      store,
		watermarks: make(map[string]int),
	}
}

// PeekAndDelta returns the neighbours watermark and the values in the log
// past that watermark. Both are read from the same snapshot so the
// neighbours new watermark, once acknowledged, is watermark + len(delta).
func (t *CursorTable) PeekAndDelta(neighbour string) (int, []Value) {
	t.mu.Lock()
	defer t.mu.Unlock()

	watermark := t.watermarks[neighbour]
	delta, _ := t.store.Slice(watermark)
	return watermark, delta
}

// Advance moves the neighbours watermark from expectedPrev to
// expectedPrev + deltaLen.
//
// If the watermark is no longer expectedPrev, another round has already
// advanced it since the delta was computed so the update is skipped and
// Advance returns false. The next round recomputes the delta from the
// current watermark.
func (t *CursorTable) Advance(neighbour string, expectedPrev int, deltaLen int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.watermarks[neighbour] != expectedPrev {
		return false
	}
	if deltaLen > 0 {
		t.watermarks[neighbour] = expectedPrev + deltaLen
	}
	return true
}

// Watermark returns the watermark of the given neighbour.
func (t *CursorTable) Watermark(neighbour string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.watermarks[neighbour]
}

// Watermarks returns a copy of every known watermark.
func (t *CursorTable) Watermarks() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	watermarks := make(map[string]int, len(t.watermarks))
	for neighbour, watermark := range t.watermarks {
		watermarks[neighbour] = watermark
	}
	return watermarks
}
