package broadcast

import "sync"

// Value is a broadcast value. Values are opaque to the node and only compared
// for equality.
type Value int64

// Store contains the values seen by the node in the order they arrived.
//
// Values are never removed, so the index of a value in the log never changes
// and is used as the cursor position for neighbours.
type Store struct {
	seen  map[Value]struct{}
	order []Value

	// mu protects the above fields.
	mu sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		seen: make(map[Value]struct{}),
	}
}

// Insert appends the value to the log if it hasn't already been seen.
//
// Returns true if the value is new.
func (s *Store) Insert(v Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(v)
}

// InsertAll inserts each of the given values, returning the number of new
// values.
func (s *Store) InsertAll(values []Value) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, v := range values {
		if s.insertLocked(v) {
			added++
		}
	}
	return added
}

// ReadAll returns a copy of every known value in local arrival order.
func (s *Store) ReadAll() []Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]Value, len(s.order))
	copy(values, s.order)
	return values
}

// Slice returns a copy of the values from index from to the end of the log,
// along with from itself. If from is beyond the end of the log the slice is
// empty.
func (s *Store) Slice(from int) ([]Value, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if from < 0 {
		from = 0
	}
	if from >= len(s.order) {
		return []Value{}, from
	}

	values := make([]Value, len(s.order)-from)
	copy(values, s.order[from:])
	return values, from
}

// Len returns the number of known values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// Contains returns whether the value has been seen.
func (s *Store) Contains(v Value) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.seen[v]
	return ok
}

func (s *Store) insertLocked(v Value) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}
