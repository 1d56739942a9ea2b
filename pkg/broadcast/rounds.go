package broadcast

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

var (
	// ErrClosed is returned when the node is shutting down.
	ErrClosed = errors.New("closed")
)

// Rounds tracks the generation, which is the number of completed
// propagation rounds, and lets callers wait for the generation to advance.
//
// The generation carries no information about which values were sent, it is
// only used to wait until at least one round has been attempted.
type Rounds struct {
	generation *atomic.Uint64

	// inFlight is the number of rounds that have begun but not completed.
	inFlight uint64

	// advanceCh is closed and replaced each time the generation advances.
	advanceCh chan struct{}

	closed   bool
	closedCh chan struct{}

	// mu protects the above fields. generation is only updated with mu held.
	mu sync.Mutex
}

func NewRounds() *Rounds {
	return &Rounds{
		generation: atomic.NewUint64(0),
		advanceCh:  make(chan struct{}),
		closedCh:   make(chan struct{}),
	}
}

// Generation returns the number of completed rounds.
func (r *Rounds) Generation() uint64 {
	return r.generation.Load()
}

// Begin records that a round has started. Each call must be followed by a
// call to Complete.
func (r *Rounds) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inFlight++
}

// Complete records that a round has finished, advancing the generation by
// exactly one and releasing any waiters whose baseline has been exceeded.
//
// Returns the new generation.
func (r *Rounds) Complete() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight > 0 {
		r.inFlight--
	}
	generation := r.generation.Inc()

	close(r.advanceCh)
	r.advanceCh = make(chan struct{})

	return generation
}

// Barrier returns a baseline that is only exceeded once a round that begins
// after the call to Barrier completes.
//
// With no rounds in flight this is the current generation. Otherwise the
// rounds in flight may already have taken their snapshot so must complete
// first. Since rounds can complete in any order, waiting for the generation
// to exceed generation + in-flight means at least one of the completed
// rounds began after Barrier.
func (r *Rounds) Barrier() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.generation.Load() + r.inFlight
}

// WaitForNextRound blocks until the generation exceeds baseline.
//
// Returns the context error if the context is done first, or ErrClosed if
// Close is called. Abandoning a wait has no side effects.
func (r *Rounds) WaitForNextRound(ctx context.Context, baseline uint64) error {
	for {
		r.mu.Lock()
		if r.generation.Load() > baseline {
			r.mu.Unlock()
			return nil
		}
		if r.closed {
			r.mu.Unlock()
			return ErrClosed
		}
		advanceCh := r.advanceCh
		r.mu.Unlock()

		select {
		case <-advanceCh:
		case <-r.closedCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases all waiters with ErrClosed.
func (r *Rounds) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	close(r.closedCh)
}
