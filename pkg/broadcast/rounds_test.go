package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRounds_WaitForNextRound(t *testing.T) {
	t.Run("already exceeded", func(t *testing.T) {
		rounds := NewRounds()
		rounds.Begin()
		rounds.Complete()

		assert.NoError(t, rounds.WaitForNextRound(context.Background(), 0))
	})

	t.Run("wait for complete", func(t *testing.T) {
		rounds := NewRounds()
		baseline := rounds.Barrier()
		assert.Equal(t, uint64(0), baseline)

		doneCh := make(chan error)
		go func() {
			doneCh <- rounds.WaitForNextRound(context.Background(), baseline)
		}()

		select {
		case <-doneCh:
			t.Fatal("wait returned before round completed")
		case <-time.After(time.Millisecond * 10):
		}

		rounds.Begin()
		assert.Equal(t, uint64(1), rounds.Complete())

		select {
		case err := <-doneCh:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	})

	t.Run("multiple waiters", func(t *testing.T) {
		rounds := NewRounds()

		doneCh := make(chan error)
		for i := 0; i != 5; i++ {
			go func() {
				doneCh <- rounds.WaitForNextRound(context.Background(), 0)
			}()
		}

		rounds.Begin()
		rounds.Complete()

		for i := 0; i != 5; i++ {
			select {
			case err := <-doneCh:
				assert.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("timeout")
			}
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		rounds := NewRounds()

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
		defer cancel()

		err := rounds.WaitForNextRound(ctx, 0)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))

		// Abandoning the wait doesn't affect the generation.
		assert.Equal(t, uint64(0), rounds.Generation())
	})

	t.Run("closed", func(t *testing.T) {
		rounds := NewRounds()

		doneCh := make(chan error)
		go func() {
			doneCh <- rounds.WaitForNextRound(context.Background(), 0)
		}()

		rounds.Close()

		select {
		case err := <-doneCh:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	})
}

func TestRounds_Barrier(t *testing.T) {
	rounds := NewRounds()

	// Two rounds begin before the barrier so may have taken their snapshot
	// before the waiters value was stored.
	rounds.Begin()
	rounds.Begin()

	baseline := rounds.Barrier()
	assert.Equal(t, uint64(2), baseline)

	rounds.Begin()

	rounds.Complete()
	rounds.Complete()
	assert.Equal(t, uint64(2), rounds.Generation())

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
	defer cancel()
	assert.Error(t, rounds.WaitForNextRound(ctx, baseline))

	// Only once the round that began after the barrier completes is the
	// baseline exceeded.
	rounds.Complete()
	assert.NoError(t, rounds.WaitForNextRound(context.Background(), baseline))
}
