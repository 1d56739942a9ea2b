package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Retries(t *testing.T) {
	b := New(3, time.Millisecond, time.Millisecond*5)
	for i := 0; i != 3; i++ {
		assert.True(t, b.Wait(context.Background()))
	}
	assert.False(t, b.Wait(context.Background()))
	assert.Equal(t, 3, b.Attempts())
}

func TestBackoff_MaxBackoff(t *testing.T) {
	b := New(0, time.Millisecond, time.Millisecond*4)
	for i := 0; i != 5; i++ {
		b.lastBackoff = b.nextWait()
	}
	// Capped at the max backoff plus at most 10% jitter.
	assert.LessOrEqual(t, b.lastBackoff, time.Duration(float64(time.Millisecond*4)*1.1))
}

func TestBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(0, time.Minute, time.Minute)
	assert.False(t, b.Wait(ctx))
}
