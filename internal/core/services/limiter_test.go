package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter(t *testing.T) {
	t.Run("admits up to the bound without blocking", func(t *testing.T) {
		l := NewLimiter(3)

		for i := 0; i < 3; i++ {
			require.NoError(t, l.Acquire(context.Background()))
		}

		assert.Equal(t, 3, l.InFlight())
		assert.Equal(t, 3, l.Cap())
	})

	t.Run("blocks at capacity until a slot is released", func(t *testing.T) {
		l := NewLimiter(2)
		require.NoError(t, l.Acquire(context.Background()))
		require.NoError(t, l.Acquire(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := l.Acquire(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		l.Release()
		require.NoError(t, l.Acquire(context.Background()))
		assert.Equal(t, 2, l.InFlight())
	})

	t.Run("acquire respects context cancellation", func(t *testing.T) {
		l := NewLimiter(1)
		require.NoError(t, l.Acquire(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, l.Acquire(ctx), context.Canceled)
	})

	t.Run("raises a non-positive bound to one", func(t *testing.T) {
		l := NewLimiter(0)

		assert.Equal(t, 1, l.Cap())
	})

	t.Run("never admits more tasks than the bound", func(t *testing.T) {
		const bound = 5
		l := NewLimiter(bound)

		var (
			wg       sync.WaitGroup
			inFlight atomic.Int64
			peak     atomic.Int64
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(t, l.Acquire(context.Background()))
				defer l.Release()

				n := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, peak.Load(), int64(bound))
		assert.Zero(t, l.InFlight())
	})
}
