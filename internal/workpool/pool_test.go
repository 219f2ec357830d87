package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoReturnsJobError(t *testing.T) {
	p := New("test", 2, 4)
	defer p.Close()

	want := errors.New("boom")
	err := p.Do(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	assert.NoError(t, p.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestDoBoundsConcurrency(t *testing.T) {
	const workers = 3
	p := New("test", workers, 0)
	defer p.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestDoAfterClose(t *testing.T) {
	p := New("test", 1, 1)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestDoCancelledWhileWaiting(t *testing.T) {
	p := New("test", 1, 1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var ran atomic.Bool
	err := p.Do(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close())
	assert.False(t, ran.Load(), "job queued by a cancelled caller must not run")
}

func TestDoRecoversPanics(t *testing.T) {
	p := New("test", 1, 0)
	defer p.Close()

	err := p.Do(context.Background(), func(context.Context) error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	assert.NoError(t, p.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	p := New("test", 1, 8)

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(context.Context) error {
				time.Sleep(5 * time.Millisecond)
				done.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()
	require.NoError(t, p.Close())
	assert.Equal(t, int32(5), done.Load())
}
