package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leandrodaf/midiroute/internal/logger"
)

func TestLoop_RunsPostedWorkInOrder(t *testing.T) {
	l := NewLoop(logger.NewNopLogger(), 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.True(t, l.Post(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted work did not run")
	}
	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	mu.Unlock()

	l.Close()
	require.NoError(t, <-errCh)
	assert.False(t, l.Post(func() {}))
	assert.False(t, l.TryPost(func() {}))
}

func TestLoop_TryPostDropsWhenFull(t *testing.T) {
	l := NewLoop(logger.NewNopLogger(), 2)
	assert.True(t, l.TryPost(func() {}))
	assert.True(t, l.TryPost(func() {}))
	assert.False(t, l.TryPost(func() {}))
	assert.False(t, l.TryPost(func() {}))
	assert.Equal(t, uint64(2), l.Dropped())
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	l := NewLoop(logger.NewNopLogger(), 4)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	done := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after panic")
	}

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	l.Wait()
}

func TestLoop_RunOnce(t *testing.T) {
	l := NewLoop(logger.NewNopLogger(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		l.Post(func() { close(started) })
		_ = l.Run(ctx)
	}()
	<-started
	assert.Error(t, l.Run(ctx))
	l.Close()
	l.Wait()
}
