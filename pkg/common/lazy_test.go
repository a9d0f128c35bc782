package common

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

type client struct{ id int32 }

func TestLazyCreatesOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLazy(func(ctx context.Context) (*client, error) {
		n := calls.Add(1)
		<-release
		return &client{id: n}, nil
	})

	const callers = 32
	results := make([]*client, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := l.Get(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}

	// Give the goroutines a chance to pile up behind the first creation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}

	again, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, results[0], again)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLazyCallerCancellationDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	l := NewLazy(func(ctx context.Context) (*client, error) {
		n := calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &client{id: n}, nil
	})

	ctx1, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Get(ctx1)
		firstErr <- err
	}()
	<-started

	type result struct {
		c   *client
		err error
	}
	second := make(chan result, 1)
	go func() {
		c, err := l.Get(context.Background())
		second <- result{c, err}
	}()

	// Let the second caller join the flight before the first one gives up.
	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	require.NotNil(t, res.c)
	assert.Equal(t, int32(1), calls.Load())

	peeked, ok := l.Peek()
	assert.True(t, ok)
	assert.Same(t, res.c, peeked)
}

func TestLazyDoesNotCacheFailures(t *testing.T) {
	var calls int
	l := NewLazy(func(ctx context.Context) (*client, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("dial failed")
		}
		return &client{id: 2}, nil
	})

	_, err := l.Get(context.Background())
	require.Error(t, err)
	_, ok := l.Peek()
	assert.False(t, ok)

	c, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), c.id)

	peeked, ok := l.Peek()
	assert.True(t, ok)
	assert.Same(t, c, peeked)
}
