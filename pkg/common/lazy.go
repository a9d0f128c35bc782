package common

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Lazy holds a resource that is created on first use. Concurrent first calls share a single creation, and
// every caller observes the same instance afterwards. A failed creation is not cached.
type Lazy[T any] struct {
	create func(ctx context.Context) (T, error)

	mu      sync.RWMutex
	value   T
	created bool
	group   singleflight.Group
}

func NewLazy[T any](create func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{create: create}
}

// Get returns the resource, creating it if needed.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.RLock()
	if l.created {
		v := l.value
		l.mu.RUnlock()
		return v, nil
	}
	l.mu.RUnlock()

	// Creation is detached from the caller. A caller that gives up stops waiting without failing the others.
	ch := l.group.DoChan("create", func() (interface{}, error) {
		// Double check inside the single flight, another call may have just finished.
		l.mu.RLock()
		if l.created {
			v := l.value
			l.mu.RUnlock()
			return v, nil
		}
		l.mu.RUnlock()

		v, err := l.create(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.value = v
		l.created = true
		l.mu.Unlock()
		return v, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		var zero T
		return zero, res.Err
	}

	v, ok := res.Val.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("lazy resource has unexpected type %T", res.Val)
	}
	return v, nil
}

// Peek returns the resource if it was already created.
func (l *Lazy[T]) Peek() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.created
}
