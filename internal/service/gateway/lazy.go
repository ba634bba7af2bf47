package gateway

import (
	"context"
	"sync"
	"sync/atomic"
)

// lazy builds a value on first use. Concurrent first callers share one build;
// a failed build is not cached and is attempted again on the next call.
type lazy[T any] struct {
	mu    sync.Mutex
	value atomic.Pointer[T]
	build func(context.Context) (T, error)
}

func newLazy[T any](build func(context.Context) (T, error)) *lazy[T] {
	return &lazy[T]{build: build}
}

func (l *lazy[T]) get(ctx context.Context) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if v := l.value.Load(); v != nil {
		return *v, nil
	}

	built, err := l.build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	l.value.Store(&built)
	return built, nil
}

func (l *lazy[T]) loaded() bool {
	return l.value.Load() != nil
}
