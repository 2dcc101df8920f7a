// internal/service/syncer/units.go
package syncer

import (
	"context"
	"fmt"
	"sync"

	domain "erp-sync-service/internal/domain/sync"

	"golang.org/x/sync/errgroup"
)

// errorLog collects unit failures from concurrent workers.
type errorLog struct {
	mu     sync.Mutex
	errors []domain.UnitError
}

func (l *errorLog) add(unit, key string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, domain.UnitError{Unit: unit, Key: key, Message: err.Error()})
}

func (l *errorLog) drain() []domain.UnitError {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.errors
	l.errors = nil
	return out
}

// runUnits calls fn for 0..n-1 with at most limit in flight. With limit 1 the
// calls happen in index order. Scheduling stops once ctx is done; a unit
// that panics returns the panic as its error instead of killing the run.
func runUnits(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error, onErr func(i int, err error)) error {
	g := errgroup.Group{}
	g.SetLimit(limit)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := safeCall(ctx, i, fn); err != nil {
				onErr(i, err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

func safeCall(ctx context.Context, i int, fn func(ctx context.Context, i int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, i)
}
