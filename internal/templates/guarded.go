package templates

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-taxcalc/internal/resilience"
)

// GuardedStore fails fast with resilience.ErrOpenCircuit while the wrapped
// store keeps failing. A missing template is not a failure.
type GuardedStore struct {
	Store   Store
	Breaker *resilience.Breaker
}

func isStoreFailure(err error) bool {
	return !errors.Is(err, ErrTemplateNotFound) && !errors.Is(err, context.Canceled)
}

func (g GuardedStore) Get(ctx context.Context, name string) (Template, error) {
	var t Template
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		t, err = g.Store.Get(ctx, name)
		return err
	}, isStoreFailure)
	return t, err
}

func (g GuardedStore) List(ctx context.Context, limit, offset int) ([]Summary, error) {
	var out []Summary
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Store.List(ctx, limit, offset)
		return err
	}, isStoreFailure)
	return out, err
}

func (g GuardedStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = g.Store.Count(ctx)
		return err
	}, isStoreFailure)
	return n, err
}

func (g GuardedStore) Save(ctx context.Context, t Template) error {
	return g.Breaker.Do(ctx, func(ctx context.Context) error {
		return g.Store.Save(ctx, t)
	}, isStoreFailure)
}
