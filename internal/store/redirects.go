package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/undeadops/slugger/internal/record"
)

// Redirects exposes typed redirect records on top of a raw key-value Store.
type Redirects struct {
	kv     Store
	logger zerolog.Logger
}

func NewRedirects(kv Store, logger zerolog.Logger) *Redirects {
	return &Redirects{
		kv:     kv,
		logger: logger,
	}
}

// Get returns the record stored under slug. A missing key and a value that
// cannot be decoded both report found == false; only backend failures are
// returned as errors.
func (r *Redirects) Get(ctx context.Context, slug string) (record.Redirect, bool, error) {
	data, err := r.kv.Get(ctx, slug)
	switch {
	case errors.Is(err, ErrNotFound):
		return record.Redirect{}, false, nil
	case errors.Is(err, ErrCorrupt):
		r.logger.Warn().Err(err).Str("slug", slug).Msg("Unreadable redirect item treated as missing")
		return record.Redirect{}, false, nil
	case err != nil:
		return record.Redirect{}, false, fmt.Errorf("failed to get redirect: %w", err)
	}

	rec, err := record.Decode(data)
	if err != nil {
		// Operators see corrupt entries here; clients just get a 404.
		r.logger.Warn().Err(err).Str("slug", slug).Msg("Unreadable redirect record treated as missing")
		return record.Redirect{}, false, nil
	}

	return rec, true, nil
}

func (r *Redirects) Put(ctx context.Context, slug string, rec record.Redirect) error {
	data, err := record.Encode(rec)
	if err != nil {
		return err
	}

	if err := r.kv.Put(ctx, slug, data); err != nil {
		return fmt.Errorf("failed to put redirect: %w", err)
	}

	return nil
}

func (r *Redirects) Delete(ctx context.Context, slug string) error {
	if err := r.kv.Delete(ctx, slug); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete redirect: %w", err)
	}

	return nil
}

// List returns every stored slug in backend order.
func (r *Redirects) List(ctx context.Context) ([]string, error) {
	keys, err := r.kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list redirects: %w", err)
	}

	if keys == nil {
		keys = []string{}
	}

	return keys, nil
}
