package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
)

// ErrSkipWrite, returned from an Update callback, ends the update without
// writing anything; Update then returns nil.
var ErrSkipWrite = errors.New("kv: skip write")

// Document is a typed JSON value stored under one key. Update runs a full
// read-modify-write under the document's lock, so concurrent updates of the
// same Document are serialized.
//
// An unparseable stored value reads as the zero T and is logged; it is
// overwritten by the next successful Update.
type Document[T any] struct {
	store Store
	key   string
	log   logging.Logger
	mu    sync.Mutex
}

func NewDocument[T any](store Store, key string, log logging.Logger) *Document[T] {
	return &Document[T]{store: store, key: key, log: log.With("key", key)}
}

func (d *Document[T]) Key() string { return d.key }

// Load returns the current value.
func (d *Document[T]) Load(ctx context.Context) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(ctx)
}

// Update applies fn to the current value and persists the result. If fn
// fails nothing is written. Store failures are logged and returned
// wrapping common.ErrStorage; the stored value is then unchanged.
func (d *Document[T]) Update(ctx context.Context, fn func(v *T) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&v); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}
	return d.save(ctx, v)
}

// Replace stores v unconditionally.
func (d *Document[T]) Replace(ctx context.Context, v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.save(ctx, v)
}

// Reset removes the stored value.
func (d *Document[T]) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.Delete(ctx, d.key); err != nil {
		d.log.Error(ctx, "kv delete failed", "err", err)
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}

func (d *Document[T]) load(ctx context.Context) (T, error) {
	var v T
	raw, err := d.store.Get(ctx, d.key)
	if err != nil {
		d.log.Error(ctx, "kv read failed", "err", err)
		return v, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		d.log.Warn(ctx, "corrupt kv payload, treating as empty", "err", err)
		var zero T
		return zero, nil
	}
	return v, nil
}

func (d *Document[T]) save(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.key, err)
	}
	if err := d.store.Set(ctx, d.key, raw); err != nil {
		d.log.Error(ctx, "kv write failed", "err", err)
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}
