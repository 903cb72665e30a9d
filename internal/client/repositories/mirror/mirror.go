// Package mirror is the Local Record Mirror: records created on the device
// that the record store has not confirmed yet. Every mirrored record
// carries a local-origin id.
package mirror

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/kv"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

type Mirror struct {
	doc *kv.Document[[]shared.Location]
	now func() time.Time
}

func New(store kv.Store, log logging.Logger) *Mirror {
	return &Mirror{
		doc: kv.NewDocument[[]shared.Location](store, kv.KeyLocalLocations, log),
		now: time.Now,
	}
}

// List returns mirrored records in insertion order.
func (m *Mirror) List(ctx context.Context) ([]shared.Location, error) {
	locs, err := m.doc.Load(ctx)
	if err != nil {
		return nil, err
	}
	if locs == nil {
		return []shared.Location{}, nil
	}
	return locs, nil
}

func (m *Mirror) Len(ctx context.Context) (int, error) {
	locs, err := m.doc.Load(ctx)
	return len(locs), err
}

func (m *Mirror) Get(ctx context.Context, id string) (shared.Location, error) {
	locs, err := m.doc.Load(ctx)
	if err != nil {
		return shared.Location{}, err
	}
	i := slices.IndexFunc(locs, func(l shared.Location) bool { return l.ID == id })
	if i < 0 {
		return shared.Location{}, common.ErrNotFound
	}
	return locs[i], nil
}

// Save stores loc, replacing a record with the same id in place.
func (m *Mirror) Save(ctx context.Context, loc shared.Location) error {
	if !models.IsLocalID(loc.ID) {
		return fmt.Errorf("%w: mirror accepts local ids only, got %q", common.ErrValidation, loc.ID)
	}
	return m.doc.Update(ctx, func(locs *[]shared.Location) error {
		if i := slices.IndexFunc(*locs, func(l shared.Location) bool { return l.ID == loc.ID }); i >= 0 {
			(*locs)[i] = loc
			return nil
		}
		*locs = append(*locs, loc)
		return nil
	})
}

// Update merges patch into the record with id. It reports whether the
// record exists; an absent id is a no-op. Re-applying a patch that changes
// nothing does not write.
func (m *Mirror) Update(ctx context.Context, id string, patch shared.LocationPatch) (bool, error) {
	found := false
	err := m.doc.Update(ctx, func(locs *[]shared.Location) error {
		i := slices.IndexFunc(*locs, func(l shared.Location) bool { return l.ID == id })
		if i < 0 {
			return kv.ErrSkipWrite
		}
		found = true
		before := (*locs)[i]
		patch.Apply(&(*locs)[i])
		if (*locs)[i] == before {
			return kv.ErrSkipWrite
		}
		(*locs)[i].UpdatedAt = m.now().UTC()
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Delete removes the record with id and reports whether it was present.
func (m *Mirror) Delete(ctx context.Context, id string) (bool, error) {
	found := false
	err := m.doc.Update(ctx, func(locs *[]shared.Location) error {
		before := len(*locs)
		*locs = slices.DeleteFunc(*locs, func(l shared.Location) bool { return l.ID == id })
		if len(*locs) == before {
			return kv.ErrSkipWrite
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (m *Mirror) Clear(ctx context.Context) error {
	return m.doc.Replace(ctx, []shared.Location{})
}
