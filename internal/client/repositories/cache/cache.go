// Package cache keeps the last known server-confirmed records so listings
// can be served while the record store is unreachable.
package cache

import (
	"context"
	"slices"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/client/repositories/kv"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

type snapshot struct {
	Locations []shared.Location `json:"locations"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

type Cache struct {
	doc *kv.Document[snapshot]
	now func() time.Time
}

func New(store kv.Store, log logging.Logger) *Cache {
	return &Cache{
		doc: kv.NewDocument[snapshot](store, kv.KeyRemoteLocations, log),
		now: time.Now,
	}
}

// List returns the cached records and whether a remote listing was ever
// stored.
func (c *Cache) List(ctx context.Context) ([]shared.Location, bool, error) {
	s, err := c.doc.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	locs := s.Locations
	if locs == nil {
		locs = []shared.Location{}
	}
	return locs, !s.FetchedAt.IsZero(), nil
}

// Store records the result of a remote listing made with filter f. Cached
// records that match f but are missing from locs are gone on the server and
// are dropped; records outside f are kept.
func (c *Cache) Store(ctx context.Context, f shared.LocationFilter, locs []shared.Location) error {
	return c.doc.Update(ctx, func(s *snapshot) error {
		fresh := make(map[string]struct{}, len(locs))
		for _, l := range locs {
			fresh[l.ID] = struct{}{}
		}
		kept := slices.DeleteFunc(s.Locations, func(l shared.Location) bool {
			_, ok := fresh[l.ID]
			return ok || f.Matches(l)
		})
		s.Locations = append(kept, locs...)
		s.FetchedAt = c.now().UTC()
		return nil
	})
}

// Has reports whether id is a cached record. known is false when nothing
// was ever fetched, in which case found carries no information.
func (c *Cache) Has(ctx context.Context, id string) (found, known bool, err error) {
	s, err := c.doc.Load(ctx)
	if err != nil {
		return false, false, err
	}
	found = slices.ContainsFunc(s.Locations, func(l shared.Location) bool { return l.ID == id })
	return found, !s.FetchedAt.IsZero(), nil
}

// Upsert adds or replaces one record.
func (c *Cache) Upsert(ctx context.Context, loc shared.Location) error {
	return c.doc.Update(ctx, func(s *snapshot) error {
		if i := slices.IndexFunc(s.Locations, func(l shared.Location) bool { return l.ID == loc.ID }); i >= 0 {
			s.Locations[i] = loc
			return nil
		}
		s.Locations = append(s.Locations, loc)
		return nil
	})
}

// Patch applies patch to the cached record with id, if any.
func (c *Cache) Patch(ctx context.Context, id string, patch shared.LocationPatch) error {
	return c.doc.Update(ctx, func(s *snapshot) error {
		i := slices.IndexFunc(s.Locations, func(l shared.Location) bool { return l.ID == id })
		if i < 0 {
			return kv.ErrSkipWrite
		}
		patch.Apply(&s.Locations[i])
		s.Locations[i].UpdatedAt = c.now().UTC()
		return nil
	})
}

func (c *Cache) Remove(ctx context.Context, id string) error {
	return c.doc.Update(ctx, func(s *snapshot) error {
		before := len(s.Locations)
		s.Locations = slices.DeleteFunc(s.Locations, func(l shared.Location) bool { return l.ID == id })
		if len(s.Locations) == before {
			return kv.ErrSkipWrite
		}
		return nil
	})
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.doc.Reset(ctx)
}
