// Package idmap remembers which server id the record store assigned to a
// record created on the device. An entry outlives the queued create so that
// later actions and leftover mirror entries still resolve after a partial
// write.
package idmap

import (
	"context"
	"maps"

	"github.com/dmitrijs2005/wetmap/internal/client/repositories/kv"
	"github.com/dmitrijs2005/wetmap/internal/logging"
)

type Map struct {
	doc *kv.Document[map[string]string]
}

func New(store kv.Store, log logging.Logger) *Map {
	return &Map{doc: kv.NewDocument[map[string]string](store, kv.KeyConfirmedIDs, log)}
}

// Load returns a copy of every local id to server id entry.
func (m *Map) Load(ctx context.Context) (map[string]string, error) {
	ids, err := m.doc.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(ids))
	maps.Copy(out, ids)
	return out, nil
}

func (m *Map) Put(ctx context.Context, localID, serverID string) error {
	return m.doc.Update(ctx, func(ids *map[string]string) error {
		if (*ids)[localID] == serverID {
			return kv.ErrSkipWrite
		}
		if *ids == nil {
			*ids = make(map[string]string)
		}
		(*ids)[localID] = serverID
		return nil
	})
}

// Prune drops entries whose local id is not in live and returns how many
// were removed.
func (m *Map) Prune(ctx context.Context, live map[string]struct{}) (int, error) {
	n := 0
	err := m.doc.Update(ctx, func(ids *map[string]string) error {
		for local := range *ids {
			if _, ok := live[local]; !ok {
				delete(*ids, local)
				n++
			}
		}
		if n == 0 {
			return kv.ErrSkipWrite
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
