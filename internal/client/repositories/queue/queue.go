// Package queue is the Pending Action Queue: an ordered, durable log of
// mutations not yet applied to the record store.
package queue

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/kv"
	"github.com/dmitrijs2005/wetmap/internal/logging"
)

// Queue keeps actions in insertion order. Every mutating call has been
// persisted when it returns without error; on a store failure the queue is
// unchanged and the error wraps common.ErrStorage.
type Queue struct {
	doc *kv.Document[[]models.PendingAction]
	log logging.Logger
}

func New(store kv.Store, log logging.Logger) *Queue {
	return &Queue{
		doc: kv.NewDocument[[]models.PendingAction](store, kv.KeyPendingActions, log),
		log: log,
	}
}

func (q *Queue) Enqueue(ctx context.Context, a models.PendingAction) error {
	err := q.doc.Update(ctx, func(actions *[]models.PendingAction) error {
		*actions = append(*actions, a)
		return nil
	})
	if err == nil {
		q.log.Debug(ctx, "action queued", "action_id", a.ID, "kind", a.Kind)
	}
	return err
}

// Drain returns every queued action in replay order without removing them.
func (q *Queue) Drain(ctx context.Context) ([]models.PendingAction, error) {
	actions, err := q.doc.Load(ctx)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		return []models.PendingAction{}, nil
	}
	return actions, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	actions, err := q.doc.Load(ctx)
	return len(actions), err
}

// Remove deletes the first action matching match. It reports whether one
// was found; nothing is written otherwise.
func (q *Queue) Remove(ctx context.Context, match func(models.PendingAction) bool) (bool, error) {
	removed := false
	err := q.doc.Update(ctx, func(actions *[]models.PendingAction) error {
		i := slices.IndexFunc(*actions, match)
		if i < 0 {
			return kv.ErrSkipWrite
		}
		*actions = slices.Delete(*actions, i, i+1)
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (q *Queue) RemoveByID(ctx context.Context, id string) (bool, error) {
	return q.Remove(ctx, func(a models.PendingAction) bool { return a.ID == id })
}

// RemoveTargeting deletes every action that applies to locationID and
// returns how many were removed.
func (q *Queue) RemoveTargeting(ctx context.Context, locationID string) (int, error) {
	n := 0
	err := q.doc.Update(ctx, func(actions *[]models.PendingAction) error {
		before := len(*actions)
		*actions = slices.DeleteFunc(*actions, func(a models.PendingAction) bool {
			return a.Target() == locationID
		})
		n = before - len(*actions)
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

// Retarget rewrites every queued update and delete of from to apply to to.
func (q *Queue) Retarget(ctx context.Context, from, to string) error {
	err := q.doc.Update(ctx, func(actions *[]models.PendingAction) error {
		changed := false
		for i, a := range *actions {
			if a.Kind == models.KindCreateLocation || a.Target() != from {
				continue
			}
			moved, err := a.Retarget(to)
			if err != nil {
				return err
			}
			(*actions)[i] = moved
			changed = true
		}
		if !changed {
			return kv.ErrSkipWrite
		}
		return nil
	})
	return err
}

// MarkFailed records a failed replay of the action with the given id.
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error) error {
	err := q.doc.Update(ctx, func(actions *[]models.PendingAction) error {
		i := slices.IndexFunc(*actions, func(a models.PendingAction) bool { return a.ID == id })
		if i < 0 {
			return kv.ErrSkipWrite
		}
		(*actions)[i].Attempts++
		if cause != nil {
			(*actions)[i].LastError = cause.Error()
		}
		return nil
	})
	return err
}

func (q *Queue) Clear(ctx context.Context) error {
	return q.doc.Replace(ctx, []models.PendingAction{})
}
