package reconcile

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/common"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

// pass is the state of one Run.
type pass struct {
	*Engine
	report *Report
	// confirmed maps local ids to the server ids the store assigned, from
	// this pass and earlier ones.
	confirmed map[string]string
	// awaiting holds local ids with a queued create or a mirror entry at
	// the start of the pass.
	awaiting map[string]struct{}
}

// replay applies actions in queue order. A failed action stays queued and
// the pass moves on. It stops early only when the store rejects the
// credentials.
func (p *pass) replay(ctx context.Context, actions []models.PendingAction) error {
	for _, a := range actions {
		action, err := a.Unwrap()
		if err != nil {
			p.log.Error(ctx, "undecodable pending action left in queue", "action_id", a.ID, "kind", a.Kind, "err", err)
			p.report.fail(describe(a, err))
			continue
		}

		switch v := action.(type) {
		case models.CreateLocation:
			err = p.create(ctx, a, v)
		case models.UpdateLocation:
			err = p.update(ctx, a, v)
		case models.DeleteLocation:
			err = p.delete(ctx, a, v)
		}

		if err == nil {
			continue
		}
		p.report.fail(describe(a, err))
		p.log.Warn(ctx, "replay failed, action kept", "action_id", a.ID, "kind", a.Kind, "err", err)
		if merr := p.queue.MarkFailed(ctx, a.ID, err); merr != nil {
			p.log.Error(ctx, "failed to record replay failure", "action_id", a.ID, "err", merr)
		}
		if errors.Is(err, common.ErrUnauthorized) {
			return err
		}
	}
	return nil
}

func (p *pass) create(ctx context.Context, a models.PendingAction, v models.CreateLocation) error {
	loc := v.Input.Location()
	serverID, known := p.confirmed[v.LocalID]
	if known {
		// an earlier attempt reached the store but the action outlived it
		loc.ID = serverID
	} else {
		created, err := p.remote.CreateLocation(ctx, v.Input)
		if err != nil {
			return err
		}
		loc = created
		p.remember(ctx, v.LocalID, loc.ID)
	}

	removed, err := p.queue.RemoveByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if !removed {
		// cancelled on the device while the call was in flight
		p.log.Info(ctx, "create was cancelled during replay, deleting remote record", "location_id", loc.ID, "local_id", v.LocalID)
		if err := p.remote.DeleteLocation(ctx, loc.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			p.log.Warn(ctx, "failed to delete cancelled record", "location_id", loc.ID, "err", err)
		}
		p.report.Dropped++
		return nil
	}

	if !known {
		p.report.Created++
	}
	p.confirm(ctx, v.LocalID, loc)
	p.report.Replayed++
	return nil
}

func (p *pass) update(ctx context.Context, a models.PendingAction, v models.UpdateLocation) error {
	id, ok := p.resolve(v.ID)
	if !ok {
		return p.unresolved(ctx, a, v.ID)
	}

	loc, err := p.remote.UpdateLocation(ctx, id, v.Patch)
	switch {
	case errors.Is(err, common.ErrNotFound):
		p.log.Warn(ctx, "update target no longer exists, dropping action", "action_id", a.ID, "location_id", id)
		if _, err := p.queue.RemoveByID(ctx, a.ID); err != nil {
			return err
		}
		p.forget(ctx, id)
		p.report.Dropped++
		return nil
	case err != nil:
		return err
	}

	if _, err := p.queue.RemoveByID(ctx, a.ID); err != nil {
		return err
	}
	if err := p.cache.Upsert(ctx, loc); err != nil {
		p.log.Warn(ctx, "cache update failed", "location_id", loc.ID, "err", err)
	}
	p.report.Replayed++
	return nil
}

func (p *pass) delete(ctx context.Context, a models.PendingAction, v models.DeleteLocation) error {
	id, ok := p.resolve(v.ID)
	if !ok {
		return p.unresolved(ctx, a, v.ID)
	}

	err := p.remote.DeleteLocation(ctx, id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if _, err := p.queue.RemoveByID(ctx, a.ID); err != nil {
		return err
	}
	p.forget(ctx, id)
	p.report.Replayed++
	return nil
}

// unresolved handles an action whose local target has no server id yet. It
// waits while the record's create is still pending; with neither a queued
// create nor a mirror entry nothing can ever confirm it, so it is dropped.
func (p *pass) unresolved(ctx context.Context, a models.PendingAction, localID string) error {
	if _, ok := p.awaiting[localID]; ok {
		p.report.Deferred++
		return nil
	}
	p.log.Warn(ctx, "action targets a record that will never be created, dropping it", "action_id", a.ID, "kind", a.Kind, "local_id", localID)
	if _, err := p.queue.RemoveByID(ctx, a.ID); err != nil {
		return err
	}
	p.report.Dropped++
	return nil
}

// createStandalone creates mirror entries that no queued create covers.
// Entries the store already confirmed are only cleaned up.
func (p *pass) createStandalone(ctx context.Context) error {
	actions, err := p.queue.Drain(ctx)
	if err != nil {
		return err
	}
	locals, err := p.mirror.List(ctx)
	if err != nil {
		return err
	}
	covered := coveredLocalIDs(actions)

	for _, l := range locals {
		if _, ok := covered[l.ID]; ok {
			continue
		}
		if serverID, ok := p.confirmed[l.ID]; ok {
			loc := l
			loc.ID = serverID
			p.confirm(ctx, l.ID, loc)
			continue
		}
		loc, err := p.remote.CreateLocation(ctx, inputOf(l))
		if err != nil {
			p.report.fail(err)
			p.log.Warn(ctx, "standalone create failed, entry kept", "local_id", l.ID, "err", err)
			if errors.Is(err, common.ErrUnauthorized) {
				return err
			}
			continue
		}
		p.remember(ctx, l.ID, loc.ID)
		p.report.Created++
		p.confirm(ctx, l.ID, loc)
	}
	return nil
}

// remember records a create the store just accepted. The mapping is
// written before anything else so a later pass never creates the record
// twice.
func (p *pass) remember(ctx context.Context, localID, serverID string) {
	p.confirmed[localID] = serverID
	if err := p.ids.Put(ctx, localID, serverID); err != nil {
		p.log.Error(ctx, "failed to persist confirmed id", "local_id", localID, "location_id", serverID, "err", err)
	}
}

// confirm finishes a create the store accepted: the mirror entry goes away,
// later actions follow the server id and the record joins the cache.
// Failures leave the id mapping in place for the next pass.
func (p *pass) confirm(ctx context.Context, localID string, loc shared.Location) {
	if _, err := p.mirror.Delete(ctx, localID); err != nil {
		p.log.Error(ctx, "failed to drop confirmed mirror entry", "local_id", localID, "err", err)
	}
	if err := p.queue.Retarget(ctx, localID, loc.ID); err != nil {
		p.log.Error(ctx, "failed to retarget queued actions", "local_id", localID, "location_id", loc.ID, "err", err)
	}
	if err := p.cache.Upsert(ctx, loc); err != nil {
		p.log.Warn(ctx, "cache update failed", "location_id", loc.ID, "err", err)
	}
	p.log.Info(ctx, "record confirmed", "local_id", localID, "location_id", loc.ID)
}

// resolve maps a target id to the id the store knows. Local ids whose
// create has not been confirmed do not resolve.
func (p *pass) resolve(id string) (string, bool) {
	if !models.IsLocalID(id) {
		return id, true
	}
	serverID, ok := p.confirmed[id]
	return serverID, ok
}

func (p *pass) forget(ctx context.Context, id string) {
	if err := p.cache.Remove(ctx, id); err != nil {
		p.log.Warn(ctx, "cache update failed", "location_id", id, "err", err)
	}
}
