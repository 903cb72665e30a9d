package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/client/reconcile"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/cache"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/queue"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

// LocationService is the single entry point for record reads and writes.
//
// Writes go to the record store while it is reachable. When it is not, or a
// call fails transiently, the write is queued for reconciliation instead;
// creates also land in the local mirror under a local id. Only validation,
// authorization and not-found errors reach the caller.
//
// List never fails because the store is unreachable: it falls back to the
// last fetched records plus mirrored ones, with queued edits applied.
type LocationService interface {
	List(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error)
	Create(ctx context.Context, in shared.LocationInput) (shared.Location, error)
	Update(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error)
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context) (reconcile.Report, error)
	Status(ctx context.Context) (SyncStatus, error)
}

// LocationRemote is the part of the record store API the façade uses.
type LocationRemote interface {
	ListLocations(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error)
	CreateLocation(ctx context.Context, in shared.LocationInput) (shared.Location, error)
	UpdateLocation(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

type Connectivity interface {
	Online() bool
}

// CurrentUserSource supplies the signed-in user for record attribution.
type CurrentUserSource interface {
	User(ctx context.Context) (*shared.User, error)
}

type SyncStatus struct {
	Online        bool
	Running       bool
	QueuedActions int
	LocalRecords  int
	Last          reconcile.Report
}

type locationService struct {
	remote LocationRemote
	conn   Connectivity
	queue  *queue.Queue
	mirror *mirror.Mirror
	cache  *cache.Cache
	engine *reconcile.Engine
	users  CurrentUserSource
	log    logging.Logger
	now    func() time.Time
}

func NewLocationService(
	remote LocationRemote,
	conn Connectivity,
	q *queue.Queue,
	m *mirror.Mirror,
	c *cache.Cache,
	engine *reconcile.Engine,
	users CurrentUserSource,
	log logging.Logger,
) LocationService {
	return &locationService{
		remote: remote,
		conn:   conn,
		queue:  q,
		mirror: m,
		cache:  c,
		engine: engine,
		users:  users,
		log:    log,
		now:    time.Now,
	}
}

// fallback reports whether a failed remote write should be queued instead.
func fallback(err error) bool {
	return errors.Is(err, common.ErrUnavailable)
}

func (s *locationService) Create(ctx context.Context, in shared.LocationInput) (shared.Location, error) {
	if err := in.Validate(); err != nil {
		return shared.Location{}, err
	}

	if s.conn.Online() {
		loc, err := s.remote.CreateLocation(ctx, in)
		if err == nil {
			if err := s.cache.Upsert(ctx, loc); err != nil {
				s.log.Warn(ctx, "cache update failed", "location_id", loc.ID, "err", err)
			}
			return loc, nil
		}
		if !fallback(err) {
			return shared.Location{}, err
		}
		s.log.Info(ctx, "create failed remotely, queueing", "err", err)
	}

	return s.createOffline(ctx, in)
}

func (s *locationService) createOffline(ctx context.Context, in shared.LocationInput) (shared.Location, error) {
	now := s.now().UTC()
	loc := in.Location()
	loc.ID = models.NewLocalID()
	loc.CreatedAt = now
	loc.UpdatedAt = now
	loc.CreatedBy = s.currentUserID(ctx)

	if err := s.mirror.Save(ctx, loc); err != nil {
		return shared.Location{}, err
	}
	if err := s.enqueue(ctx, models.CreateLocation{LocalID: loc.ID, Input: in}); err != nil {
		if _, derr := s.mirror.Delete(ctx, loc.ID); derr != nil {
			s.log.Error(ctx, "failed to roll back mirror entry", "local_id", loc.ID, "err", derr)
		}
		return shared.Location{}, err
	}
	return loc, nil
}

func (s *locationService) Update(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	if err := patch.Validate(); err != nil {
		return shared.Location{}, err
	}

	if models.IsLocalID(id) {
		return s.updateLocal(ctx, id, patch)
	}

	if s.conn.Online() {
		loc, err := s.remote.UpdateLocation(ctx, id, patch)
		switch {
		case err == nil:
			if err := s.cache.Upsert(ctx, loc); err != nil {
				s.log.Warn(ctx, "cache update failed", "location_id", id, "err", err)
			}
			return loc, nil
		case errors.Is(err, common.ErrNotFound):
			s.forget(ctx, id)
			return shared.Location{}, err
		case !fallback(err):
			return shared.Location{}, err
		}
		s.log.Info(ctx, "update failed remotely, queueing", "location_id", id, "err", err)
	}

	return s.updateOffline(ctx, id, patch)
}

// updateLocal edits a record that exists only on the device. The store
// cannot know its id yet, so the edit is always queued.
func (s *locationService) updateLocal(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	if _, err := s.mirror.Get(ctx, id); err != nil {
		return shared.Location{}, err
	}
	if err := s.enqueue(ctx, models.UpdateLocation{ID: id, Patch: patch}); err != nil {
		return shared.Location{}, err
	}
	if _, err := s.mirror.Update(ctx, id, patch); err != nil {
		return shared.Location{}, err
	}
	return s.mirror.Get(ctx, id)
}

func (s *locationService) updateOffline(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	if err := s.ensureKnown(ctx, id); err != nil {
		return shared.Location{}, err
	}
	if err := s.enqueue(ctx, models.UpdateLocation{ID: id, Patch: patch}); err != nil {
		return shared.Location{}, err
	}
	if err := s.cache.Patch(ctx, id, patch); err != nil {
		s.log.Warn(ctx, "cache update failed", "location_id", id, "err", err)
	}

	loc := shared.Location{ID: id}
	if cached, _, err := s.cache.List(ctx); err == nil {
		for _, c := range cached {
			if c.ID == id {
				loc = c
				break
			}
		}
	}
	patch.Apply(&loc)
	return loc, nil
}

func (s *locationService) Delete(ctx context.Context, id string) error {
	if models.IsLocalID(id) {
		return s.deleteLocal(ctx, id)
	}

	if s.conn.Online() {
		err := s.remote.DeleteLocation(ctx, id)
		switch {
		case err == nil:
			s.forget(ctx, id)
			return nil
		case errors.Is(err, common.ErrNotFound):
			s.forget(ctx, id)
			return err
		case !fallback(err):
			return err
		}
		s.log.Info(ctx, "delete failed remotely, queueing", "location_id", id, "err", err)
	}

	return s.deleteOffline(ctx, id)
}

// deleteLocal cancels a record the store never saw: its queued create and
// edits are dropped together with the mirror entry, and nothing is queued.
func (s *locationService) deleteLocal(ctx context.Context, id string) error {
	if _, err := s.mirror.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.queue.RemoveTargeting(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.mirror.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Debug(ctx, "local record discarded", "local_id", id, "cancelled_actions", n)
	return nil
}

func (s *locationService) deleteOffline(ctx context.Context, id string) error {
	if err := s.ensureKnown(ctx, id); err != nil {
		return err
	}
	if _, err := s.queue.RemoveTargeting(ctx, id); err != nil {
		return err
	}
	if err := s.enqueue(ctx, models.DeleteLocation{ID: id}); err != nil {
		return err
	}
	s.forget(ctx, id)
	return nil
}

func (s *locationService) List(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error) {
	var (
		remote  []shared.Location
		listErr error
		fresh   bool
	)

	if s.conn.Online() {
		locs, err := s.remote.ListLocations(ctx, f)
		switch {
		case err == nil:
			remote, fresh = locs, true
			if err := s.cache.Store(ctx, f, locs); err != nil {
				s.log.Warn(ctx, "cache refresh failed", "err", err)
			}
		case errors.Is(err, common.ErrUnauthorized):
			listErr = err
		default:
			s.log.Info(ctx, "list failed remotely, serving cached records", "err", err)
		}
	}

	if !fresh {
		cached, _, err := s.cache.List(ctx)
		if err != nil {
			s.log.Warn(ctx, "cached records unavailable", "err", err)
		}
		remote = cached
	}

	actions, err := s.queue.Drain(ctx)
	if err != nil {
		s.log.Warn(ctx, "pending actions unavailable", "err", err)
	}
	locals, err := s.mirror.List(ctx)
	if err != nil {
		s.log.Warn(ctx, "local records unavailable", "err", err)
	}

	out := overlay(remote, actions)
	out = append(out, locals...)
	return shared.FilterLocations(out, f), listErr
}

// overlay applies queued edits of server records to locs.
func overlay(locs []shared.Location, actions []models.PendingAction) []shared.Location {
	out := make([]shared.Location, 0, len(locs))
	index := make(map[string]int, len(locs))
	for _, l := range locs {
		index[l.ID] = len(out)
		out = append(out, l)
	}

	deleted := make(map[string]struct{})
	for _, a := range actions {
		action, err := a.Unwrap()
		if err != nil {
			continue
		}
		switch v := action.(type) {
		case models.UpdateLocation:
			if i, ok := index[v.ID]; ok {
				v.Patch.Apply(&out[i])
			}
		case models.DeleteLocation:
			deleted[v.ID] = struct{}{}
		}
	}
	if len(deleted) == 0 {
		return out
	}

	kept := out[:0]
	for _, l := range out {
		if _, gone := deleted[l.ID]; !gone {
			kept = append(kept, l)
		}
	}
	return kept
}

func (s *locationService) Sync(ctx context.Context) (reconcile.Report, error) {
	return s.engine.Run(ctx)
}

func (s *locationService) Status(ctx context.Context) (SyncStatus, error) {
	queued, err := s.queue.Len(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	local, err := s.mirror.Len(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	return SyncStatus{
		Online:        s.conn.Online(),
		Running:       s.engine.Running(),
		QueuedActions: queued,
		LocalRecords:  local,
		Last:          s.engine.LastReport(),
	}, nil
}

func (s *locationService) enqueue(ctx context.Context, a models.Action) error {
	p, err := models.Wrap(a, s.now())
	if err != nil {
		return fmt.Errorf("wrap %s: %w", a.Kind(), err)
	}
	return s.queue.Enqueue(ctx, p)
}

// ensureKnown rejects ids absent from a previously fetched listing. With
// nothing fetched yet any id is accepted.
func (s *locationService) ensureKnown(ctx context.Context, id string) error {
	found, known, err := s.cache.Has(ctx, id)
	if err != nil {
		s.log.Warn(ctx, "cache lookup failed", "location_id", id, "err", err)
		return nil
	}
	if known && !found {
		return fmt.Errorf("%w: location %s", common.ErrNotFound, id)
	}
	return nil
}

func (s *locationService) forget(ctx context.Context, id string) {
	if err := s.cache.Remove(ctx, id); err != nil {
		s.log.Warn(ctx, "cache update failed", "location_id", id, "err", err)
	}
}

func (s *locationService) currentUserID(ctx context.Context) string {
	if s.users == nil {
		return ""
	}
	u, err := s.users.User(ctx)
	if err != nil || u == nil {
		return ""
	}
	return u.ID
}
