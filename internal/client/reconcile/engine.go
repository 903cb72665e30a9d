// Package reconcile replays the device's pending work against the record
// store once connectivity returns.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

// Remote is the part of the record store the engine writes to.
type Remote interface {
	CreateLocation(ctx context.Context, in shared.LocationInput) (shared.Location, error)
	UpdateLocation(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

type Connectivity interface {
	Check(ctx context.Context) bool
	Online() bool
}

type Queue interface {
	Drain(ctx context.Context) ([]models.PendingAction, error)
	RemoveByID(ctx context.Context, id string) (bool, error)
	Retarget(ctx context.Context, from, to string) error
	MarkFailed(ctx context.Context, id string, cause error) error
}

type Mirror interface {
	List(ctx context.Context) ([]shared.Location, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// IDMap persists the server id assigned to each confirmed local record
// until nothing on the device refers to the local id any more.
type IDMap interface {
	Load(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, localID, serverID string) error
	Prune(ctx context.Context, live map[string]struct{}) (int, error)
}

type Cache interface {
	Upsert(ctx context.Context, loc shared.Location) error
	Remove(ctx context.Context, id string) error
}

// Notifier is told when passes start and finish.
type Notifier interface {
	SyncStarted(ctx context.Context)
	SyncFinished(ctx context.Context, r Report)
}

// Options control automatic retries after a pass that left work pending.
// Zero RetryAttempts disables them.
type Options struct {
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryAttempts  int
}

// Engine runs reconciliation passes. At most one pass runs at a time.
type Engine struct {
	remote   Remote
	conn     Connectivity
	queue    Queue
	mirror   Mirror
	cache    Cache
	ids      IDMap
	notifier Notifier
	log      logging.Logger
	opts     Options
	now      func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup

	mu         sync.Mutex
	retries    int
	retryTimer *time.Timer
	last       Report
}

func New(remote Remote, conn Connectivity, q Queue, m Mirror, c Cache, ids IDMap, log logging.Logger, opts Options) *Engine {
	return &Engine{
		remote: remote,
		conn:   conn,
		queue:  q,
		mirror: m,
		cache:  c,
		ids:    ids,
		log:    log,
		opts:   opts,
		now:    time.Now,
		last:   Report{Status: StatusIdle},
	}
}

// SetNotifier installs n; pass nil to remove it.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// Running reports whether a pass is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastReport returns the report of the most recent completed pass.
func (e *Engine) LastReport() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Trigger starts a pass in the background. The pass is not tied to ctx's
// cancellation.
func (e *Engine) Trigger(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := e.Run(ctx); err != nil && !errors.Is(err, common.ErrSyncInProgress) {
			e.log.Warn(ctx, "background sync failed", "err", err)
		}
	}()
}

// Wait blocks until every pass started by Trigger has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Run performs one pass. It returns common.ErrSyncInProgress with a
// StatusSkipped report if another pass is running, and a StatusOffline
// report without error if the store is unreachable.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Report{Status: StatusSkipped}, common.ErrSyncInProgress
	}
	defer e.running.Store(false)

	report := Report{StartedAt: e.now()}
	finish := func(err error) (Report, error) {
		report.FinishedAt = e.now()
		e.mu.Lock()
		e.last = report
		e.mu.Unlock()
		return report, err
	}

	if !e.conn.Check(ctx) {
		report.Status = StatusOffline
		e.log.Debug(ctx, "sync skipped, store unreachable")
		return finish(nil)
	}

	actions, err := e.queue.Drain(ctx)
	if err != nil {
		report.Status = StatusFailed
		report.Errors = append(report.Errors, err.Error())
		return finish(err)
	}
	locals, err := e.mirror.List(ctx)
	if err != nil {
		report.Status = StatusFailed
		report.Errors = append(report.Errors, err.Error())
		return finish(err)
	}
	if len(actions) == 0 && len(locals) == 0 {
		report.Status = StatusIdle
		e.resetRetries()
		return finish(nil)
	}
	confirmed, err := e.ids.Load(ctx)
	if err != nil {
		report.Status = StatusFailed
		report.Errors = append(report.Errors, err.Error())
		return finish(err)
	}

	notifier := e.currentNotifier()
	if notifier != nil {
		notifier.SyncStarted(ctx)
	}
	e.log.Info(ctx, "sync started", "queued", len(actions), "mirrored", len(locals))

	p := &pass{Engine: e, report: &report, confirmed: confirmed, awaiting: awaitingLocalIDs(actions, locals)}
	runErr := p.replay(ctx, actions)
	if runErr == nil {
		runErr = p.createStandalone(ctx)
	}

	if queued, standalone, err := e.pending(ctx); err == nil {
		report.Remaining = queued + standalone
	} else {
		report.Errors = append(report.Errors, err.Error())
	}
	e.pruneIDs(ctx)
	report.settle()

	e.log.Info(ctx, "sync finished",
		"status", report.Status,
		"replayed", report.Replayed,
		"created", report.Created,
		"dropped", report.Dropped,
		"failed", report.Failed,
		"remaining", report.Remaining,
	)

	switch {
	case report.Status == StatusSucceeded:
		e.resetRetries()
	case errors.Is(runErr, common.ErrUnauthorized):
		// no automatic retry until the user signs in again
	default:
		e.scheduleRetry(ctx)
	}

	out, err := finish(runErr)
	if notifier != nil {
		notifier.SyncFinished(ctx, out)
	}
	return out, err
}

// Pending returns the number of queued actions and of mirror entries not
// covered by a queued create.
func (e *Engine) pending(ctx context.Context) (queued, standalone int, err error) {
	actions, err := e.queue.Drain(ctx)
	if err != nil {
		return 0, 0, err
	}
	locals, err := e.mirror.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	covered := coveredLocalIDs(actions)
	for _, l := range locals {
		if _, ok := covered[l.ID]; !ok {
			standalone++
		}
	}
	return len(actions), standalone, nil
}

// pruneIDs forgets id mappings that no queued action or mirror entry
// refers to.
func (e *Engine) pruneIDs(ctx context.Context) {
	actions, err := e.queue.Drain(ctx)
	if err != nil {
		return
	}
	locals, err := e.mirror.List(ctx)
	if err != nil {
		return
	}
	n, err := e.ids.Prune(ctx, knownLocalIDs(actions, locals))
	if err != nil {
		e.log.Warn(ctx, "failed to prune confirmed ids", "err", err)
		return
	}
	if n > 0 {
		e.log.Debug(ctx, "confirmed ids pruned", "count", n)
	}
}

func (e *Engine) currentNotifier() Notifier {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notifier
}

func coveredLocalIDs(actions []models.PendingAction) map[string]struct{} {
	covered := make(map[string]struct{})
	for _, a := range actions {
		if a.Kind == models.KindCreateLocation {
			if id := a.Target(); id != "" {
				covered[id] = struct{}{}
			}
		}
	}
	return covered
}

// knownLocalIDs returns every local id a queued action targets or a mirror
// entry carries.
func knownLocalIDs(actions []models.PendingAction, locals []shared.Location) map[string]struct{} {
	known := make(map[string]struct{})
	for _, a := range actions {
		if id := a.Target(); models.IsLocalID(id) {
			known[id] = struct{}{}
		}
	}
	for _, l := range locals {
		known[l.ID] = struct{}{}
	}
	return known
}

// awaitingLocalIDs returns the local ids that still have a queued create or
// a mirror entry.
func awaitingLocalIDs(actions []models.PendingAction, locals []shared.Location) map[string]struct{} {
	awaiting := coveredLocalIDs(actions)
	for _, l := range locals {
		awaiting[l.ID] = struct{}{}
	}
	return awaiting
}

func inputOf(loc shared.Location) shared.LocationInput {
	return shared.LocationInput{
		Title:       loc.Title,
		Description: loc.Description,
		Type:        loc.Type,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		City:        loc.City,
	}
}

func describe(a models.PendingAction, err error) error {
	return fmt.Errorf("%s %s: %w", a.Kind, a.ID, err)
}
