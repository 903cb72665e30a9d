package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/cache"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/idmap"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/kv"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/queue"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ online atomic.Bool }

func (f *fakeConn) Check(context.Context) bool { return f.online.Load() }
func (f *fakeConn) Online() bool               { return f.online.Load() }

// fakeRemote records calls and assigns sequential server ids from 42.
type fakeRemote struct {
	mu     sync.Mutex
	calls  []string
	nextID int

	onCreate func(in shared.LocationInput) error
	onUpdate func(id string) error
	onDelete func(id string) error
}

func newFakeRemote() *fakeRemote { return &fakeRemote{nextID: 42} }

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) CreateLocation(_ context.Context, in shared.LocationInput) (shared.Location, error) {
	f.record("create " + in.Title)
	if f.onCreate != nil {
		if err := f.onCreate(in); err != nil {
			return shared.Location{}, err
		}
	}
	f.mu.Lock()
	id := strconv.Itoa(f.nextID)
	f.nextID++
	f.mu.Unlock()
	loc := in.Location()
	loc.ID = id
	return loc, nil
}

func (f *fakeRemote) UpdateLocation(_ context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	f.record("update " + id)
	if f.onUpdate != nil {
		if err := f.onUpdate(id); err != nil {
			return shared.Location{}, err
		}
	}
	loc := shared.Location{ID: id}
	patch.Apply(&loc)
	return loc, nil
}

func (f *fakeRemote) DeleteLocation(_ context.Context, id string) error {
	f.record("delete " + id)
	if f.onDelete != nil {
		return f.onDelete(id)
	}
	return nil
}

// flakyStore fails writes to one key once a budget of successful writes to
// it is spent.
type flakyStore struct {
	*kv.MemoryStore

	mu     sync.Mutex
	key    string
	budget int
}

func (s *flakyStore) failWrites(key string, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key, s.budget = key, after
}

func (s *flakyStore) heal() {
	s.failWrites("", 0)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	if s.key != "" && key == s.key {
		if s.budget == 0 {
			s.mu.Unlock()
			return errors.New("disk full")
		}
		s.budget--
	}
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, value)
}

type fixture struct {
	store  *flakyStore
	queue  *queue.Queue
	mirror *mirror.Mirror
	cache  *cache.Cache
	ids    *idmap.Map
	remote *fakeRemote
	conn   *fakeConn
	engine *Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := &flakyStore{MemoryStore: kv.NewMemoryStore()}
	log := logging.Discard()
	f := &fixture{
		store:  store,
		queue:  queue.New(store, log),
		mirror: mirror.New(store, log),
		cache:  cache.New(store, log),
		ids:    idmap.New(store, log),
		remote: newFakeRemote(),
		conn:   &fakeConn{},
	}
	f.conn.online.Store(true)
	f.engine = New(f.remote, f.conn, f.queue, f.mirror, f.cache, f.ids, log, opts)
	t.Cleanup(f.engine.Stop)
	return f
}

func (f *fixture) enqueue(t *testing.T, a models.Action) models.PendingAction {
	t.Helper()
	p, err := models.Wrap(a, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.queue.Enqueue(context.Background(), p))
	return p
}

// createOffline mimics the offline create path: mirror entry plus queued create.
func (f *fixture) createOffline(t *testing.T, title string) string {
	t.Helper()
	id := models.NewLocalID()
	in := shared.LocationInput{Title: title, Type: shared.LocationWetland, Latitude: 45, Longitude: 16}
	loc := in.Location()
	loc.ID = id
	require.NoError(t, f.mirror.Save(context.Background(), loc))
	f.enqueue(t, models.CreateLocation{LocalID: id, Input: in})
	return id
}

func (f *fixture) queued(t *testing.T) []models.PendingAction {
	t.Helper()
	actions, err := f.queue.Drain(context.Background())
	require.NoError(t, err)
	return actions
}

func (f *fixture) mirrored(t *testing.T) []shared.Location {
	t.Helper()
	locs, err := f.mirror.List(context.Background())
	require.NoError(t, err)
	return locs
}

func TestRun_OfflineAbortsSilently(t *testing.T) {
	f := newFixture(t, Options{})
	f.createOffline(t, "Pond")
	f.conn.online.Store(false)

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, r.Status)
	assert.Empty(t, f.remote.Calls())
	assert.Len(t, f.queued(t), 1)
}

func TestRun_Idle(t *testing.T) {
	f := newFixture(t, Options{})
	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, r.Status)
	assert.Empty(t, f.remote.Calls())
}

func TestRun_ReplaysInOrderAndRetargets(t *testing.T) {
	f := newFixture(t, Options{})
	title := "Renamed"

	local := f.createOffline(t, "Pond")
	f.enqueue(t, models.UpdateLocation{ID: local, Patch: shared.LocationPatch{Title: &title}})
	f.enqueue(t, models.DeleteLocation{ID: "7"})

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"create Pond", "update 42", "delete 7"}, f.remote.Calls())
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, 3, r.Replayed)
	assert.Equal(t, 1, r.Created)
	assert.Zero(t, r.Remaining)
	assert.Empty(t, f.queued(t))
	assert.Empty(t, f.mirrored(t))

	cached, _, err := f.cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "42", cached[0].ID)
	assert.Equal(t, "Renamed", cached[0].Title)
}

func TestRun_EndToEndLocalIDBecomesServerID(t *testing.T) {
	f := newFixture(t, Options{})
	local := f.createOffline(t, "Depot A")
	require.True(t, models.IsLocalID(local))

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	found, _, err := f.cache.Has(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, f.queued(t))
	assert.Empty(t, f.mirrored(t))
}

func TestRun_PartialFailureKeepsTail(t *testing.T) {
	f := newFixture(t, Options{})
	var down atomic.Bool
	f.remote.onDelete = func(id string) error {
		if id == "3" {
			down.Store(true)
		}
		if down.Load() {
			return fmt.Errorf("%w: 503", common.ErrUnavailable)
		}
		return nil
	}

	var all []models.PendingAction
	for i := 1; i <= 5; i++ {
		all = append(all, f.enqueue(t, models.DeleteLocation{ID: strconv.Itoa(i)}))
	}

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, r.Status)
	assert.Equal(t, 2, r.Replayed)
	assert.Equal(t, 3, r.Failed)
	assert.Equal(t, 3, r.Remaining)

	left := f.queued(t)
	require.Len(t, left, 3)
	for i, a := range left {
		assert.Equal(t, all[i+2].ID, a.ID)
		assert.Equal(t, 1, a.Attempts)
		assert.NotEmpty(t, a.LastError)
	}

	down.Store(false)
	f.remote.onDelete = nil
	r, err = f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Empty(t, f.queued(t))
}

func TestRun_AllFailIsFailed(t *testing.T) {
	f := newFixture(t, Options{})
	f.remote.onCreate = func(shared.LocationInput) error { return common.ErrUnavailable }
	f.createOffline(t, "Pond")

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Len(t, f.queued(t), 1)
	assert.Len(t, f.mirrored(t), 1)
}

func TestRun_SingleFlight(t *testing.T) {
	f := newFixture(t, Options{})
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.remote.onDelete = func(id string) error {
		if id == "1" {
			entered <- struct{}{}
			<-release
		}
		return nil
	}
	for i := 1; i <= 3; i++ {
		f.enqueue(t, models.DeleteLocation{ID: strconv.Itoa(i)})
	}

	done := make(chan Report)
	go func() {
		r, _ := f.engine.Run(context.Background())
		done <- r
	}()
	<-entered
	assert.True(t, f.engine.Running())

	r, err := f.engine.Run(context.Background())
	assert.ErrorIs(t, err, common.ErrSyncInProgress)
	assert.Equal(t, StatusSkipped, r.Status)

	close(release)
	first := <-done
	assert.Equal(t, StatusSucceeded, first.Status)
	assert.Len(t, f.remote.Calls(), 3)
	assert.False(t, f.engine.Running())
}

func TestRun_TriggerTwiceRunsOnePass(t *testing.T) {
	f := newFixture(t, Options{})
	release := make(chan struct{})
	f.remote.onDelete = func(string) error {
		<-release
		return nil
	}
	f.enqueue(t, models.DeleteLocation{ID: "1"})
	f.enqueue(t, models.DeleteLocation{ID: "2"})

	ctx := context.Background()
	f.engine.Trigger(ctx)
	require.Eventually(t, f.engine.Running, time.Second, time.Millisecond)
	f.engine.Trigger(ctx)
	close(release)
	f.engine.Wait()

	assert.Equal(t, []string{"delete 1", "delete 2"}, f.remote.Calls())
}

func TestRun_DeleteNotFoundIsConfirmed(t *testing.T) {
	f := newFixture(t, Options{})
	f.remote.onDelete = func(string) error { return common.ErrNotFound }
	f.enqueue(t, models.DeleteLocation{ID: "9"})

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, 1, r.Replayed)
	assert.Empty(t, f.queued(t))
}

func TestRun_UpdateNotFoundIsDropped(t *testing.T) {
	f := newFixture(t, Options{})
	f.remote.onUpdate = func(string) error { return common.ErrNotFound }
	require.NoError(t, f.cache.Upsert(context.Background(), shared.Location{ID: "9"}))
	title := "x"
	f.enqueue(t, models.UpdateLocation{ID: "9", Patch: shared.LocationPatch{Title: &title}})

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, 1, r.Dropped)
	assert.Empty(t, f.queued(t))

	found, _, err := f.cache.Has(context.Background(), "9")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRun_UndecodableActionStaysQueued(t *testing.T) {
	f := newFixture(t, Options{})
	bad := models.PendingAction{ID: "bad", Kind: "ARCHIVE_LOCATION", QueuedAt: time.Now(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, f.queue.Enqueue(context.Background(), bad))
	f.enqueue(t, models.DeleteLocation{ID: "1"})

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, r.Status)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Replayed)

	left := f.queued(t)
	require.Len(t, left, 1)
	assert.Equal(t, "bad", left[0].ID)
}

func TestRun_CreateCancelledDuringCallDeletesRemote(t *testing.T) {
	f := newFixture(t, Options{})
	var local string
	f.remote.onCreate = func(shared.LocationInput) error {
		// the user deletes the record while the create is in flight
		_, err := f.queue.RemoveTargeting(context.Background(), local)
		require.NoError(t, err)
		_, err = f.mirror.Delete(context.Background(), local)
		require.NoError(t, err)
		return nil
	}
	local = f.createOffline(t, "Pond")

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"create Pond", "delete 42"}, f.remote.Calls())
	assert.Equal(t, 1, r.Dropped)
	assert.Zero(t, r.Created)
	assert.Empty(t, f.queued(t))
	assert.Empty(t, f.mirrored(t))
}

func TestRun_StandaloneMirrorEntriesAfterQueue(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	orphan := shared.Location{ID: models.NewLocalID(), Title: "Orphan", Type: shared.LocationDepot}
	require.NoError(t, f.mirror.Save(ctx, orphan))
	f.enqueue(t, models.DeleteLocation{ID: "5"})

	r, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"delete 5", "create Orphan"}, f.remote.Calls())
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, 1, r.Created)
	assert.Empty(t, f.mirrored(t))
}

func TestRun_UpdateOfUnconfirmedLocalIsDeferred(t *testing.T) {
	f := newFixture(t, Options{})
	f.remote.onCreate = func(shared.LocationInput) error { return common.ErrUnavailable }
	local := f.createOffline(t, "Pond")
	title := "x"
	upd := f.enqueue(t, models.UpdateLocation{ID: local, Patch: shared.LocationPatch{Title: &title}})

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"create Pond"}, f.remote.Calls())
	assert.Equal(t, 1, r.Deferred)
	assert.Equal(t, 2, r.Remaining)

	left := f.queued(t)
	require.Len(t, left, 2)
	assert.Equal(t, upd.ID, left[1].ID)
	assert.Equal(t, local, left[1].Target())
}

func TestRun_RetargetPersistsForLaterPass(t *testing.T) {
	f := newFixture(t, Options{})
	var updates atomic.Int32
	f.remote.onUpdate = func(string) error {
		if updates.Add(1) == 1 {
			return common.ErrUnavailable
		}
		return nil
	}
	local := f.createOffline(t, "Pond")
	title := "x"
	f.enqueue(t, models.UpdateLocation{ID: local, Patch: shared.LocationPatch{Title: &title}})

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	left := f.queued(t)
	require.Len(t, left, 1)
	assert.Equal(t, "42", left[0].Target())

	_, err = f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"create Pond", "update 42", "update 42"}, f.remote.Calls())
	assert.Empty(t, f.queued(t))
}

func TestRun_MirrorCleanupFailureDoesNotCreateTwice(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	local := f.createOffline(t, "Pond")
	f.store.failWrites(kv.KeyLocalLocations, 0)

	r, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, r.Status)
	assert.Equal(t, 1, r.Created)
	assert.Equal(t, 1, r.Remaining)
	assert.Empty(t, f.queued(t))
	assert.Len(t, f.mirrored(t), 1)

	ids, err := f.ids.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", ids[local])

	f.store.heal()
	r, err = f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Zero(t, r.Created)
	assert.Equal(t, []string{"create Pond"}, f.remote.Calls())
	assert.Empty(t, f.mirrored(t))

	found, _, err := f.cache.Has(ctx, "42")
	require.NoError(t, err)
	assert.True(t, found)

	ids, err = f.ids.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRun_QueuedCreateAlreadyConfirmedIsNotResent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	local := f.createOffline(t, "Pond")
	// the create went through but removing it from the queue failed
	f.store.failWrites(kv.KeyPendingActions, 0)

	r, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Failed)
	require.Len(t, f.queued(t), 1)

	f.store.heal()
	r, err = f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, 1, r.Replayed)
	assert.Equal(t, []string{"create Pond"}, f.remote.Calls())
	assert.Empty(t, f.queued(t))
	assert.Empty(t, f.mirrored(t))

	found, _, err := f.cache.Has(ctx, "42")
	require.NoError(t, err)
	assert.True(t, found, "cached under the server id of %s", local)
}

func TestRun_FailedRetargetStillResolvesLater(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	local := f.createOffline(t, "Pond")
	title := "x"
	f.enqueue(t, models.UpdateLocation{ID: local, Patch: shared.LocationPatch{Title: &title}})
	// removing the create is the last queue write that succeeds
	f.store.failWrites(kv.KeyPendingActions, 1)

	r, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, r.Status)
	assert.Equal(t, 1, r.Remaining)
	left := f.queued(t)
	require.Len(t, left, 1)
	assert.Equal(t, local, left[0].Target())

	f.store.heal()
	r, err = f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Zero(t, r.Deferred)
	assert.Zero(t, r.Remaining)
	assert.Equal(t, []string{"create Pond", "update 42", "update 42"}, f.remote.Calls())
	assert.Empty(t, f.queued(t))
}

func TestRun_LocalTargetQueuedAfterConfirmResolves(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	local := f.createOffline(t, "Pond")
	f.enqueue(t, models.DeleteLocation{ID: "7"})
	title := "x"
	f.remote.onDelete = func(id string) error {
		if id == "7" {
			// queued by the device after the create was retargeted
			f.enqueue(t, models.UpdateLocation{ID: local, Patch: shared.LocationPatch{Title: &title}})
		}
		return nil
	}

	r, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Remaining)

	r, err = f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, []string{"create Pond", "delete 7", "update 42"}, f.remote.Calls())
	assert.Empty(t, f.queued(t))
}

func TestRun_OrphanedLocalTargetIsDropped(t *testing.T) {
	f := newFixture(t, Options{})
	title := "x"
	f.enqueue(t, models.UpdateLocation{ID: models.NewLocalID(), Patch: shared.LocationPatch{Title: &title}})
	f.enqueue(t, models.DeleteLocation{ID: models.NewLocalID()})

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, 2, r.Dropped)
	assert.Zero(t, r.Deferred)
	assert.Empty(t, f.remote.Calls())
	assert.Empty(t, f.queued(t))
}

func TestRun_UnauthorizedStopsPass(t *testing.T) {
	f := newFixture(t, Options{RetryAttempts: 3, RetryBaseDelay: time.Hour})
	f.remote.onDelete = func(string) error { return common.ErrUnauthorized }
	f.enqueue(t, models.DeleteLocation{ID: "1"})
	f.enqueue(t, models.DeleteLocation{ID: "2"})

	r, err := f.engine.Run(context.Background())
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, []string{"delete 1"}, f.remote.Calls())
	assert.Len(t, f.queued(t), 2)

	f.engine.mu.Lock()
	assert.Zero(t, f.engine.retries, "no retry is scheduled")
	f.engine.mu.Unlock()
}

func TestRun_StoreFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.enqueue(t, models.DeleteLocation{ID: "1"})
	f.store.Fail(fmt.Errorf("locked"))

	r, err := f.engine.Run(context.Background())
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Empty(t, f.remote.Calls())
}

type recordingNotifier struct {
	mu       sync.Mutex
	started  int
	finished []Report
}

func (n *recordingNotifier) SyncStarted(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started++
}

func (n *recordingNotifier) SyncFinished(_ context.Context, r Report) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, r)
}

func TestRun_Notifier(t *testing.T) {
	f := newFixture(t, Options{})
	n := &recordingNotifier{}
	f.engine.SetNotifier(n)

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n.started, "idle passes are not announced")

	f.createOffline(t, "Pond")
	_, err = f.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n.started)
	require.Len(t, n.finished, 1)
	assert.Equal(t, StatusSucceeded, n.finished[0].Status)
	assert.Equal(t, n.finished[0], f.engine.LastReport())
}

func TestAutomaticRetryAfterPartialFailure(t *testing.T) {
	f := newFixture(t, Options{RetryBaseDelay: 5 * time.Millisecond, RetryMaxDelay: 20 * time.Millisecond, RetryAttempts: 3})
	var fails atomic.Int32
	fails.Store(2)
	f.remote.onDelete = func(string) error {
		if fails.Add(-1) >= 0 {
			return common.ErrUnavailable
		}
		return nil
	}
	f.enqueue(t, models.DeleteLocation{ID: "1"})

	r, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)

	require.Eventually(t, func() bool {
		actions, err := f.queue.Drain(context.Background())
		return err == nil && len(actions) == 0
	}, 2*time.Second, 5*time.Millisecond)
	f.engine.Wait()

	assert.Len(t, f.remote.Calls(), 3)
	f.engine.mu.Lock()
	assert.Zero(t, f.engine.retries, "success resets the retry counter")
	f.engine.mu.Unlock()
}

func TestAutomaticRetryGivesUp(t *testing.T) {
	f := newFixture(t, Options{RetryBaseDelay: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond, RetryAttempts: 2})
	f.remote.onDelete = func(string) error { return common.ErrUnavailable }
	f.enqueue(t, models.DeleteLocation{ID: "1"})

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(f.remote.Calls()) == 3 }, 2*time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	f.engine.Wait()
	assert.Len(t, f.remote.Calls(), 3, "one pass plus two retries")
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 5*time.Minute, 0))
	assert.Equal(t, 2*time.Second, backoff(time.Second, 5*time.Minute, 1))
	assert.Equal(t, 4*time.Second, backoff(time.Second, 5*time.Minute, 2))
	assert.Equal(t, 5*time.Minute, backoff(time.Second, 5*time.Minute, 20))
	assert.Equal(t, time.Duration(0), backoff(0, time.Minute, 3))
}

func TestStart_PeriodicPassWhenPending(t *testing.T) {
	f := newFixture(t, Options{})
	f.enqueue(t, models.DeleteLocation{ID: "1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.engine.Start(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		n, err := f.queue.Len(context.Background())
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	f.engine.Wait()
	assert.Equal(t, []string{"delete 1"}, f.remote.Calls())
}

func TestStart_NoPassWhileOffline(t *testing.T) {
	f := newFixture(t, Options{})
	f.conn.online.Store(false)
	f.enqueue(t, models.DeleteLocation{ID: "1"})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	f.engine.Start(ctx, 5*time.Millisecond)
	f.engine.Wait()

	assert.Empty(t, f.remote.Calls())
}
