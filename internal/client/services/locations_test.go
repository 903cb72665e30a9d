package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/client/reconcile"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/cache"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/idmap"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/kv"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/queue"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/session"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locationFixture struct {
	server  *fakeServer
	conn    *fakeConn
	queue   *queue.Queue
	mirror  *mirror.Mirror
	cache   *cache.Cache
	session *session.Store
	engine  *reconcile.Engine
	svc     LocationService
}

func newLocationFixture(t *testing.T, online bool) *locationFixture {
	t.Helper()
	store := kv.NewMemoryStore()
	log := logging.Discard()
	f := &locationFixture{
		server:  newFakeServer(),
		conn:    &fakeConn{},
		queue:   queue.New(store, log),
		mirror:  mirror.New(store, log),
		cache:   cache.New(store, log),
		session: session.New(store, log),
	}
	f.conn.online.Store(online)
	f.engine = reconcile.New(f.server, f.conn, f.queue, f.mirror, f.cache, idmap.New(store, log), log, reconcile.Options{})
	t.Cleanup(f.engine.Stop)
	require.NoError(t, f.session.SetUser(context.Background(), f.server.user))
	f.svc = NewLocationService(f.server, f.conn, f.queue, f.mirror, f.cache, f.engine, f.session, log)
	return f
}

func (f *locationFixture) queued(t *testing.T) []models.Action {
	t.Helper()
	pending, err := f.queue.Drain(context.Background())
	require.NoError(t, err)
	out := make([]models.Action, 0, len(pending))
	for _, p := range pending {
		a, err := p.Unwrap()
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func wetland(title string) shared.LocationInput {
	return shared.LocationInput{Title: title, Type: shared.LocationWetland, Latitude: 45.8, Longitude: 15.9, City: "Zagreb"}
}

func ptr[T any](v T) *T { return &v }

func TestLocationService_CreateOnline(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, true)

	loc, err := f.svc.Create(ctx, wetland("Pond"))
	require.NoError(t, err)
	assert.Equal(t, "100", loc.ID)
	assert.Empty(t, f.queued(t))

	found, known, err := f.cache.Has(ctx, "100")
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, known, "upsert alone does not mark a listing as fetched")
}

func TestLocationService_CreateOffline(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, false)

	loc, err := f.svc.Create(ctx, wetland("Pond"))
	require.NoError(t, err)
	assert.True(t, models.IsLocalID(loc.ID))
	assert.Equal(t, "u1", loc.CreatedBy)
	assert.False(t, loc.CreatedAt.IsZero())
	assert.Empty(t, f.server.Calls())

	mirrored, err := f.mirror.Get(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pond", mirrored.Title)

	assert.Equal(t, []models.Action{models.CreateLocation{LocalID: loc.ID, Input: wetland("Pond")}}, f.queued(t))
}

func TestLocationService_CreateFallsBackOnTransientFailure(t *testing.T) {
	f := newLocationFixture(t, true)
	f.server.fail(common.ErrUnavailable)

	loc, err := f.svc.Create(context.Background(), wetland("Pond"))
	require.NoError(t, err)
	assert.True(t, models.IsLocalID(loc.ID))
	assert.Len(t, f.queued(t), 1)
}

func TestLocationService_CreateErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     shared.LocationInput
		serverErr error
		wantErr   error
	}{
		{name: "missing title", input: shared.LocationInput{Type: shared.LocationDepot}, wantErr: common.ErrValidation},
		{name: "bad latitude", input: shared.LocationInput{Title: "x", Type: shared.LocationDepot, Latitude: 91}, wantErr: common.ErrValidation},
		{name: "forbidden", input: wetland("Pond"), serverErr: common.ErrForbidden, wantErr: common.ErrForbidden},
		{name: "unauthorized", input: wetland("Pond"), serverErr: common.ErrUnauthorized, wantErr: common.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLocationFixture(t, true)
			f.server.fail(tt.serverErr)

			_, err := f.svc.Create(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.queued(t))
			n, err := f.mirror.Len(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestLocationService_UpdateLocalRecord(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, false)

	loc, err := f.svc.Create(ctx, wetland("Pond"))
	require.NoError(t, err)

	f.conn.online.Store(true)
	updated, err := f.svc.Update(ctx, loc.ID, shared.LocationPatch{Title: ptr("Big pond")})
	require.NoError(t, err)
	assert.Equal(t, "Big pond", updated.Title)
	assert.Empty(t, f.server.Calls(), "local ids never reach the store directly")

	queued := f.queued(t)
	require.Len(t, queued, 2)
	assert.Equal(t, models.UpdateLocation{ID: loc.ID, Patch: shared.LocationPatch{Title: ptr("Big pond")}}, queued[1])

	_, err = f.svc.Update(ctx, models.NewLocalID(), shared.LocationPatch{Title: ptr("x")})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestLocationService_DeleteLocalRecordCancelsQueuedWork(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, false)

	keep, err := f.svc.Create(ctx, wetland("Keep"))
	require.NoError(t, err)
	drop, err := f.svc.Create(ctx, wetland("Drop"))
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, drop.ID, shared.LocationPatch{City: ptr("Osijek")})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, drop.ID))

	assert.Equal(t, []models.Action{models.CreateLocation{LocalID: keep.ID, Input: wetland("Keep")}}, f.queued(t))
	_, err = f.mirror.Get(ctx, drop.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	require.ErrorIs(t, f.svc.Delete(ctx, drop.ID), common.ErrNotFound)
}

func TestLocationService_OfflineEditsOfServerRecords(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, true)
	f.server.seed(
		shared.Location{ID: "1", Title: "Marsh", Type: shared.LocationWetland, City: "Zagreb"},
		shared.Location{ID: "2", Title: "Shed", Type: shared.LocationDepot, City: "Split"},
	)
	_, err := f.svc.List(ctx, shared.LocationFilter{})
	require.NoError(t, err)

	f.conn.online.Store(false)

	_, err = f.svc.Update(ctx, "999", shared.LocationPatch{Title: ptr("x")})
	require.ErrorIs(t, err, common.ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, "999"), common.ErrNotFound)

	updated, err := f.svc.Update(ctx, "1", shared.LocationPatch{Title: ptr("Great marsh")})
	require.NoError(t, err)
	assert.Equal(t, "Great marsh", updated.Title)
	assert.Equal(t, "Zagreb", updated.City)

	require.NoError(t, f.svc.Delete(ctx, "2"))

	assert.Equal(t, []models.Action{
		models.UpdateLocation{ID: "1", Patch: shared.LocationPatch{Title: ptr("Great marsh")}},
		models.DeleteLocation{ID: "2"},
	}, f.queued(t))

	locs, err := f.svc.List(ctx, shared.LocationFilter{})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Great marsh", locs[0].Title)
}

func TestLocationService_OfflineEditWithoutCacheIsAccepted(t *testing.T) {
	f := newLocationFixture(t, false)

	loc, err := f.svc.Update(context.Background(), "7", shared.LocationPatch{City: ptr("Pula")})
	require.NoError(t, err)
	assert.Equal(t, shared.Location{ID: "7", City: "Pula"}, loc)
	assert.Len(t, f.queued(t), 1)
}

func TestLocationService_DeleteOfflineSupersedesQueuedUpdates(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, false)

	_, err := f.svc.Update(ctx, "7", shared.LocationPatch{City: ptr("Pula")})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, "7"))

	assert.Equal(t, []models.Action{models.DeleteLocation{ID: "7"}}, f.queued(t))
}

func TestLocationService_OnlineUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, true)
	f.server.seed(shared.Location{ID: "1", Title: "Marsh", Type: shared.LocationWetland})

	loc, err := f.svc.Update(ctx, "1", shared.LocationPatch{Title: ptr("Fen")})
	require.NoError(t, err)
	assert.Equal(t, "Fen", loc.Title)

	require.NoError(t, f.svc.Delete(ctx, "1"))
	require.ErrorIs(t, f.svc.Delete(ctx, "1"), common.ErrNotFound)

	_, err = f.svc.Update(ctx, "1", shared.LocationPatch{Title: ptr("Fen")})
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, f.queued(t))
}

func TestLocationService_ListMergesMirror(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, false)

	local, err := f.svc.Create(ctx, shared.LocationInput{Title: "Depot", Type: shared.LocationDepot, City: "split"})
	require.NoError(t, err)

	f.conn.online.Store(true)
	f.server.seed(
		shared.Location{ID: "1", Title: "Marsh", Type: shared.LocationWetland, City: "Split"},
		shared.Location{ID: "2", Title: "Shed", Type: shared.LocationDepot, City: "Split"},
	)

	locs, err := f.svc.List(ctx, shared.LocationFilter{Type: shared.LocationDepot, City: "Split"})
	require.NoError(t, err)
	ids := make([]string, 0, len(locs))
	for _, l := range locs {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"2", local.ID}, ids)
}

func TestLocationService_ListFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, true)
	f.server.seed(shared.Location{ID: "1", Title: "Marsh", Type: shared.LocationWetland})

	_, err := f.svc.List(ctx, shared.LocationFilter{})
	require.NoError(t, err)

	f.server.fail(common.ErrUnavailable)
	locs, err := f.svc.List(ctx, shared.LocationFilter{})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Marsh", locs[0].Title)
}

func TestLocationService_ListUnauthorizedReturnsLocalData(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, false)

	_, err := f.svc.Create(ctx, wetland("Pond"))
	require.NoError(t, err)

	f.conn.online.Store(true)
	f.server.fail(common.ErrUnauthorized)

	locs, err := f.svc.List(ctx, shared.LocationFilter{})
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Len(t, locs, 1)
}

func TestLocationService_SyncAndStatus(t *testing.T) {
	ctx := context.Background()
	f := newLocationFixture(t, false)

	local, err := f.svc.Create(ctx, wetland("Pond"))
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, local.ID, shared.LocationPatch{City: ptr("Sisak")})
	require.NoError(t, err)

	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStatus{QueuedActions: 2, LocalRecords: 1, Last: reconcile.Report{Status: reconcile.StatusIdle}}, st)

	report, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusOffline, report.Status)

	f.conn.online.Store(true)
	report, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusSucceeded, report.Status)
	assert.Equal(t, []string{"create Pond", "update 100"}, f.server.Calls())

	locs, err := f.svc.List(ctx, shared.LocationFilter{})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "100", locs[0].ID)
	assert.Equal(t, "Sisak", locs[0].City)

	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.Zero(t, st.QueuedActions)
	assert.Zero(t, st.LocalRecords)
}

func TestOverlay(t *testing.T) {
	wrap := func(a models.Action) models.PendingAction {
		p, err := models.Wrap(a, fixedTime)
		require.NoError(t, err)
		return p
	}
	locs := []shared.Location{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}, {ID: "3", Title: "c"}}
	actions := []models.PendingAction{
		wrap(models.UpdateLocation{ID: "1", Patch: shared.LocationPatch{Title: ptr("A")}}),
		wrap(models.DeleteLocation{ID: "2"}),
		wrap(models.UpdateLocation{ID: "9", Patch: shared.LocationPatch{Title: ptr("Z")}}),
	}

	got := overlay(locs, actions)
	assert.Equal(t, []shared.Location{{ID: "1", Title: "A"}, {ID: "3", Title: "c"}}, got)
	assert.Equal(t, "a", locs[0].Title, "input must not be modified")
}

var fixedTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
