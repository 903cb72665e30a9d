package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/cryptox"
	"github.com/dmitrijs2005/wetmap/internal/dbx"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
	"github.com/dmitrijs2005/wetmap/internal/server/models"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/locations"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/users"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	byID      map[string]*models.User
	next      int
	getErr    error
	createErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) add(id, username, password string, admin bool) *models.User {
	salt := []byte("0123456789abcdef")
	u := &models.User{
		ID:       id,
		Name:     "Name " + username,
		UserName: username,
		Salt:     salt,
		Verifier: cryptox.HashPassword(password, salt),
		Role:     shared.RoleStateOfficer,
		IsAdmin:  admin,
	}
	f.byID[id] = u
	return u
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.UserName == u.UserName {
			return nil, common.ErrConflict
		}
	}
	f.next++
	cp := *u
	cp.ID = "new-" + strconv.Itoa(f.next)
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.UserName == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) error {
	if _, ok := f.byID[u.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsersRepo) CountAdmins(ctx context.Context) (int, error) {
	n := 0
	for _, u := range f.byID {
		if u.IsAdmin {
			n++
		}
	}
	return n, nil
}

type fakeLocationsRepo struct {
	items     map[string]shared.Location
	next      int
	lastList  shared.LocationFilter
	createErr error
}

func newFakeLocationsRepo() *fakeLocationsRepo {
	return &fakeLocationsRepo{items: map[string]shared.Location{}}
}

func (f *fakeLocationsRepo) Create(ctx context.Context, loc shared.Location) (shared.Location, error) {
	if f.createErr != nil {
		return shared.Location{}, f.createErr
	}
	f.next++
	loc.ID = strconv.Itoa(f.next)
	f.items[loc.ID] = loc
	return loc, nil
}

func (f *fakeLocationsRepo) GetByID(ctx context.Context, id string) (shared.Location, error) {
	loc, ok := f.items[id]
	if !ok {
		return shared.Location{}, common.ErrNotFound
	}
	return loc, nil
}

func (f *fakeLocationsRepo) List(ctx context.Context, filter shared.LocationFilter) ([]shared.Location, error) {
	f.lastList = filter
	out := make([]shared.Location, 0, len(f.items))
	for _, l := range f.items {
		if filter.Matches(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLocationsRepo) Update(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	loc, ok := f.items[id]
	if !ok {
		return shared.Location{}, common.ErrNotFound
	}
	patch.Apply(&loc)
	f.items[id] = loc
	return loc, nil
}

func (f *fakeLocationsRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	l *fakeLocationsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository           { return m.u }
func (m *fakeRepoManager) Locations(db dbx.DBTX) locations.Repository   { return m.l }
