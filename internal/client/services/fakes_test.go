package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/wetmap/internal/common"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

type fakeConn struct{ online atomic.Bool }

func (f *fakeConn) Check(context.Context) bool { return f.online.Load() }
func (f *fakeConn) Online() bool               { return f.online.Load() }

// fakeServer keeps records in memory and fails every call with err when set.
type fakeServer struct {
	mu     sync.Mutex
	err    error
	nextID int
	locs   []shared.Location
	users  []shared.User
	calls  []string

	token    string
	password string
	user     shared.User
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		nextID:   100,
		token:    "tok-1",
		password: "s3cret",
		user:     shared.User{ID: "u1", Name: "Ana", Username: "ana", Role: shared.RoleStateOfficer},
	}
}

func (f *fakeServer) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeServer) enter(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeServer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeServer) seed(locs ...shared.Location) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locs = append(f.locs, locs...)
}

func (f *fakeServer) Login(_ context.Context, creds shared.Credentials) (shared.AuthResponse, error) {
	if err := f.enter("login"); err != nil {
		return shared.AuthResponse{}, err
	}
	if creds.Username != f.user.Username || creds.Password != f.password {
		return shared.AuthResponse{}, common.ErrUnauthorized
	}
	return shared.AuthResponse{Token: f.token, User: f.user}, nil
}

func (f *fakeServer) Me(context.Context) (shared.User, error) {
	if err := f.enter("me"); err != nil {
		return shared.User{}, err
	}
	return f.user, nil
}

func (f *fakeServer) ListLocations(_ context.Context, filter shared.LocationFilter) ([]shared.Location, error) {
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return shared.FilterLocations(slices.Clone(f.locs), filter), nil
}

func (f *fakeServer) CreateLocation(_ context.Context, in shared.LocationInput) (shared.Location, error) {
	if err := f.enter("create " + in.Title); err != nil {
		return shared.Location{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	loc := in.Location()
	loc.ID = strconv.Itoa(f.nextID)
	f.nextID++
	f.locs = append(f.locs, loc)
	return loc, nil
}

func (f *fakeServer) UpdateLocation(_ context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	if err := f.enter("update " + id); err != nil {
		return shared.Location{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.locs {
		if f.locs[i].ID == id {
			patch.Apply(&f.locs[i])
			return f.locs[i], nil
		}
	}
	return shared.Location{}, fmt.Errorf("%w: location %s", common.ErrNotFound, id)
}

func (f *fakeServer) DeleteLocation(_ context.Context, id string) error {
	if err := f.enter("delete " + id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.locs {
		if f.locs[i].ID == id {
			f.locs = slices.Delete(f.locs, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("%w: location %s", common.ErrNotFound, id)
}

func (f *fakeServer) ListUsers(context.Context) ([]shared.User, error) {
	if err := f.enter("list users"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.users), nil
}

func (f *fakeServer) CreateUser(_ context.Context, in shared.UserInput) (shared.User, error) {
	if err := f.enter("create user " + in.Username); err != nil {
		return shared.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := shared.User{ID: strconv.Itoa(f.nextID), Name: in.Name, Username: in.Username, Role: in.Role, IsAdmin: in.IsAdmin}
	f.nextID++
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeServer) UpdateUser(_ context.Context, id string, patch shared.UserPatch) (shared.User, error) {
	if err := f.enter("update user " + id); err != nil {
		return shared.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			if patch.Name != nil {
				f.users[i].Name = *patch.Name
			}
			return f.users[i], nil
		}
	}
	return shared.User{}, common.ErrNotFound
}

func (f *fakeServer) DeleteUser(_ context.Context, id string) error {
	return f.enter("delete user " + id)
}
