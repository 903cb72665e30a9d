package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/wetmap/internal/common"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

// UserService administers federation accounts. It needs the server and
// fails with ErrUnavailable while offline.
type UserService interface {
	List(ctx context.Context) ([]shared.User, error)
	Create(ctx context.Context, in shared.UserInput) (shared.User, error)
	Update(ctx context.Context, id string, patch shared.UserPatch) (shared.User, error)
	Delete(ctx context.Context, id string) error
}

type UserRemote interface {
	ListUsers(ctx context.Context) ([]shared.User, error)
	CreateUser(ctx context.Context, in shared.UserInput) (shared.User, error)
	UpdateUser(ctx context.Context, id string, patch shared.UserPatch) (shared.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	remote UserRemote
	conn   Connectivity
}

func NewUserService(remote UserRemote, conn Connectivity) UserService {
	return &userService{remote: remote, conn: conn}
}

func (s *userService) online() error {
	if !s.conn.Online() {
		return fmt.Errorf("%w: user administration requires a connection", common.ErrUnavailable)
	}
	return nil
}

func (s *userService) List(ctx context.Context) ([]shared.User, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	return s.remote.ListUsers(ctx)
}

func (s *userService) Create(ctx context.Context, in shared.UserInput) (shared.User, error) {
	if err := in.Validate(); err != nil {
		return shared.User{}, err
	}
	if err := s.online(); err != nil {
		return shared.User{}, err
	}
	return s.remote.CreateUser(ctx, in)
}

func (s *userService) Update(ctx context.Context, id string, patch shared.UserPatch) (shared.User, error) {
	if err := patch.Validate(); err != nil {
		return shared.User{}, err
	}
	if err := s.online(); err != nil {
		return shared.User{}, err
	}
	return s.remote.UpdateUser(ctx, id, patch)
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if err := s.online(); err != nil {
		return err
	}
	return s.remote.DeleteUser(ctx, id)
}
