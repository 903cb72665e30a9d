// Package services contains the record store's business logic. UserService
// handles login, token issuance and admin-only user management;
// LocationService handles the geotagged records.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/cryptox"
	"github.com/dmitrijs2005/wetmap/internal/dbx"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
	"github.com/dmitrijs2005/wetmap/internal/server/auth"
	"github.com/dmitrijs2005/wetmap/internal/server/config"
	"github.com/dmitrijs2005/wetmap/internal/server/models"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/users"
)

type UserService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	jwtSecret             []byte
	tokenValidityDuration time.Duration
	logger                logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, l logging.Logger) *UserService {
	return &UserService{
		db:                    db,
		repomanager:           m,
		jwtSecret:             []byte(cfg.SecretKey),
		tokenValidityDuration: cfg.TokenValidityDuration,
		logger:                l.With("service", "users"),
	}
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Login checks the credentials and mints a bearer token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, creds shared.Credentials) (shared.AuthResponse, error) {
	if err := creds.Validate(); err != nil {
		return shared.AuthResponse{}, err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, normalizeUsername(creds.Username))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return shared.AuthResponse{}, common.ErrUnauthorized
		}
		return shared.AuthResponse{}, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	if !cryptox.VerifyPassword(creds.Password, user.Salt, user.Verifier) {
		return shared.AuthResponse{}, common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, user.IsAdmin, s.jwtSecret, s.tokenValidityDuration)
	if err != nil {
		return shared.AuthResponse{}, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	return shared.AuthResponse{Token: token, User: user.Public()}, nil
}

// Get returns the user with id. A token naming a deleted user reads as
// unauthorized rather than not found.
func (s *UserService) Get(ctx context.Context, id string) (shared.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return shared.User{}, common.ErrUnauthorized
		}
		return shared.User{}, err
	}
	return user.Public(), nil
}

func (s *UserService) List(ctx context.Context, callerID string) ([]shared.User, error) {
	repo := s.repomanager.Users(s.db)
	if err := requireAdmin(ctx, repo, callerID); err != nil {
		return nil, err
	}

	list, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]shared.User, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *UserService) Create(ctx context.Context, callerID string, in shared.UserInput) (shared.User, error) {
	if err := in.Validate(); err != nil {
		return shared.User{}, err
	}

	repo := s.repomanager.Users(s.db)
	if err := requireAdmin(ctx, repo, callerID); err != nil {
		return shared.User{}, err
	}

	salt := cryptox.NewSalt()
	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		UserName: normalizeUsername(in.Username),
		Salt:     salt,
		Verifier: cryptox.HashPassword(in.Password, salt),
		Role:     in.Role,
		IsAdmin:  in.IsAdmin,
	}

	created, err := repo.Create(ctx, user)
	if err != nil {
		return shared.User{}, err
	}

	s.logger.Info(ctx, "user created", "user_id", created.ID, "username", created.UserName)
	return created.Public(), nil
}

// Update applies patch to the user with id. Revoking the admin flag of the
// last administrator fails with common.ErrConflict.
func (s *UserService) Update(ctx context.Context, callerID string, id string, patch shared.UserPatch) (shared.User, error) {
	if err := patch.Validate(); err != nil {
		return shared.User{}, err
	}

	var result *models.User

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := requireAdmin(ctx, repo, callerID); err != nil {
			return err
		}

		user, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if user.IsAdmin && patch.IsAdmin != nil && !*patch.IsAdmin {
			if err := ensureNotLastAdmin(ctx, repo); err != nil {
				return err
			}
		}

		applyUserPatch(user, patch)

		if err := repo.Update(ctx, user); err != nil {
			return err
		}
		result = user
		return nil
	})
	if err != nil {
		return shared.User{}, err
	}

	s.logger.Info(ctx, "user updated", "user_id", result.ID)
	return result.Public(), nil
}

// Delete removes the user with id. The last administrator cannot be removed.
func (s *UserService) Delete(ctx context.Context, callerID string, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := requireAdmin(ctx, repo, callerID); err != nil {
			return err
		}

		user, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if user.IsAdmin {
			if err := ensureNotLastAdmin(ctx, repo); err != nil {
				return err
			}
		}

		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// EnsureAdmin creates the bootstrap administrator when no user with that
// username exists. An existing account is left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: bootstrap admin credentials are required", common.ErrValidation)
	}

	repo := s.repomanager.Users(s.db)
	_, err := repo.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("error looking up admin: %w", err)
	}

	salt := cryptox.NewSalt()
	_, err = repo.Create(ctx, &models.User{
		Name:     "Administrator",
		UserName: username,
		Salt:     salt,
		Verifier: cryptox.HashPassword(password, salt),
		Role:     shared.RoleFederationOfficer,
		IsAdmin:  true,
	})
	if err != nil && !errors.Is(err, common.ErrConflict) {
		return fmt.Errorf("error creating admin: %w", err)
	}

	s.logger.Info(ctx, "bootstrap admin ensured", "username", username)
	return nil
}

// requireAdmin loads the caller fresh so a revoked flag takes effect before
// the token expires.
func requireAdmin(ctx context.Context, repo users.Repository, callerID string) error {
	caller, err := repo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnauthorized
		}
		return err
	}
	if !caller.IsAdmin {
		return fmt.Errorf("%w: admin privileges required", common.ErrForbidden)
	}
	return nil
}

func ensureNotLastAdmin(ctx context.Context, repo users.Repository) error {
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("%w: cannot remove the last administrator", common.ErrConflict)
	}
	return nil
}

func applyUserPatch(u *models.User, p shared.UserPatch) {
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Username != nil {
		u.UserName = normalizeUsername(*p.Username)
	}
	if p.Password != nil {
		u.Salt = cryptox.NewSalt()
		u.Verifier = cryptox.HashPassword(*p.Password, u.Salt)
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
}
