package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/wetmap/internal/client/repositories/session"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

// AuthService signs the device user in and out.
//
// Contract:
//   - Login authenticates against the server when it is reachable and caches
//     the token and user. Without connectivity it accepts the credentials of
//     the last successful online login on this device.
//   - Restore resumes a stored session at startup.
//   - Revalidate is called whenever connectivity returns; the cached user is
//     never trusted over the server's answer.
//   - Logout clears the token and user.
type AuthService interface {
	Login(ctx context.Context, username, password string) (Session, error)
	Logout(ctx context.Context) error
	Restore(ctx context.Context) (Session, error)
	Revalidate(ctx context.Context) error
	CurrentUser(ctx context.Context) (*shared.User, error)
}

// AuthRemote is the part of the server API used for authentication.
type AuthRemote interface {
	Login(ctx context.Context, creds shared.Credentials) (shared.AuthResponse, error)
	Me(ctx context.Context) (shared.User, error)
}

// Session describes the signed-in user. Offline is set when the user was
// accepted from local state only.
type Session struct {
	User    shared.User
	Offline bool
}

type authService struct {
	remote  AuthRemote
	conn    Connectivity
	session *session.Store
	log     logging.Logger
}

func NewAuthService(remote AuthRemote, conn Connectivity, s *session.Store, log logging.Logger) AuthService {
	return &authService{remote: remote, conn: conn, session: s, log: log}
}

func (s *authService) Login(ctx context.Context, username, password string) (Session, error) {
	creds := shared.Credentials{Username: username, Password: password}
	if err := creds.Validate(); err != nil {
		return Session{}, err
	}

	if s.conn.Online() {
		resp, err := s.remote.Login(ctx, creds)
		if err == nil {
			if err := s.session.Save(ctx, resp.Token, resp.User, username, password); err != nil {
				return Session{}, err
			}
			s.log.Info(ctx, "signed in", "user_id", resp.User.ID)
			return Session{User: resp.User}, nil
		}
		if !errors.Is(err, common.ErrUnavailable) {
			return Session{}, err
		}
		s.log.Info(ctx, "server unreachable, trying offline login", "err", err)
	}

	u, err := s.session.VerifyOffline(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	if err := s.session.SetUser(ctx, u); err != nil {
		return Session{}, err
	}
	s.log.Info(ctx, "signed in offline", "user_id", u.ID)
	return Session{User: u, Offline: true}, nil
}

func (s *authService) Logout(ctx context.Context) error {
	return s.session.Clear(ctx)
}

func (s *authService) Restore(ctx context.Context) (Session, error) {
	token, err := s.session.Token(ctx)
	if err != nil {
		return Session{}, err
	}
	cached, err := s.session.User(ctx)
	if err != nil {
		return Session{}, err
	}
	if token == "" {
		return Session{}, common.ErrUnauthorized
	}

	if s.conn.Online() {
		u, err := s.remote.Me(ctx)
		switch {
		case err == nil:
			if err := s.session.SetUser(ctx, u); err != nil {
				return Session{}, err
			}
			return Session{User: u}, nil
		case errors.Is(err, common.ErrUnauthorized):
			if err := s.session.Clear(ctx); err != nil {
				s.log.Error(ctx, "failed to clear session", "err", err)
			}
			return Session{}, err
		case !errors.Is(err, common.ErrUnavailable):
			return Session{}, err
		}
	}

	if cached == nil {
		return Session{}, common.ErrUnauthorized
	}
	return Session{User: *cached, Offline: true}, nil
}

// Revalidate confirms the session with the server. A session that only
// exists locally, or whose token the server rejects, is cleared and
// ErrUnauthorized is returned. Transient failures keep the session as is.
func (s *authService) Revalidate(ctx context.Context) error {
	token, err := s.session.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		u, err := s.session.User(ctx)
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}
		if err := s.session.Clear(ctx); err != nil {
			return err
		}
		return common.ErrUnauthorized
	}

	u, err := s.remote.Me(ctx)
	switch {
	case err == nil:
		return s.session.SetUser(ctx, u)
	case errors.Is(err, common.ErrUnauthorized):
		if cerr := s.session.Clear(ctx); cerr != nil {
			return cerr
		}
		return err
	case errors.Is(err, common.ErrUnavailable):
		s.log.Debug(ctx, "revalidation postponed", "err", err)
		return nil
	default:
		return err
	}
}

func (s *authService) CurrentUser(ctx context.Context) (*shared.User, error) {
	return s.session.User(ctx)
}
