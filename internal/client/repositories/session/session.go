// Package session persists the device's authentication state: the bearer
// token, a best-effort copy of the signed-in user and the verifier used
// for offline login.
package session

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/wetmap/internal/client/repositories/kv"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/cryptox"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

type offlineLogin struct {
	Username string      `json:"username"`
	Salt     []byte      `json:"salt"`
	Verifier []byte      `json:"verifier"`
	User     shared.User `json:"user"`
}

type Store struct {
	token   *kv.Document[string]
	user    *kv.Document[*shared.User]
	offline *kv.Document[*offlineLogin]
}

func New(store kv.Store, log logging.Logger) *Store {
	return &Store{
		token:   kv.NewDocument[string](store, kv.KeyAuthToken, log),
		user:    kv.NewDocument[*shared.User](store, kv.KeySessionUser, log),
		offline: kv.NewDocument[*offlineLogin](store, kv.KeyOfflineLogin, log),
	}
}

// Token returns the cached bearer token, or "" when signed out.
func (s *Store) Token(ctx context.Context) (string, error) {
	return s.token.Load(ctx)
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.token.Replace(ctx, token)
}

func (s *Store) ClearToken(ctx context.Context) error {
	return s.token.Reset(ctx)
}

// User returns the cached user, or nil.
func (s *Store) User(ctx context.Context) (*shared.User, error) {
	return s.user.Load(ctx)
}

func (s *Store) SetUser(ctx context.Context, u shared.User) error {
	return s.user.Replace(ctx, &u)
}

// Save stores a fresh online login: token, user and an offline verifier of
// password.
func (s *Store) Save(ctx context.Context, token string, u shared.User, username, password string) error {
	if err := s.SetToken(ctx, token); err != nil {
		return err
	}
	if err := s.SetUser(ctx, u); err != nil {
		return err
	}
	salt := cryptox.NewSalt()
	return s.offline.Replace(ctx, &offlineLogin{
		Username: strings.ToLower(username),
		Salt:     salt,
		Verifier: cryptox.HashPassword(password, salt),
		User:     u,
	})
}

// VerifyOffline checks credentials against the verifier of the last online
// login and returns the user it belonged to.
func (s *Store) VerifyOffline(ctx context.Context, username, password string) (shared.User, error) {
	ol, err := s.offline.Load(ctx)
	if err != nil {
		return shared.User{}, err
	}
	if ol == nil || ol.Username != strings.ToLower(username) {
		return shared.User{}, common.ErrUnauthorized
	}
	if !cryptox.VerifyPassword(password, ol.Salt, ol.Verifier) {
		return shared.User{}, common.ErrUnauthorized
	}
	return ol.User, nil
}

// Clear signs the device out. The offline verifier is kept so the same
// user can sign in again without connectivity.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.token.Reset(ctx); err != nil {
		return err
	}
	return s.user.Reset(ctx)
}

// Forget removes the offline verifier as well.
func (s *Store) Forget(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	return s.offline.Reset(ctx)
}
