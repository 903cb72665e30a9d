package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wetmap/internal/common"
)

var errInvalidCredentials = errors.New("invalid username or password")

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and signs in, online when possible and
// against the last online login on this device otherwise.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	s, err := a.auth.Login(ctx, username, password)
	if errors.Is(err, common.ErrUnauthorized) {
		return errInvalidCredentials
	}
	if err != nil {
		return err
	}
	a.signIn(ctx, s)

	if s.Offline {
		a.printf("Signed in offline as %s. Changes will sync when the server is reachable.\n", s.User.Name)
		return nil
	}
	a.printf("Signed in as %s.\n", s.User.Name)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.setUser(nil)
	a.println("Signed out.")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	u, err := a.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if u == nil {
		a.println("Not signed in.")
		return nil
	}
	admin := ""
	if u.IsAdmin {
		admin = ", admin"
	}
	a.println(fmt.Sprintf("%s (%s, %s%s)", u.Name, u.Username, u.Role, admin))
	return nil
}
