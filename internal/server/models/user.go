// Package models holds the record store's persistence types.
package models

import (
	"time"

	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

type User struct {
	ID        string
	Name      string
	UserName  string
	Salt      []byte
	Verifier  []byte
	Role      shared.Role
	IsAdmin   bool
	CreatedAt time.Time
}

// Public drops the credentials.
func (u *User) Public() shared.User {
	return shared.User{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.UserName,
		Role:     u.Role,
		IsAdmin:  u.IsAdmin,
	}
}
