package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/wetmap/internal/common"
)

type Role string

const (
	RoleFederationOfficer Role = "FEDERATION_OFFICER"
	RoleStateOfficer      Role = "STATE_OFFICER"
	RoleAuthorizedPerson  Role = "AUTHORIZED_PERSON"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", common.ErrValidation, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleFederationOfficer, RoleStateOfficer, RoleAuthorizedPerson:
		return true
	}
	return false
}

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	IsAdmin  bool   `json:"isAdmin"`
}

type UserInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (in UserInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("%w: username is required", common.ErrValidation)
	}
	if in.Password == "" {
		return fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	if !in.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", common.ErrValidation, in.Role)
	}
	return nil
}

// UserPatch is a partial user update; nil means unchanged.
type UserPatch struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsAdmin  *bool   `json:"isAdmin,omitempty"`
}

func (p UserPatch) Validate() error {
	if p.Name == nil && p.Username == nil && p.Password == nil && p.Role == nil && p.IsAdmin == nil {
		return fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", common.ErrValidation)
	}
	if p.Username != nil && strings.TrimSpace(*p.Username) == "" {
		return fmt.Errorf("%w: username must not be empty", common.ErrValidation)
	}
	if p.Password != nil && *p.Password == "" {
		return fmt.Errorf("%w: password must not be empty", common.ErrValidation)
	}
	if p.Role != nil && !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", common.ErrValidation, *p.Role)
	}
	return nil
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}
	return nil
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
