// Package models defines the device-side sync types: pending actions and
// local-origin identifiers.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/common"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
	"github.com/google/uuid"
)

// ActionKind tags a PendingAction payload.
type ActionKind string

const (
	KindCreateLocation ActionKind = "CREATE_LOCATION"
	KindUpdateLocation ActionKind = "UPDATE_LOCATION"
	KindDeleteLocation ActionKind = "DELETE_LOCATION"
)

var ErrUnknownAction = errors.New("unknown pending action")

// NewLocalID returns a fresh local-origin record id.
func NewLocalID() string {
	return common.LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was minted on this device and has no server
// counterpart yet.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, common.LocalIDPrefix)
}

// Action is one of CreateLocation, UpdateLocation or DeleteLocation.
type Action interface {
	Kind() ActionKind
	// Target is the id of the record the action applies to.
	Target() string
}

// CreateLocation creates a record first saved on the device as LocalID.
type CreateLocation struct {
	LocalID string               `json:"localId"`
	Input   shared.LocationInput `json:"input"`
}

func (CreateLocation) Kind() ActionKind  { return KindCreateLocation }
func (a CreateLocation) Target() string { return a.LocalID }

type UpdateLocation struct {
	ID    string               `json:"id"`
	Patch shared.LocationPatch `json:"patch"`
}

func (UpdateLocation) Kind() ActionKind  { return KindUpdateLocation }
func (a UpdateLocation) Target() string { return a.ID }

type DeleteLocation struct {
	ID string `json:"id"`
}

func (DeleteLocation) Kind() ActionKind  { return KindDeleteLocation }
func (a DeleteLocation) Target() string { return a.ID }

// PendingAction is the stored envelope of an Action. Its position in the
// queue is its replay order.
type PendingAction struct {
	ID        string          `json:"id"`
	Kind      ActionKind      `json:"type"`
	QueuedAt  time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts,omitempty"`
	LastError string          `json:"lastError,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Wrap builds a PendingAction around a.
func Wrap(a Action, now time.Time) (PendingAction, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return PendingAction{}, err
	}
	return PendingAction{
		ID:       uuid.NewString(),
		Kind:     a.Kind(),
		QueuedAt: now.UTC(),
		Payload:  b,
	}, nil
}

// Unwrap decodes the payload into its concrete Action.
func (p PendingAction) Unwrap() (Action, error) {
	switch p.Kind {
	case KindCreateLocation:
		var v CreateLocation
		if err := json.Unmarshal(p.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", p.Kind, err)
		}
		return v, nil
	case KindUpdateLocation:
		var v UpdateLocation
		if err := json.Unmarshal(p.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", p.Kind, err)
		}
		return v, nil
	case KindDeleteLocation:
		var v DeleteLocation
		if err := json.Unmarshal(p.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", p.Kind, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, p.Kind)
	}
}

// Target returns the id the action applies to, or "" if the payload cannot
// be decoded.
func (p PendingAction) Target() string {
	a, err := p.Unwrap()
	if err != nil {
		return ""
	}
	return a.Target()
}

// Retarget returns a copy of p pointing at id. Only updates and deletes
// carry a retargetable id; other kinds are returned unchanged.
func (p PendingAction) Retarget(id string) (PendingAction, error) {
	a, err := p.Unwrap()
	if err != nil {
		return p, err
	}

	var next Action
	switch v := a.(type) {
	case UpdateLocation:
		v.ID = id
		next = v
	case DeleteLocation:
		v.ID = id
		next = v
	default:
		return p, nil
	}

	b, err := json.Marshal(next)
	if err != nil {
		return p, err
	}
	p.Payload = b
	return p, nil
}
