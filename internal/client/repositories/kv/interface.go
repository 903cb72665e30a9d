// Package kv is the device's durable key-value store. Every collection the
// client persists (pending actions, mirrored records, cached records,
// session) lives under one key as a JSON document.
package kv

import "context"

// Well-known keys.
const (
	KeyPendingActions  = "@offline_queue"
	KeyLocalLocations  = "@local_locations"
	KeyRemoteLocations = "@locations"
	KeyAuthToken       = "@auth_token"
	KeySessionUser     = "@session_user"
	KeyOfflineLogin    = "@offline_login"
	KeyConfirmedIDs    = "@confirmed_ids"
)

// Store persists opaque values by key. Get returns (nil, nil) for an
// absent key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
