// Package client talks to the remote record store and bootstraps the
// device database.
//
// HTTPClient implements Client over the JSON API (/auth, /locations,
// /users, /health). It attaches the bearer token from a TokenStore and
// maps every failure to a sentinel from internal/common:
//
//   - transport failures, timeouts, 408/429/5xx: common.ErrUnavailable
//   - 400/422: common.ErrValidation
//   - 401: common.ErrUnauthorized, after clearing the stored token
//   - 403: common.ErrForbidden
//   - 404: common.ErrNotFound
//   - 409: common.ErrConflict
//
// InitDatabase opens the SQLite device store and applies the embedded goose
// migrations.
package client
