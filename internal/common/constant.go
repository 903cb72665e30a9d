// Package common contains shared constants and sentinel errors used across
// WetMap components.
package common

const (
	// AuthorizationHeaderName carries the bearer token on API requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token in the Authorization header value.
	BearerPrefix = "Bearer "

	// LocalIDPrefix marks identifiers synthesized on the device for records
	// the server has not confirmed yet. Server ids never start with it.
	LocalIDPrefix = "local_"
)
