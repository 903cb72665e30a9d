// Package netx classifies failures of outbound HTTP calls.
package netx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// IsTransient reports whether err looks like a connectivity problem: a
// timeout, a refused or reset connection, DNS failure or any other
// net.Error. Such failures are worth retrying later.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsTransientStatus reports whether an HTTP status means the server could
// not process the request right now.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= http.StatusInternalServerError
}
