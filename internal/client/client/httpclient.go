package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
	"github.com/dmitrijs2005/wetmap/internal/netx"
)

type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	tokens  TokenStore
	log     logging.Logger
}

// NewHTTPClient talks to the record store rooted at baseURL. Each call is
// bounded by timeout; a timeout counts as the server being unavailable.
func NewHTTPClient(baseURL string, timeout time.Duration, tokens TokenStore, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		tokens:  tokens,
		log:     log,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", common.ErrInternal, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.mapTransportError(method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s: %w", common.ErrUnavailable, method, path, err)
		}
		return nil
	}

	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		if err := c.tokens.ClearToken(ctx); err != nil {
			c.log.Error(ctx, "failed to clear rejected token", "err", err)
		}
	}
	return mapStatus(resp.StatusCode, eb.Error)
}

func (c *HTTPClient) mapTransportError(method, path string, err error) error {
	if netx.IsTransient(err) {
		return fmt.Errorf("%w: %s %s: %w", common.ErrUnavailable, method, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", common.ErrInternal, method, path, err)
}

// mapStatus turns a non-2xx status into one of the common sentinels.
func mapStatus(code int, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	var sentinel error
	switch {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		sentinel = common.ErrValidation
	case code == http.StatusUnauthorized:
		sentinel = common.ErrUnauthorized
	case code == http.StatusForbidden:
		sentinel = common.ErrForbidden
	case code == http.StatusNotFound:
		sentinel = common.ErrNotFound
	case code == http.StatusConflict:
		sentinel = common.ErrConflict
	case netx.IsTransientStatus(code):
		sentinel = common.ErrUnavailable
	default:
		sentinel = common.ErrInternal
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &resp); err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	if resp.Status != "OK" {
		return fmt.Errorf("%w: health status %q", common.ErrUnavailable, resp.Status)
	}
	return nil
}

func (c *HTTPClient) Login(ctx context.Context, creds shared.Credentials) (shared.AuthResponse, error) {
	var resp shared.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &resp)
	return resp, err
}

func (c *HTTPClient) Me(ctx context.Context) (shared.User, error) {
	var u shared.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &u)
	return u, err
}

func (c *HTTPClient) ListLocations(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error) {
	var locs []shared.Location
	if err := c.do(ctx, http.MethodGet, "/locations", f.Query(), nil, &locs); err != nil {
		return nil, err
	}
	if locs == nil {
		locs = []shared.Location{}
	}
	return locs, nil
}

func (c *HTTPClient) CreateLocation(ctx context.Context, in shared.LocationInput) (shared.Location, error) {
	var loc shared.Location
	err := c.do(ctx, http.MethodPost, "/locations", nil, in, &loc)
	return loc, err
}

func (c *HTTPClient) UpdateLocation(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	var loc shared.Location
	err := c.do(ctx, http.MethodPut, "/locations/"+url.PathEscape(id), nil, patch, &loc)
	return loc, err
}

func (c *HTTPClient) DeleteLocation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/locations/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) ListUsers(ctx context.Context) ([]shared.User, error) {
	var users []shared.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []shared.User{}
	}
	return users, nil
}

func (c *HTTPClient) CreateUser(ctx context.Context, in shared.UserInput) (shared.User, error) {
	var u shared.User
	err := c.do(ctx, http.MethodPost, "/users", nil, in, &u)
	return u, err
}

func (c *HTTPClient) UpdateUser(ctx context.Context, id string, patch shared.UserPatch) (shared.User, error) {
	var u shared.User
	err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), nil, patch, &u)
	return u, err
}

func (c *HTTPClient) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, nil)
}
