// Package client is a typed HTTP client for the room-booking API.
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
	"strconv"
	"strings"
	"sync"
	"time"

	"room-booking/utils"

	"golang.org/x/sync/singleflight"
)

var ErrNotAuthenticated = errors.New("client: no session")

type Client struct {
	baseURL string
	http    *http.Client
	retry   utils.RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	access  string
	refresh string

	// refreshes coalesces concurrent token refreshes of this instance.
	refreshes singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryPolicy controls retries of 503 responses.
func WithRetryPolicy(p utils.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithTokens resumes an existing session.
func WithTokens(access, refresh string) Option {
	return func(c *Client) { c.access, c.refresh = access, refresh }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		retry: utils.RetryPolicy{
			MaxAttempts:   3,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 2,
		},
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Tokens returns the current access and refresh tokens.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access, c.refresh
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.access, c.refresh = s.AccessToken, s.RefreshToken
	c.mu.Unlock()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	authed bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	refreshed := false
	for retry := 0; ; retry++ {
		usedToken := ""
		if r.authed {
			usedToken, _ = c.Tokens()
			if usedToken == "" {
				return ErrNotAuthenticated
			}
		}

		status, env, err := c.send(ctx, r, payload, usedToken)
		if err != nil {
			return err
		}

		if status == http.StatusUnauthorized && r.authed && !refreshed {
			refreshed = true
			if rErr := c.refreshSession(ctx, usedToken); rErr != nil {
				return apiError(status, env)
			}
			retry--
			continue
		}
		if status == http.StatusServiceUnavailable && retry+1 < c.retry.Attempts() {
			if err := c.sleep(ctx, c.retry.NextDelay(retry)); err != nil {
				return err
			}
			continue
		}
		if status >= 300 || !env.Success {
			return apiError(status, env)
		}
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

func (c *Client) send(ctx context.Context, r request, payload []byte, token string) (int, envelope, error) {
	var env envelope

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return 0, env, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, env, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, env, fmt.Errorf("read response: %w", err)
	}
	if len(raw) > 0 {
		// non-JSON bodies surface as an APIError built from the status
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env, nil
}

func apiError(status int, env envelope) error {
	if env.Error != nil {
		e := *env.Error
		e.Status = status
		return &e
	}
	return &APIError{Status: status, Code: "error.http", Message: http.StatusText(status)}
}

// refreshSession rotates the refresh token once for every caller that saw the
// same stale access token.
func (c *Client) refreshSession(ctx context.Context, stale string) error {
	_, err, _ := c.refreshes.Do("refresh", func() (interface{}, error) {
		current, refresh := c.Tokens()
		if current != stale {
			return nil, nil
		}
		if refresh == "" {
			return nil, ErrNotAuthenticated
		}
		var s Session
		if err := c.do(ctx, request{
			method: http.MethodPost,
			path:   "/api/auth/refresh",
			body:   map[string]string{"refreshToken": refresh},
		}, &s); err != nil {
			return nil, err
		}
		c.setSession(&s)
		return nil, nil
	})
	return err
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*Session, error) {
	var s Session
	if err := c.do(ctx, request{method: http.MethodPost, path: path, body: body}, &s); err != nil {
		return nil, err
	}
	c.setSession(&s)
	return &s, nil
}

func (c *Client) Register(ctx context.Context, email, name, password string) (*Session, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{
		"email": email, "name": name, "password": password,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	})
}

func (c *Client) SearchRooms(ctx context.Context, q RoomQuery) (*RoomList, error) {
	v := url.Values{}
	setQuery(v, "location", q.Location)
	setQuery(v, "maxPrice", q.MaxPrice)
	setQuery(v, "status", q.Status)
	setQuery(v, "availableFrom", q.AvailableFrom)
	setQuery(v, "availableTo", q.AvailableTo)
	setQueryInt(v, "minCapacity", q.MinCapacity)
	setQueryInt(v, "page", q.Page)
	setQueryInt(v, "pageSize", q.PageSize)

	var out RoomList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/rooms", query: v}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckAvailability(ctx context.Context, roomID uint, dateFrom, dateTo string) (*Availability, error) {
	v := url.Values{"dateFrom": {dateFrom}, "dateTo": {dateTo}}
	var out Availability
	path := fmt.Sprintf("/api/rooms/%d/availability", roomID)
	if err := c.do(ctx, request{method: http.MethodGet, path: path, query: v}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBooking(ctx context.Context, roomID uint, checkIn, checkOut string) (*Booking, error) {
	var out Booking
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/bookings",
		body: map[string]any{
			"roomId":       roomID,
			"checkInDate":  checkIn,
			"checkOutDate": checkOut,
		},
		authed: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelBooking cancels one of the caller's bookings. reason may be nil.
func (c *Client) CancelBooking(ctx context.Context, bookingID uint, reason *string) (*Booking, error) {
	var out Booking
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/bookings/%d/cancel", bookingID),
		body:   map[string]*string{"reason": reason},
		authed: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBookings(ctx context.Context, status string, page, pageSize int) (*BookingList, error) {
	v := url.Values{}
	setQuery(v, "status", status)
	setQueryInt(v, "page", page)
	setQueryInt(v, "pageSize", pageSize)

	var out BookingList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/bookings", query: v, authed: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func setQuery(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setQueryInt(v url.Values, key string, value int) {
	if value != 0 {
		v.Set(key, strconv.Itoa(value))
	}
}
