// Package identity talks to the hosted identity provider: a password-grant
// token exchange and a profile role lookup, both over its REST surface.
package identity

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

	"github.com/sony/gobreaker"

	"github.com/muurk/noisepanel/internal/session"
	"github.com/muurk/noisepanel/internal/version"
)

const (
	// DefaultTimeout bounds each identity request
	DefaultTimeout = 8 * time.Second

	tokenPath   = "/auth/v1/token"
	profilePath = "/rest/v1/profiles"
)

// ErrNotConfigured is returned when no identity URL or key is set
var ErrNotConfigured = errors.New("identity provider not configured")

// Error is a failure reported by, or on the way to, the identity provider
type Error struct {
	Op         string // "login" or "role"
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Client is safe for concurrent use
type Client struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client

	// roleBreaker sheds role lookups while the provider keeps failing
	roleBreaker *gobreaker.CircuitBreaker
}

// NewClient creates an identity client for a project URL and its public anon key
func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AnonKey:    anonKey,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		roleBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "identity-role",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				// A definite answer (even "forbidden") means the provider is healthy
				var idErr *Error
				if errors.As(err, &idErr) && idErr.StatusCode >= 400 && idErr.StatusCode < 500 {
					return true
				}
				return err == nil
			},
		}),
	}
}

// Configured reports whether the client has somewhere to send requests
func (c *Client) Configured() bool {
	return c.BaseURL != "" && c.AnonKey != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

// Login exchanges an email and password for an access token and user ID
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	if !c.Configured() {
		return session.Session{}, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return session.Session{}, &Error{Op: "login", Message: "failed to encode request", Err: err}
	}

	target := c.BaseURL + tokenPath + "?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return session.Session{}, &Error{Op: "login", Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.AnonKey)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return session.Session{}, &Error{Op: "login", Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return session.Session{}, &Error{Op: "login", Message: "failed to read response", Err: err}
	}

	var tr tokenResponse
	decodeErr := json.Unmarshal(data, &tr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := "login_failed"
		if decodeErr == nil {
			switch {
			case tr.ErrorDescription != "":
				msg = tr.ErrorDescription
			case tr.Msg != "":
				msg = tr.Msg
			}
		}
		return session.Session{}, &Error{Op: "login", StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return session.Session{}, &Error{Op: "login", Message: "failed to parse response", Err: decodeErr}
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return session.Session{}, &Error{Op: "login", Message: "response missing token or user id"}
	}

	return session.Session{AccessToken: tr.AccessToken, UserID: tr.User.ID}, nil
}

// Role looks up the profile role for a session. An empty role with a nil error
// means the provider answered but the profile has no role.
func (c *Client) Role(ctx context.Context, s session.Session) (string, error) {
	if !s.HasCredentials() {
		return "", nil
	}
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	res, err := c.roleBreaker.Execute(func() (any, error) {
		return c.fetchRole(ctx, s)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &Error{Op: "role", Message: "identity provider unavailable", Err: err}
		}
		return "", err
	}
	return res.(string), nil
}

func (c *Client) fetchRole(ctx context.Context, s session.Session) (string, error) {
	q := url.Values{}
	q.Set("select", "role")
	q.Set("id", "eq."+s.UserID)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+profilePath+"?"+q.Encode(), nil)
	if err != nil {
		return "", &Error{Op: "role", Message: "failed to create request", Err: err}
	}
	req.Header.Set("apikey", c.AnonKey)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &Error{Op: "role", Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Op: "role", StatusCode: resp.StatusCode, Message: "lookup rejected"}
	}

	var rows []struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rows); err != nil {
		return "", &Error{Op: "role", Message: "failed to parse response", Err: err}
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Role, nil
}
