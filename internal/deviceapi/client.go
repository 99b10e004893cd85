package deviceapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/muurk/noisepanel/internal/version"
)

const (
	// DefaultPort is the port the device web server listens on
	DefaultPort = 80

	// DefaultTimeout bounds every request; the device answers from a single-threaded loop
	DefaultTimeout = 5 * time.Second

	// DefaultBreakerFailures is the number of consecutive status failures that opens the breaker
	DefaultBreakerFailures = 5

	// DefaultBreakerOpen is how long the status breaker stays open before probing again
	DefaultBreakerOpen = 10 * time.Second

	// maxBodySize caps how much of a text endpoint is read
	maxBodySize = 1 << 20
)

// Device REST paths
const (
	PathStatus     = "/status"
	PathScan       = "/scan"
	PathEvents     = "/events"
	PathMonitor    = "/monitor"
	PathSave       = "/save"
	PathDisconnect = "/disconnect"
)

// Client talks to the noise monitor's local REST API.
//
// Commands are fire-and-forget: a 2xx answer only means the device accepted the
// request, and the effect is observed on the next status read.
type Client struct {
	// BaseURL is the base URL for the device (e.g., "http://192.168.4.1")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// breaker guards the status path so a dead device is not hammered every poll
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a client for a device at host:port
func NewClient(host string, port int) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", host, port))
}

// NewClientWithURL creates a client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		breaker:    newBreaker("device-status", DefaultBreakerFailures, DefaultBreakerOpen),
	}
}

func newBreaker(name string, fails uint32, open time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		IsSuccessful: func(err error) bool {
			// A malformed document still proves the device is alive
			return err == nil || IsParseError(err)
		},
	})
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetBreaker replaces the status circuit breaker settings
func (c *Client) SetBreaker(failures uint32, open time.Duration) {
	c.breaker = newBreaker("device-status", failures, open)
}

// BreakerState reports the state of the status circuit breaker
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Status reads and decodes GET /status
func (c *Client) Status(ctx context.Context) (*DeviceStatus, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		body, err := c.get(ctx, PathStatus, nil)
		if err != nil {
			return nil, err
		}
		st, err := ParseStatus(body)
		if err != nil {
			return nil, NewParseError(PathStatus, "failed to parse status", err)
		}
		return st, nil
	})
	if err != nil {
		if _, ok := asDeviceError(err); !ok {
			err = NewNetworkError(PathStatus, "status unavailable", err)
		}
		return nil, err
	}
	return res.(*DeviceStatus), nil
}

// StatusOrDefault returns the device status, or a fully populated DefaultStatus
// together with the error when the read fails
func (c *Client) StatusOrDefault(ctx context.Context) (*DeviceStatus, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return DefaultStatus(), err
	}
	return st, nil
}

// Scan reads the device's most recent Wi-Fi scan. An empty list is not an
// error; the radio scan runs asynchronously and may not be ready yet.
func (c *Client) Scan(ctx context.Context) ([]NetworkEntry, error) {
	body, err := c.get(ctx, PathScan, nil)
	if err != nil {
		return nil, err
	}
	nets, err := ParseNetworks(body)
	if err != nil {
		return nil, NewParseError(PathScan, "failed to parse scan result", err)
	}
	return nets, nil
}

// Events returns the raw event log text
func (c *Client) Events(ctx context.Context) (string, error) {
	body, err := c.get(ctx, PathEvents, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Monitor returns the raw live noise monitor text
func (c *Client) Monitor(ctx context.Context) (string, error) {
	body, err := c.get(ctx, PathMonitor, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Send issues a GET command with query parameters and discards the body
func (c *Client) Send(ctx context.Context, path string, params url.Values) error {
	_, err := c.get(ctx, path, params)
	return err
}

// SaveWiFi stores station credentials on the device; it reconnects on its own
func (c *Client) SaveWiFi(ctx context.Context, ssid, password string) error {
	form := url.Values{}
	form.Set("ssid", ssid)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+PathSave, strings.NewReader(form.Encode()))
	if err != nil {
		return NewNetworkError(PathSave, "failed to create POST request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	_, err = c.do(req, PathSave)
	return err
}

// Disconnect drops the station link; the device falls back to its setup AP
func (c *Client) Disconnect(ctx context.Context) error {
	return c.Send(ctx, PathDisconnect, nil)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	target := c.BaseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, NewNetworkError(path, "failed to create GET request", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("User-Agent", version.UserAgent())

	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(path, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, NewNetworkError(path, "failed to read response body", err)
	}
	return body, nil
}
