package deviceapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// VerifyOptions configures how a command's effect is confirmed from /status
type VerifyOptions struct {
	// MaxRetries is the maximum number of extra status reads
	// Default: 5
	MaxRetries int

	// InitialDelay gives the device time to apply a command before the first read
	// Default: 500ms
	InitialDelay time.Duration

	// RetryDelay is the first delay between reads; it doubles up to MaxRetryDelay
	// Default: 500ms
	RetryDelay time.Duration

	// MaxRetryDelay caps the delay between reads
	// Default: 4s
	MaxRetryDelay time.Duration
}

// DefaultVerifyOptions returns sensible defaults for verification
func DefaultVerifyOptions() *VerifyOptions {
	return &VerifyOptions{
		MaxRetries:    5,
		InitialDelay:  500 * time.Millisecond,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 4 * time.Second,
	}
}

// Expectation inspects a status and returns a mismatch description, or "" when satisfied
type Expectation func(*DeviceStatus) string

// ExpectInt expects an integer status field to equal want
func ExpectInt(name string, want int, get func(*DeviceStatus) int) Expectation {
	return func(st *DeviceStatus) string {
		if got := get(st); got != want {
			return fmt.Sprintf("%s: expected %d, got %d", name, want, got)
		}
		return ""
	}
}

// ExpectBool expects a boolean status field to equal want
func ExpectBool(name string, want bool, get func(*DeviceStatus) bool) Expectation {
	return func(st *DeviceStatus) string {
		if got := get(st); got != want {
			return fmt.Sprintf("%s: expected %v, got %v", name, want, got)
		}
		return ""
	}
}

// ExpectConnected expects a station link with an address
func ExpectConnected() Expectation {
	return func(st *DeviceStatus) string {
		if !st.Connected {
			return "device not connected yet"
		}
		if st.IP == "" {
			return "device connected but has no address yet"
		}
		return ""
	}
}

// VerifyResult contains the outcome of a verification
type VerifyResult struct {
	Success    bool
	Attempts   int
	Status     *DeviceStatus
	Mismatches []string
	Error      error
}

// Verify reads /status until every expectation holds or the retries run out
func (c *Client) Verify(ctx context.Context, opts *VerifyOptions, expect ...Expectation) *VerifyResult {
	if opts == nil {
		opts = DefaultVerifyOptions()
	}

	result := &VerifyResult{}

	select {
	case <-ctx.Done():
		result.Error = ctx.Err()
		return result
	case <-time.After(opts.InitialDelay):
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.RetryDelay
	bo.MaxInterval = opts.MaxRetryDelay
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0

	op := func() error {
		result.Attempts++

		st, err := c.Status(ctx)
		if err != nil {
			return fmt.Errorf("attempt %d: failed to read status: %w", result.Attempts, err)
		}
		result.Status = st

		result.Mismatches = result.Mismatches[:0]
		for _, e := range expect {
			if m := e(st); m != "" {
				result.Mismatches = append(result.Mismatches, m)
			}
		}
		if len(result.Mismatches) > 0 {
			return fmt.Errorf("attempt %d: %s", result.Attempts, formatMismatches(result.Mismatches))
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(opts.MaxRetries)), ctx))
	if err != nil {
		result.Error = fmt.Errorf("verification failed after %d attempts: %w", result.Attempts, err)
		return result
	}

	result.Success = true
	return result
}

func formatMismatches(mismatches []string) string {
	if len(mismatches) == 1 {
		return mismatches[0]
	}
	return strings.Join(mismatches, "; ")
}
