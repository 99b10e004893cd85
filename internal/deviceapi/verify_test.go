package deviceapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastVerifyOptions() *VerifyOptions {
	return &VerifyOptions{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
	}
}

func TestDefaultVerifyOptions(t *testing.T) {
	opts := DefaultVerifyOptions()

	if opts.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", opts.MaxRetries)
	}
	if opts.InitialDelay != 500*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 500ms", opts.InitialDelay)
	}
}

func TestVerify_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mockStatusResponse))
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	res := client.Verify(context.Background(), fastVerifyOptions(),
		ExpectInt("yellow", 55, func(s *DeviceStatus) int { return s.Yellow }),
		ExpectBool("speaker", true, func(s *DeviceStatus) bool { return s.Speaker }))

	if !res.Success {
		t.Fatalf("Verify() failed: %v", res.Error)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestVerify_EventualSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		connected := n >= 3
		fmt.Fprintf(w, `{"connected":%v,"ip":"10.0.0.9"}`, connected)
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	res := client.Verify(context.Background(), fastVerifyOptions(), ExpectConnected())

	if !res.Success {
		t.Fatalf("Verify() failed: %v", res.Error)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if res.Status.IP != "10.0.0.9" {
		t.Errorf("Status.IP = %s", res.Status.IP)
	}
}

func TestVerify_Mismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mockStatusResponse))
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	res := client.Verify(context.Background(), fastVerifyOptions(),
		ExpectInt("volume", 20, func(s *DeviceStatus) int { return s.Volume }))

	if res.Success {
		t.Fatal("Verify() should fail on mismatch")
	}
	if res.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4 (1 + 3 retries)", res.Attempts)
	}
	if len(res.Mismatches) != 1 || res.Mismatches[0] != "volume: expected 20, got 12" {
		t.Errorf("Mismatches = %v", res.Mismatches)
	}
}

func TestVerify_ContextCancelled(t *testing.T) {
	client := NewClientWithURL("http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := client.Verify(ctx, fastVerifyOptions(), ExpectConnected())

	if res.Success || res.Error == nil {
		t.Error("Verify() should fail on cancelled context")
	}
}

func TestFormatMismatches(t *testing.T) {
	if got := formatMismatches([]string{"a"}); got != "a" {
		t.Errorf("got %q", got)
	}
	if got := formatMismatches([]string{"a", "b"}); got != "a; b" {
		t.Errorf("got %q", got)
	}
}
