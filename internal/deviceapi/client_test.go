package deviceapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestNewClient(t *testing.T) {
	client := NewClient("192.168.4.1", 80)

	if client.BaseURL != "http://192.168.4.1:80" {
		t.Errorf("BaseURL = %s, want http://192.168.4.1:80", client.BaseURL)
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient should not be nil")
	}
	if client.BreakerState() != gobreaker.StateClosed {
		t.Errorf("BreakerState() = %v, want closed", client.BreakerState())
	}
}

func TestNewClient_DefaultPort(t *testing.T) {
	client := NewClient("noise.local", 0)

	if client.BaseURL != "http://noise.local:80" {
		t.Errorf("BaseURL = %s, want http://noise.local:80", client.BaseURL)
	}
}

func TestNewClientWithURL_TrimsSlash(t *testing.T) {
	client := NewClientWithURL("http://192.168.4.1:8080/")

	if client.BaseURL != "http://192.168.4.1:8080" {
		t.Errorf("BaseURL = %s, want http://192.168.4.1:8080", client.BaseURL)
	}
}

func TestStatus_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathStatus {
			t.Errorf("Path = %s, want %s", r.URL.Path, PathStatus)
		}
		w.Write([]byte(mockStatusResponse + "\x00\x00"))
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	st, err := client.Status(context.Background())

	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.SSID != "HomeNet" {
		t.Errorf("SSID = %s, want HomeNet", st.SSID)
	}
}

func TestStatusOrDefault_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	st, err := client.StatusOrDefault(context.Background())

	if err == nil {
		t.Error("StatusOrDefault() should return the error")
	}
	if !IsHTTPError(err) {
		t.Errorf("error should be HTTP error, got %v", err)
	}
	if st == nil || *st != *DefaultStatus() {
		t.Errorf("StatusOrDefault() = %+v, want defaults", st)
	}
}

func TestStatus_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("rebooting"))
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	_, err := client.Status(context.Background())

	if !IsParseError(err) {
		t.Errorf("Status() error should be parse error, got %v", err)
	}
}

func TestStatus_BreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	client.SetBreaker(2, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := client.Status(context.Background()); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := client.Status(context.Background())
	devErr, ok := asDeviceError(err)
	if !ok || devErr.Type != ErrTypeUnavailable {
		t.Errorf("third Status() error = %v, want unavailable", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("device hit %d times, want 2", got)
	}
	if client.BreakerState() != gobreaker.StateOpen {
		t.Errorf("BreakerState() = %v, want open", client.BreakerState())
	}
}

func TestScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ssid":"HomeNet","rssi":-50,"secure":true}]`))
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	nets, err := client.Scan(context.Background())

	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(nets) != 1 || nets[0].SSID != "HomeNet" || !nets[0].Secure {
		t.Errorf("Scan() = %+v", nets)
	}
}

func TestEventsAndMonitor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathEvents:
			w.Write([]byte("2024-01-01 10:00:00 boot\n"))
		case PathMonitor:
			w.Write([]byte("dB: 42.1\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)

	events, err := client.Events(context.Background())
	if err != nil || events != "2024-01-01 10:00:00 boot\n" {
		t.Errorf("Events() = %q, %v", events, err)
	}

	monitor, err := client.Monitor(context.Background())
	if err != nil || monitor != "dB: 42.1\n" {
		t.Errorf("Monitor() = %q, %v", monitor, err)
	}
}

func TestSaveWiFi(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %s", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("ssid") != "Home Net" || r.PostForm.Get("password") != "p&ss=1" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	if err := client.SaveWiFi(context.Background(), "Home Net", "p&ss=1"); err != nil {
		t.Errorf("SaveWiFi() error = %v", err)
	}
}

func TestCommands_Paths(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.URL.RequestURI())
		mu.Unlock()
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	ctx := context.Background()
	ten := 10

	_ = client.SetThresholds(ctx, 50, 90)
	_ = client.SetSpeaker(ctx, true)
	_ = client.PlayTest(ctx, 2)
	_ = client.StopPlayback(ctx)
	_ = client.SetVolume(ctx, 7)
	_ = client.SetLedBrightness(ctx, LedBrightness{Yellow: &ten})
	_ = client.SetMic(ctx, false)
	_ = client.SetDbLogConfig(ctx, DbLogConfig{SamplePeriodMs: 100, ThresholdTenths: 10, HeartbeatMs: 5000, UploadPeriodMs: 60000})
	_ = client.SetStatusRgb(ctx, map[LedState]int{LedWiFi: 0x00FF00})
	_ = client.SetStatusColors(ctx, map[LedState]int{LedBoot: 3})
	_ = client.Disconnect(ctx)

	mu.Lock()
	defer mu.Unlock()

	want := []string{
		"/setThresholds?red=90&yellow=50",
		"/setSpeaker?enabled=1",
		"/playTest002",
		"/stopMp3",
		"/setMp3Volume?vol=7",
		"/setLedBrightness?ny=10",
		"/setMicEnabled?enabled=0",
		"/setDbLogConfig?hb=5000&samp=100&thr10=10&up=60000",
		"/setStatusRgb?wifi=%2300ff00",
		"/setStatusColors?boot=3",
		"/disconnect",
	}

	if len(got) != len(want) {
		t.Fatalf("got %d requests %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCommands_ValidationRejectsWithoutRequest(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	ctx := context.Background()
	big := 300

	errs := []error{
		client.SetThresholds(ctx, 101, 50),
		client.SetVolume(ctx, 31),
		client.PlayTest(ctx, 4),
		client.SetLedBrightness(ctx, LedBrightness{Red: &big}),
		client.SetLedBrightness(ctx, LedBrightness{}),
		client.SetStatusColors(ctx, map[LedState]int{LedOff: 8}),
		client.SetDbLogConfig(ctx, DbLogConfig{SamplePeriodMs: 10, ThresholdTenths: 10, HeartbeatMs: 8000, UploadPeriodMs: 60000}),
	}

	for i, err := range errs {
		if !IsValidationError(err) {
			t.Errorf("call %d: error = %v, want validation error", i, err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("device hit %d times, want 0", n)
	}
}

func TestSend_NetworkFailure(t *testing.T) {
	client := NewClient("192.0.2.1", 80) // TEST-NET-1 (guaranteed unreachable)
	client.SetTimeout(100 * time.Millisecond)

	err := client.Send(context.Background(), PathStopMp3, nil)

	if err == nil {
		t.Fatal("Send() should return error for network failure")
	}
	if !IsNetworkError(err) {
		t.Errorf("Send() error should be network error, got %v", err)
	}
}
