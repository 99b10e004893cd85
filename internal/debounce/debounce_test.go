package debounce

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) After(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

// fireAll runs every live timer in creation order
func (ft *fakeTimers) fireAll() {
	ft.mu.Lock()
	live := make([]*fakeTimer, 0, len(ft.timers))
	for _, t := range ft.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			live = append(live, t)
		}
	}
	ft.mu.Unlock()

	for _, t := range live {
		t.f()
	}
}

type recorder struct {
	mu    sync.Mutex
	calls []url.Values
	err   error
}

func (r *recorder) fire(_ context.Context, _ string, params url.Values) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, params)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestSchedule_CoalescesToLastParams(t *testing.T) {
	ft := &fakeTimers{}
	rec := &recorder{}
	s := New(rec.fire, WithAfterFunc(ft.After))

	for i := 1; i <= 5; i++ {
		s.Schedule("volume", url.Values{"vol": {string(rune('0' + i))}}, 120*time.Millisecond)
	}
	ft.fireAll()

	if rec.count() != 1 {
		t.Fatalf("fired %d requests, want 1", rec.count())
	}
	if got := rec.calls[0].Get("vol"); got != "5" {
		t.Errorf("vol = %s, want 5 (last write)", got)
	}
	if s.Pending("volume") {
		t.Error("nothing should be pending after firing")
	}
}

func TestSchedule_GroupsAreIndependent(t *testing.T) {
	ft := &fakeTimers{}
	rec := &recorder{}
	s := New(rec.fire, WithAfterFunc(ft.After))

	s.Schedule("volume", url.Values{"vol": {"3"}}, 120*time.Millisecond)
	s.Schedule("led", url.Values{"ng": {"9"}}, 120*time.Millisecond)
	ft.fireAll()

	if rec.count() != 2 {
		t.Errorf("fired %d requests, want 2", rec.count())
	}
}

func TestSchedule_UsesRequestedDelay(t *testing.T) {
	ft := &fakeTimers{}
	s := New((&recorder{}).fire, WithAfterFunc(ft.After))

	s.Schedule("rgb", url.Values{}, 160*time.Millisecond)

	if ft.timers[0].delay != 160*time.Millisecond {
		t.Errorf("delay = %v, want 160ms", ft.timers[0].delay)
	}
}

func TestSchedule_CopiesParams(t *testing.T) {
	ft := &fakeTimers{}
	rec := &recorder{}
	s := New(rec.fire, WithAfterFunc(ft.After))

	p := url.Values{"vol": {"1"}}
	s.Schedule("volume", p, 0)
	p.Set("vol", "29")
	ft.fireAll()

	if got := rec.calls[0].Get("vol"); got != "1" {
		t.Errorf("vol = %s, want 1", got)
	}
}

func TestSchedule_DefersWhileInFlight(t *testing.T) {
	ft := &fakeTimers{}
	release := make(chan struct{})
	started := make(chan struct{}, 4)

	var mu sync.Mutex
	var sent []string
	fire := func(_ context.Context, _ string, p url.Values) error {
		mu.Lock()
		sent = append(sent, p.Get("vol"))
		first := len(sent) == 1
		mu.Unlock()
		started <- struct{}{}
		if first {
			<-release
		}
		return nil
	}
	s := New(fire, WithAfterFunc(ft.After))

	s.Schedule("volume", url.Values{"vol": {"1"}}, time.Millisecond)
	go ft.fireAll()
	<-started

	if !s.InFlight("volume") {
		t.Fatal("first request should be in flight")
	}

	// Two more edits while the first request is running; their timer fires too
	s.Schedule("volume", url.Values{"vol": {"2"}}, time.Millisecond)
	s.Schedule("volume", url.Values{"vol": {"3"}}, time.Millisecond)
	ft.fireAll()

	mu.Lock()
	if len(sent) != 1 {
		t.Errorf("sent %v while first request in flight, want only the first", sent)
	}
	mu.Unlock()

	close(release)
	<-started
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 2 || sent[1] != "3" {
		t.Errorf("sent = %v, want [1 3]", sent)
	}
}

func TestSchedule_FailureReportedNotRetried(t *testing.T) {
	ft := &fakeTimers{}
	rec := &recorder{err: errors.New("device unreachable")}

	var gotErr error
	s := New(rec.fire, WithAfterFunc(ft.After), WithResult(func(_ string, _ url.Values, err error) {
		gotErr = err
	}))

	s.Schedule("led", url.Values{"st": {"40"}}, 0)
	ft.fireAll()
	ft.fireAll()

	if rec.count() != 1 {
		t.Errorf("fired %d requests, want 1 (no retry)", rec.count())
	}
	if gotErr == nil {
		t.Error("result callback should receive the error")
	}
}

func TestClose_DropsPending(t *testing.T) {
	ft := &fakeTimers{}
	rec := &recorder{}
	s := New(rec.fire, WithAfterFunc(ft.After))

	s.Schedule("volume", url.Values{"vol": {"4"}}, time.Second)
	s.Close()
	ft.fireAll()
	s.Schedule("volume", url.Values{"vol": {"5"}}, time.Second)
	ft.fireAll()

	if rec.count() != 0 {
		t.Errorf("fired %d requests after Close, want 0", rec.count())
	}
}

func TestSchedule_RealTimers(t *testing.T) {
	done := make(chan url.Values, 1)
	s := New(func(_ context.Context, _ string, p url.Values) error {
		done <- p
		return nil
	})
	defer s.Close()

	s.Schedule("volume", url.Values{"vol": {"1"}}, 20*time.Millisecond)
	s.Schedule("volume", url.Values{"vol": {"2"}}, 20*time.Millisecond)

	select {
	case p := <-done:
		if p.Get("vol") != "2" {
			t.Errorf("vol = %s, want 2", p.Get("vol"))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced request never fired")
	}

	select {
	case p := <-done:
		t.Errorf("unexpected second request %v", p)
	case <-time.After(100 * time.Millisecond):
	}
}
