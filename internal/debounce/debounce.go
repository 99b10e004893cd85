// Package debounce coalesces rapid control changes into one request per group.
//
// Each group (volume, LED brightness, status colors, ...) owns one timer. A new
// Schedule for the group replaces the pending parameters and re-arms the timer,
// so only the last parameter set inside the window is sent. At most one
// request per group is in flight; a timer that fires while its group is busy
// waits for the running request and then sends the latest parameters once.
package debounce

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/logging"
)

// FireFunc sends one coalesced request. Failures are reported, never retried.
type FireFunc func(ctx context.Context, group string, params url.Values) error

// ResultFunc observes the outcome of every fired request
type ResultFunc func(group string, params url.Values, err error)

// Timer is the subset of *time.Timer the scheduler needs
type Timer interface {
	Stop() bool
}

// AfterFunc arms a timer
type AfterFunc func(d time.Duration, f func()) Timer

type group struct {
	gen      uint64
	timer    Timer
	pending  url.Values
	inFlight bool
	deferred bool
}

// Scheduler is safe for concurrent use
type Scheduler struct {
	mu     sync.Mutex
	groups map[string]*group
	closed bool

	fire     FireFunc
	onResult ResultFunc
	after    AfterFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithAfterFunc replaces the timer implementation
func WithAfterFunc(after AfterFunc) Option {
	return func(s *Scheduler) { s.after = after }
}

// WithResult registers a callback for fired requests
func WithResult(fn ResultFunc) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// New creates a Scheduler that sends requests through fire
func New(fire FireFunc, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		groups: make(map[string]*group),
		fire:   fire,
		after: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule replaces the group's pending parameters and re-arms its timer.
// A delay of zero sends as soon as the group is idle.
func (s *Scheduler) Schedule(name string, params url.Values, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	g, ok := s.groups[name]
	if !ok {
		g = &group{}
		s.groups[name] = g
	}

	if g.timer != nil && g.timer.Stop() {
		logging.Debug("Debounced command superseded",
			zap.String("group", name),
			zap.String("params", g.pending.Encode()),
		)
	}

	g.gen++
	g.pending = cloneValues(params)
	g.deferred = false

	gen := g.gen
	g.timer = s.after(delay, func() { s.onTimer(name, gen) })
}

// Pending reports whether the group has parameters waiting to be sent
func (s *Scheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	return ok && g.pending != nil
}

// InFlight reports whether a request for the group is running
func (s *Scheduler) InFlight(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	return ok && g.inFlight
}

// Close stops every timer, drops pending parameters, and waits for running requests
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for _, g := range s.groups {
		if g.timer != nil {
			g.timer.Stop()
		}
		g.pending = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) onTimer(name string, gen uint64) {
	s.mu.Lock()
	g, ok := s.groups[name]
	if !ok || s.closed || g.gen != gen || g.pending == nil {
		// Superseded by a newer Schedule whose own timer will send
		s.mu.Unlock()
		return
	}
	if g.inFlight {
		g.deferred = true
		s.mu.Unlock()
		return
	}

	params := g.pending
	g.pending = nil
	g.inFlight = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.run(name, g, params)
}

func (s *Scheduler) run(name string, g *group, params url.Values) {
	defer s.wg.Done()

	for {
		err := s.fire(s.ctx, name, params)
		if s.onResult != nil {
			s.onResult(name, params, err)
		}

		s.mu.Lock()
		if !g.deferred || g.pending == nil || s.closed {
			g.inFlight = false
			g.deferred = false
			s.mu.Unlock()
			return
		}
		// The group's timer fired while we were busy: send its parameters now
		params = g.pending
		g.pending = nil
		g.deferred = false
		s.mu.Unlock()
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
