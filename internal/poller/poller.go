// Package poller runs the panel's periodic fetch tasks.
//
// Each task has its own cadence and runs isolated from the others: a failing or
// slow task never stops the loop, and a tick is skipped while the previous run
// of the same task is still in flight.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/logging"
)

// Default cadences
const (
	DefaultStatusInterval = 2500 * time.Millisecond
	DefaultLogInterval    = 800 * time.Millisecond
)

// TaskFunc performs one poll
type TaskFunc func(ctx context.Context) error

// Observer sees the outcome of every run; skipped ticks are reported with skipped=true
type Observer func(task string, elapsed time.Duration, err error, skipped bool)

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	inFlight bool
}

// Poller is safe for concurrent use
type Poller struct {
	mu       sync.Mutex
	tasks    map[string]*task
	order    []string
	observer Observer
	wg       sync.WaitGroup
	ctx      context.Context
}

// New creates an empty Poller
func New() *Poller {
	return &Poller{tasks: make(map[string]*task), ctx: context.Background()}
}

// Observe registers a callback for task outcomes
func (p *Poller) Observe(fn Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = fn
}

// Add registers a task; it must be called before Run
func (p *Poller) Add(name string, interval time.Duration, fn TaskFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tasks[name]; !ok {
		p.order = append(p.order, name)
	}
	p.tasks[name] = &task{name: name, interval: interval, fn: fn}
}

// Run starts every task immediately and then on its cadence until ctx is done.
// It returns after all running tasks have finished.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	p.ctx = ctx
	names := append([]string(nil), p.order...)
	p.mu.Unlock()

	var loops sync.WaitGroup
	for _, name := range names {
		p.mu.Lock()
		t := p.tasks[name]
		p.mu.Unlock()

		loops.Add(1)
		go func(t *task) {
			defer loops.Done()
			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()

			p.Trigger(t.name)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.Trigger(t.name)
				}
			}
		}(t)
	}

	<-ctx.Done()
	loops.Wait()
	for _, name := range names {
		if p.InFlight(name) {
			logging.Debug("Waiting for poll task", zap.String("task", name))
		}
	}
	p.wg.Wait()
	return nil
}

// Trigger starts one run of a task now unless it is already in flight. It
// reports whether a run was started.
func (p *Poller) Trigger(name string) bool {
	p.mu.Lock()
	t, ok := p.tasks[name]
	if !ok {
		p.mu.Unlock()
		return false
	}
	if t.inFlight {
		obs := p.observer
		p.mu.Unlock()
		if obs != nil {
			obs(name, 0, nil, true)
		}
		return false
	}
	if p.ctx.Err() != nil {
		p.mu.Unlock()
		return false
	}
	t.inFlight = true
	ctx := p.ctx
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(ctx, t)
	return true
}

// RunOnce runs a task synchronously, still honoring the in-flight rule
func (p *Poller) RunOnce(ctx context.Context, name string) error {
	p.mu.Lock()
	t, ok := p.tasks[name]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("unknown poll task %q", name)
	}
	if t.inFlight {
		p.mu.Unlock()
		return nil
	}
	t.inFlight = true
	p.wg.Add(1)
	p.mu.Unlock()

	return p.run(ctx, t)
}

// InFlight reports whether a task is running
func (p *Poller) InFlight(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[name]
	return ok && t.inFlight
}

func (p *Poller) run(ctx context.Context, t *task) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll task %s panicked: %v", t.name, r)
			logging.Error("Poll task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}

		elapsed := time.Since(start)
		logging.LogPoll(t.name, elapsed, err)

		p.mu.Lock()
		t.inFlight = false
		obs := p.observer
		p.mu.Unlock()
		p.wg.Done()

		if obs != nil {
			obs(t.name, elapsed, err, false)
		}
	}()

	return t.fn(ctx)
}
