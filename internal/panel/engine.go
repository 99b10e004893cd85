// Package panel is the reconciliation engine behind every noisepanel front end.
//
// The Engine owns the application state: the last polled device status, the
// operator's field values, the view state and the provisioning flow. Polled
// status is merged into the field values through the edit guard; operator
// edits flow out through the debounced command dispatcher. Network calls never
// hold the engine lock.
package panel

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/debounce"
	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/dispatch"
	"github.com/muurk/noisepanel/internal/editguard"
	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/metrics"
	"github.com/muurk/noisepanel/internal/notify"
	"github.com/muurk/noisepanel/internal/poller"
	"github.com/muurk/noisepanel/internal/provision"
	"github.com/muurk/noisepanel/internal/session"
	"github.com/muurk/noisepanel/internal/viewstate"
)

// Poll task names
const (
	TaskStatus = "status"
	TaskLogs   = "logs"
)

// Follow-up refresh delays after commands whose effect takes a moment to show
const (
	SpeakerRefreshDelay    = 600 * time.Millisecond
	DisconnectRefreshDelay = 900 * time.Millisecond
	WiFiSaveRefreshDelay   = 1200 * time.Millisecond
)

const maxNotices = 10

// Control intent errors
var (
	// ErrDisabled is returned for an action on a control the device state disables
	ErrDisabled = errors.New("control disabled")

	// ErrNotAuthorized is returned for a control intent without an admin session
	ErrNotAuthorized = errors.New("admin session required")
)

// Device is the device API the engine drives
type Device interface {
	Status(ctx context.Context) (*deviceapi.DeviceStatus, error)
	StatusOrDefault(ctx context.Context) (*deviceapi.DeviceStatus, error)
	Scan(ctx context.Context) ([]deviceapi.NetworkEntry, error)
	Events(ctx context.Context) (string, error)
	Monitor(ctx context.Context) (string, error)
	Send(ctx context.Context, path string, params url.Values) error
	SaveWiFi(ctx context.Context, ssid, password string) error
	Disconnect(ctx context.Context) error
	SetSpeaker(ctx context.Context, on bool) error
	PlayTest(ctx context.Context, n int) error
	StopPlayback(ctx context.Context) error
}

// Identity is the identity provider the engine logs in with
type Identity interface {
	Login(ctx context.Context, email, password string) (session.Session, error)
	Role(ctx context.Context, s session.Session) (string, error)
}

// Options configures an Engine
type Options struct {
	StatusInterval time.Duration
	LogInterval    time.Duration
	QuietDelay     time.Duration
	RecencyWindow  time.Duration

	Notifier notify.Sender
	Metrics  *metrics.Metrics

	// AfterFunc schedules follow-up refreshes; nil uses time.AfterFunc
	AfterFunc func(d time.Duration, f func())

	// GuardOptions, DebounceOptions and ScanBackOff are passed to the
	// respective components
	GuardOptions    []editguard.Option
	DebounceOptions []debounce.Option
	ScanBackOff     func() backoff.BackOff
}

// Engine is safe for concurrent use
type Engine struct {
	dev   Device
	id    Identity
	store session.Store

	guard  *editguard.Tracker
	disp   *dispatch.Dispatcher
	flow   *provision.Flow
	edges  provision.EdgeDetector
	view   *viewstate.Machine
	poll   *poller.Poller
	notify notify.Sender
	met    *metrics.Metrics
	after  func(d time.Duration, f func())

	mu             sync.Mutex
	status         *deviceapi.DeviceStatus
	reachable      bool
	polled         bool
	fields         map[string]string
	result         viewstate.Result
	loggedIn       bool
	loginMessage   string
	controlMessage string
	nowPlaying     string
	events         []poller.LogLine
	monitor        []poller.LogLine
	notices        []provision.Notice
	subscribers    map[int]chan Snapshot
	nextSub        int
}

// New creates an Engine. The identity client may be nil, in which case every
// session stays unauthorized.
func New(dev Device, id Identity, store session.Store, opts Options) *Engine {
	if store == nil {
		store = &session.MemoryStore{}
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = poller.DefaultStatusInterval
	}
	if opts.LogInterval <= 0 {
		opts.LogInterval = poller.DefaultLogInterval
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}

	e := &Engine{
		dev:         dev,
		id:          id,
		store:       store,
		notify:      opts.Notifier,
		met:         opts.Metrics,
		after:       opts.AfterFunc,
		status:      deviceapi.DefaultStatus(),
		fields:      make(map[string]string),
		subscribers: make(map[int]chan Snapshot),
	}

	guardOpts := opts.GuardOptions
	if opts.QuietDelay > 0 {
		guardOpts = append(guardOpts, editguard.WithQuietDelay(opts.QuietDelay))
	}
	if opts.RecencyWindow > 0 {
		guardOpts = append(guardOpts, editguard.WithRecencyWindow(opts.RecencyWindow))
	}
	e.guard = editguard.New(guardOpts...)

	dOpts := append([]debounce.Option{debounce.WithResult(e.onCommandResult)}, opts.DebounceOptions...)
	e.disp = dispatch.New(dev, dOpts...)

	flowOpts := []provision.Option{provision.WithChange(func(provision.View) { e.publish() })}
	if opts.ScanBackOff != nil {
		flowOpts = append(flowOpts, provision.WithBackOff(opts.ScanBackOff))
	}
	e.flow = provision.NewFlow(dev, flowOpts...)

	var lookup viewstate.RoleLookup
	if id != nil {
		lookup = id
	}
	e.view = viewstate.New(lookup)

	e.poll = poller.New()
	e.poll.Observe(e.met.ObservePoll)
	e.poll.Add(TaskStatus, opts.StatusInterval, e.Reconcile)
	e.poll.Add(TaskLogs, opts.LogInterval, e.RefreshLogs)

	// Seed the controls so a first render shows the device defaults
	e.populateLocked(e.status)
	return e
}

// Run polls the device until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	logging.Info("Panel engine started")
	defer logging.Info("Panel engine stopped")
	return e.poll.Run(ctx)
}

// Close stops pending commands and waits for running ones
func (e *Engine) Close() {
	e.disp.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}
}

// Guard exposes the edit guard, mainly for front ends that render edit state
func (e *Engine) Guard() *editguard.Tracker { return e.guard }

// Reconcile runs one full pass: fetch status, evaluate the view state, merge
// status into the fields through the edit guard, and fire edge notifications.
func (e *Engine) Reconcile(ctx context.Context) error {
	st, fetchErr := e.dev.StatusOrDefault(ctx)
	if st == nil {
		st = deviceapi.DefaultStatus()
	}
	if fetchErr != nil {
		logging.Debug("Status unavailable, using defaults", zap.Error(fetchErr))
	}

	sess, err := e.store.Load()
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		logging.Warn("Failed to load session", zap.Error(err))
	}

	res := e.view.Evaluate(ctx, sess, st.Internet)
	e.flow.Observe(st)
	notices := e.edges.Observe(st)

	e.mu.Lock()
	e.status = st
	e.reachable = fetchErr == nil
	e.polled = true
	e.result = res
	e.loggedIn = sess.HasCredentials()
	if res.Reason != "" {
		e.loginMessage = res.Reason
	}
	if res.Surface == viewstate.SurfaceControls {
		e.populateLocked(st)
	}
	e.notices = append(e.notices, notices...)
	if len(e.notices) > maxNotices {
		e.notices = e.notices[len(e.notices)-maxNotices:]
	}
	e.mu.Unlock()

	e.guard.Collect()
	e.met.SetDeviceUp(fetchErr == nil)
	e.met.SetViewState(int(res.State))
	for _, n := range notices {
		e.emit(n)
	}
	e.publish()
	return fetchErr
}

// populateLocked merges status values into the fields the guard allows
func (e *Engine) populateLocked(st *deviceapi.DeviceStatus) {
	for _, c := range dispatch.Controls {
		if c.FromStatus == nil {
			continue
		}
		e.safeSetLocked(c.Field, c.FromStatus(st))
	}
}

// safeSetLocked writes a value unless the guard protects the field
func (e *Engine) safeSetLocked(field, value string) bool {
	if !e.guard.ShouldAcceptServerValue(field, e.fields[field], value) {
		return false
	}
	e.fields[field] = value
	return true
}

// RefreshLogs fetches the event log, and the live monitor while the operator
// is an admin and the device has its microphone enabled
func (e *Engine) RefreshLogs(ctx context.Context) error {
	text, err := e.dev.Events(ctx)
	if err == nil {
		lines := poller.ClassifyLog(text)
		e.mu.Lock()
		e.events = lines
		e.mu.Unlock()
	}

	e.mu.Lock()
	wantMonitor := e.result.State == viewstate.LoggedInAdmin && e.status.Mic
	e.mu.Unlock()

	if wantMonitor {
		mon, monErr := e.dev.Monitor(ctx)
		if monErr != nil {
			mon = poller.FetchFailText
		}
		lines := poller.ClassifyLog(mon)
		e.mu.Lock()
		e.monitor = lines
		e.mu.Unlock()
		if err == nil {
			err = monErr
		}
	} else {
		// Lines from an earlier admin session must not outlive it
		e.mu.Lock()
		e.monitor = nil
		e.mu.Unlock()
	}

	e.publish()
	return err
}

// refreshSoon schedules one status pass after d
func (e *Engine) refreshSoon(d time.Duration) {
	e.after(d, func() { e.poll.Trigger(TaskStatus) })
}

func (e *Engine) emit(n provision.Notice) {
	e.met.ObserveNotice(string(n.Kind))
	e.notify.Send(notify.Payload{Title: n.Title, Content: n.Body, URL: n.URL})
}

func (e *Engine) onCommandResult(group string, params url.Values, err error) {
	e.met.ObserveCommand(group, err)

	g, lookupErr := dispatch.LookupGroup(group)
	if lookupErr != nil || !g.Save {
		return
	}
	e.mu.Lock()
	if err != nil {
		e.controlMessage = MsgSaveFailed
	} else {
		e.controlMessage = MsgSaved
	}
	e.mu.Unlock()
	e.publish()
}

// Subscribe returns a channel that receives a snapshot after every state
// change. Slow subscribers miss intermediate snapshots, never the latest one.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = ch
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subscribers[id]; ok {
			close(c)
			delete(e.subscribers, id)
		}
	}
	return ch, cancel
}

func (e *Engine) publish() {
	snap := e.Snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
