package panel

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/muurk/noisepanel/internal/debounce"
	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/editguard"
	"github.com/muurk/noisepanel/internal/identity"
	"github.com/muurk/noisepanel/internal/notify"
	"github.com/muurk/noisepanel/internal/provision"
	"github.com/muurk/noisepanel/internal/session"
	"github.com/muurk/noisepanel/internal/viewstate"
)

type sentCommand struct {
	path   string
	params url.Values
}

type fakeDevice struct {
	mu        sync.Mutex
	status    *deviceapi.DeviceStatus
	statusErr error
	networks  [][]deviceapi.NetworkEntry
	events    string
	monitor   string
	monitors  int
	sent      []sentCommand
	saved     []string
}

func newFakeDevice() *fakeDevice {
	st := deviceapi.DefaultStatus()
	st.Connected = true
	st.Internet = true
	st.SSID = "HomeNet"
	st.IP = "10.0.0.7"
	st.Yellow = 50
	st.Red = 80
	return &fakeDevice{status: st}
}

func (d *fakeDevice) set(fn func(st *deviceapi.DeviceStatus)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *d.status
	fn(&cp)
	d.status = &cp
}

func (d *fakeDevice) Status(ctx context.Context) (*deviceapi.DeviceStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.statusErr != nil {
		return nil, d.statusErr
	}
	cp := *d.status
	return &cp, nil
}

func (d *fakeDevice) StatusOrDefault(ctx context.Context) (*deviceapi.DeviceStatus, error) {
	st, err := d.Status(ctx)
	if err != nil {
		return deviceapi.DefaultStatus(), err
	}
	return st, nil
}

func (d *fakeDevice) Scan(ctx context.Context) ([]deviceapi.NetworkEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.networks) == 0 {
		return nil, nil
	}
	n := d.networks[0]
	d.networks = d.networks[1:]
	return n, nil
}

func (d *fakeDevice) Events(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events, nil
}

func (d *fakeDevice) Monitor(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.monitors++
	if d.monitor == "" {
		return "", errors.New("timeout")
	}
	return d.monitor, nil
}

func (d *fakeDevice) Send(ctx context.Context, path string, params url.Values) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentCommand{path, params})
	return nil
}

func (d *fakeDevice) SaveWiFi(ctx context.Context, ssid, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saved = append(d.saved, ssid)
	return nil
}

func (d *fakeDevice) Disconnect(ctx context.Context) error {
	return d.Send(ctx, deviceapi.PathDisconnect, nil)
}

func (d *fakeDevice) SetSpeaker(ctx context.Context, on bool) error {
	return d.Send(ctx, deviceapi.PathSetSpeaker, url.Values{"enabled": {deviceapi.FlagValue(on)}})
}

func (d *fakeDevice) PlayTest(ctx context.Context, n int) error {
	return d.Send(ctx, deviceapi.PlayTestPath(n), nil)
}

func (d *fakeDevice) StopPlayback(ctx context.Context) error {
	return d.Send(ctx, deviceapi.PathStopMp3, nil)
}

func (d *fakeDevice) commands() []sentCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentCommand(nil), d.sent...)
}

type fakeIdentity struct {
	role     string
	roleErr  error
	loginErr error
	lookups  int
}

func (f *fakeIdentity) Login(ctx context.Context, email, password string) (session.Session, error) {
	if f.loginErr != nil {
		return session.Session{}, f.loginErr
	}
	return session.Session{AccessToken: "tok", UserID: "u-1"}, nil
}

func (f *fakeIdentity) Role(ctx context.Context, s session.Session) (string, error) {
	f.lookups++
	return f.role, f.roleErr
}

// timers collects debounce timers so tests fire them explicitly
type timers struct {
	mu  sync.Mutex
	fns []func()
}

type stopTimer struct{ stopped bool }

func (s *stopTimer) Stop() bool {
	was := !s.stopped
	s.stopped = true
	return was
}

func (tm *timers) after(d time.Duration, f func()) debounce.Timer {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.fns = append(tm.fns, f)
	return &stopTimer{}
}

func (tm *timers) fire() {
	tm.mu.Lock()
	fns := tm.fns
	tm.fns = nil
	tm.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine   *Engine
	dev      *fakeDevice
	id       *fakeIdentity
	store    *session.MemoryStore
	timers   *timers
	clock    *fakeClock
	notes    *notify.Recorder
	quiet    []func()
	refreshs []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dev:    newFakeDevice(),
		id:     &fakeIdentity{role: "admin"},
		store:  &session.MemoryStore{},
		timers: &timers{},
		clock:  &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		notes:  &notify.Recorder{},
	}
	h.engine = New(h.dev, h.id, h.store, Options{
		Notifier:  h.notes,
		AfterFunc: func(d time.Duration, f func()) { h.refreshs = append(h.refreshs, d) },
		GuardOptions: []editguard.Option{
			editguard.WithClock(h.clock.Now),
			editguard.WithAfterFunc(func(d time.Duration, f func()) { h.quiet = append(h.quiet, f) }),
		},
		DebounceOptions: []debounce.Option{debounce.WithAfterFunc(h.timers.after)},
		ScanBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, provision.ScanMaxRetries)
		},
	})
	t.Cleanup(h.engine.Close)
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	if err := h.engine.Login(context.Background(), "ops@example.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestReconcile_AdminSeesControls(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	snap := h.engine.Snapshot()
	if snap.Surface != viewstate.SurfaceControls.String() || snap.State != viewstate.LoggedInAdmin.String() {
		t.Fatalf("surface = %s, state = %s", snap.Surface, snap.State)
	}
	if snap.LoginMessage != MsgLoggedIn {
		t.Errorf("LoginMessage = %q", snap.LoginMessage)
	}
	if snap.Fields["yellow"] != "50" || snap.Fields["red"] != "80" {
		t.Errorf("thresholds = %s/%s", snap.Fields["yellow"], snap.Fields["red"])
	}
	if snap.Fields["db_hb"] != "8" || snap.Fields["db_thr"] != "1.0" {
		t.Errorf("cadence fields = %s / %s", snap.Fields["db_hb"], snap.Fields["db_thr"])
	}
}

func TestReconcile_RoleLookupEveryPass(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	before := h.id.lookups
	for i := 0; i < 3; i++ {
		h.engine.Reconcile(context.Background())
	}
	if h.id.lookups-before != 3 {
		t.Errorf("lookups = %d, want 3", h.id.lookups-before)
	}
}

func TestReconcile_RoleLookupFailure(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.id.roleErr = &identity.Error{Op: "role", Message: "identity provider unavailable"}
	h.engine.Reconcile(context.Background())

	snap := h.engine.Snapshot()
	if snap.Surface != viewstate.SurfaceLogin.String() {
		t.Errorf("Surface = %s, want login", snap.Surface)
	}
	if !strings.HasPrefix(snap.LoginMessage, "Not authorized: role lookup failed") {
		t.Errorf("LoginMessage = %q", snap.LoginMessage)
	}
}

func TestReconcile_NonAdmin(t *testing.T) {
	h := newHarness(t)
	h.id.role = "viewer"
	h.login(t)

	snap := h.engine.Snapshot()
	if snap.Surface != "login" || snap.LoginMessage != "Not authorized: role=viewer" {
		t.Errorf("surface = %s, message = %q", snap.Surface, snap.LoginMessage)
	}
}

func TestReconcile_OfflineDevice(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.dev.mu.Lock()
	h.dev.statusErr = deviceapi.NewNetworkError(deviceapi.PathStatus, "request failed", errors.New("refused"))
	h.dev.mu.Unlock()
	before := h.id.lookups

	if err := h.engine.Reconcile(context.Background()); err == nil {
		t.Error("Reconcile() should report the fetch error")
	}

	snap := h.engine.Snapshot()
	if snap.Reachable {
		t.Error("Reachable should be false")
	}
	if snap.NetState != "Not connected" || snap.Subtitle != "Device offline" {
		t.Errorf("net = %s / %s", snap.NetState, snap.Subtitle)
	}
	if snap.Surface != "login" || snap.LoginMessage != viewstate.ReasonNoInternet {
		t.Errorf("surface = %s, message = %q", snap.Surface, snap.LoginMessage)
	}
	if h.id.lookups != before {
		t.Error("role lookup must be skipped without internet")
	}
	if snap.Details != "STA IP: - | GW: - | AP IP: -" {
		t.Errorf("Details = %q", snap.Details)
	}
}

func TestEdit_MidKeystrokeThresholdSurvivesPoll(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.engine.Focus("yellow")
	if err := h.engine.Edit("yellow", "7"); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	h.dev.set(func(st *deviceapi.DeviceStatus) { st.Yellow = 55 })
	h.engine.Reconcile(context.Background())
	if got := h.engine.Snapshot().Fields["yellow"]; got != "7" {
		t.Errorf("yellow while editing = %q, want 7", got)
	}

	// Thresholds are a save group: nothing is sent on edit
	h.timers.fire()
	if len(h.dev.commands()) != 0 {
		t.Errorf("edit should not send, got %+v", h.dev.commands())
	}

	h.engine.Blur("yellow")
	h.clock.Advance(1300 * time.Millisecond)
	for _, f := range h.quiet {
		f()
	}
	h.engine.Reconcile(context.Background())
	if got := h.engine.Snapshot().Fields["yellow"]; got != "7" {
		t.Errorf("yellow inside recency window = %q, want 7", got)
	}

	h.clock.Advance(4 * time.Second)
	h.engine.Reconcile(context.Background())
	if got := h.engine.Snapshot().Fields["yellow"]; got != "55" {
		t.Errorf("yellow after quiet = %q, want 55", got)
	}
}

func TestSave_Thresholds(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.engine.Edit("yellow", "60")
	h.engine.Edit("red", "85")
	if err := h.engine.Save("thresholds"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if h.engine.Snapshot().ControlMessage != MsgSaving {
		t.Errorf("ControlMessage = %q", h.engine.Snapshot().ControlMessage)
	}

	h.timers.fire()
	cmds := h.dev.commands()
	if len(cmds) != 1 || cmds[0].path != deviceapi.PathSetThresholds || cmds[0].params.Encode() != "red=85&yellow=60" {
		t.Fatalf("commands = %+v", cmds)
	}
	if h.engine.Snapshot().ControlMessage != MsgSaved {
		t.Errorf("ControlMessage = %q", h.engine.Snapshot().ControlMessage)
	}
}

func TestSave_HeartbeatUnits(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if got := h.engine.Snapshot().Fields["db_hb"]; got != "8" {
		t.Fatalf("db_hb = %q, want 8", got)
	}
	h.engine.Edit("db_hb", "5")
	h.engine.Save("dblog")
	h.timers.fire()

	cmds := h.dev.commands()
	if len(cmds) != 1 || cmds[0].params.Get("hb") != "5000" {
		t.Fatalf("commands = %+v", cmds)
	}
	if cmds[0].params.Get("up") != "3600000" || cmds[0].params.Get("thr10") != "10" {
		t.Errorf("params = %s", cmds[0].params.Encode())
	}
}

func TestSave_DbLogDisabledBySDFault(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.dev.set(func(st *deviceapi.DeviceStatus) { st.SDError = true })
	h.engine.Reconcile(context.Background())

	if err := h.engine.Save("dblog"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Save() error = %v, want ErrDisabled", err)
	}
	snap := h.engine.Snapshot()
	if snap.Disabled["db_hb"] != "SD card not detected" || snap.FaultSeverity != deviceapi.BadgeBad {
		t.Errorf("disabled = %v, severity = %s", snap.Disabled, snap.FaultSeverity)
	}
}

func TestEdit_VolumeCoalesces(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	for _, v := range []string{"10", "15", "22"} {
		if err := h.engine.Edit("vol", v); err != nil {
			t.Fatalf("Edit() error = %v", err)
		}
	}
	h.timers.fire()

	cmds := h.dev.commands()
	if len(cmds) != 1 {
		t.Fatalf("sent %d commands, want 1: %+v", len(cmds), cmds)
	}
	if cmds[0].path != deviceapi.PathSetMp3Volume || cmds[0].params.Get("vol") != "22" {
		t.Errorf("command = %+v", cmds[0])
	}
}

func TestEdit_LedSendsFullGroup(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.engine.Edit("st", "99")
	h.timers.fire()

	cmds := h.dev.commands()
	if len(cmds) != 1 || cmds[0].params.Encode() != "ng=40&nr=80&ny=40&st=99" {
		t.Fatalf("commands = %+v", cmds)
	}
}

func TestEdit_ChannelRecomposesSwatch(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if got := h.engine.Snapshot().Fields["sr_ap"]; got != "#0000ff" {
		t.Fatalf("sr_ap = %q", got)
	}
	if err := h.engine.Edit("sr_ap_r", "255"); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	snap := h.engine.Snapshot()
	if snap.Fields["sr_ap"] != "#ff00ff" {
		t.Errorf("sr_ap = %q, want #ff00ff", snap.Fields["sr_ap"])
	}

	h.timers.fire()
	cmds := h.dev.commands()
	if len(cmds) != 1 || cmds[0].path != deviceapi.PathSetStatusRgb || cmds[0].params.Get("ap") != "#ff00ff" {
		t.Fatalf("commands = %+v", cmds)
	}
}

func TestEdit_ChannelAfterSwatchEditSendsComposedColor(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.engine.Edit("sr_ap", "#102030")
	h.timers.fire()
	if err := h.engine.Edit("sr_ap_r", "255"); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	h.timers.fire()

	if got := h.engine.Snapshot().Fields["sr_ap"]; got != "#ff2030" {
		t.Errorf("sr_ap = %q, want #ff2030", got)
	}
	cmds := h.dev.commands()
	if len(cmds) != 2 || cmds[1].params.Get("ap") != "#ff2030" {
		t.Fatalf("commands = %+v", cmds)
	}

	// The recomposed swatch is not reverted by the next poll
	h.engine.Reconcile(context.Background())
	if got := h.engine.Snapshot().Fields["sr_ap"]; got != "#ff2030" {
		t.Errorf("sr_ap after poll = %q, want #ff2030", got)
	}
}

func TestEdit_SwatchDecomposesChannels(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.engine.Edit("sr_noi", "#102030")
	snap := h.engine.Snapshot()
	if snap.Fields["sr_noi_r"] != "16" || snap.Fields["sr_noi_g"] != "32" || snap.Fields["sr_noi_b"] != "48" {
		t.Errorf("channels = %s,%s,%s", snap.Fields["sr_noi_r"], snap.Fields["sr_noi_g"], snap.Fields["sr_noi_b"])
	}
}

func TestEdit_FlagSettlesWithoutBlur(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if err := h.engine.Edit("serlog", "0"); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	h.timers.fire()
	cmds := h.dev.commands()
	if len(cmds) != 1 || cmds[0].path != deviceapi.PathSetSerialLogging || cmds[0].params.Get("enabled") != "0" {
		t.Fatalf("commands = %+v", cmds)
	}

	snap := h.engine.Snapshot()
	for _, f := range snap.Editing {
		if f == "serlog" {
			t.Error("a toggled flag must not stay in editing")
		}
	}

	// The device did not apply it; inside the recency window the toggle holds
	h.engine.Reconcile(context.Background())
	if got := h.engine.Snapshot().Fields["serlog"]; got != "0" {
		t.Errorf("serlog inside recency window = %q, want 0", got)
	}

	h.clock.Advance(5 * time.Second)
	h.engine.Reconcile(context.Background())
	if got := h.engine.Snapshot().Fields["serlog"]; got != "1" {
		t.Errorf("serlog after recency window = %q, want device value 1", got)
	}
}

func TestEdit_NoOpServerWriteAccepted(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.engine.Focus("red")
	h.engine.Edit("red", "80")
	h.engine.Reconcile(context.Background())
	if got := h.engine.Snapshot().Fields["red"]; got != "80" {
		t.Errorf("red = %q, want 80", got)
	}
}

func TestEdit_MicDisabledByFault(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.dev.set(func(st *deviceapi.DeviceStatus) { st.MicError = true })
	h.engine.Reconcile(context.Background())

	if err := h.engine.Edit("micen", "0"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Edit() error = %v, want ErrDisabled", err)
	}
	if err := h.engine.Edit("nope", "1"); err == nil {
		t.Error("Edit() of an unknown field should fail")
	}
}

func TestToggleSpeaker(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if err := h.engine.ToggleSpeaker(context.Background()); err != nil {
		t.Fatalf("ToggleSpeaker() error = %v", err)
	}
	cmds := h.dev.commands()
	if len(cmds) != 1 || cmds[0].path != deviceapi.PathSetSpeaker || cmds[0].params.Get("enabled") != "1" {
		t.Fatalf("commands = %+v", cmds)
	}
	if h.engine.Snapshot().ControlMessage != MsgUpdated {
		t.Errorf("ControlMessage = %q", h.engine.Snapshot().ControlMessage)
	}
	if len(h.refreshs) == 0 || h.refreshs[len(h.refreshs)-1] != SpeakerRefreshDelay {
		t.Errorf("refreshes = %v", h.refreshs)
	}
}

func TestPlayback(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if err := h.engine.Play(context.Background(), 2); !errors.Is(err, ErrDisabled) {
		t.Errorf("Play() with speaker off error = %v, want ErrDisabled", err)
	}

	h.dev.set(func(st *deviceapi.DeviceStatus) { st.Speaker = true })
	h.engine.Reconcile(context.Background())

	if err := h.engine.Play(context.Background(), 2); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if got := h.engine.Snapshot().NowPlaying; got != "Playing 02..." {
		t.Errorf("NowPlaying = %q", got)
	}
	if err := h.engine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := h.engine.Snapshot().NowPlaying; got != NowStopped {
		t.Errorf("NowPlaying = %q", got)
	}

	cmds := h.dev.commands()
	if cmds[0].path != "/playTest002" || cmds[1].path != deviceapi.PathStopMp3 {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestControls_RequireAdmin(t *testing.T) {
	tests := []struct {
		name  string
		role  string
		login bool
	}{
		{name: "logged out", role: "admin"},
		{name: "viewer", role: "viewer", login: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.id.role = tt.role
			h.dev.set(func(st *deviceapi.DeviceStatus) { st.Speaker = true })
			if tt.login {
				h.login(t)
			} else {
				h.engine.Reconcile(context.Background())
			}

			ctx := context.Background()
			if err := h.engine.Edit("vol", "5"); !errors.Is(err, ErrNotAuthorized) {
				t.Errorf("Edit() error = %v, want ErrNotAuthorized", err)
			}
			if err := h.engine.Edit("red", "0"); !errors.Is(err, ErrNotAuthorized) {
				t.Errorf("Edit(red) error = %v, want ErrNotAuthorized", err)
			}
			if err := h.engine.Save("thresholds"); !errors.Is(err, ErrNotAuthorized) {
				t.Errorf("Save() error = %v, want ErrNotAuthorized", err)
			}
			if err := h.engine.ToggleSpeaker(ctx); !errors.Is(err, ErrNotAuthorized) {
				t.Errorf("ToggleSpeaker() error = %v, want ErrNotAuthorized", err)
			}
			if err := h.engine.Play(ctx, 1); !errors.Is(err, ErrNotAuthorized) {
				t.Errorf("Play() error = %v, want ErrNotAuthorized", err)
			}
			if err := h.engine.Stop(ctx); !errors.Is(err, ErrNotAuthorized) {
				t.Errorf("Stop() error = %v, want ErrNotAuthorized", err)
			}

			h.timers.fire()
			if cmds := h.dev.commands(); len(cmds) != 0 {
				t.Errorf("sent %+v without an admin session", cmds)
			}
			if got := h.engine.Snapshot().Fields["vol"]; got == "5" {
				t.Error("a rejected edit must not change the field")
			}
		})
	}
}

func TestLogin_FailureMessage(t *testing.T) {
	h := newHarness(t)
	h.id.loginErr = &identity.Error{Op: "login", StatusCode: 400, Message: "Invalid login credentials"}

	if err := h.engine.Login(context.Background(), "a", "b"); err == nil {
		t.Fatal("Login() should fail")
	}
	if got := h.engine.Snapshot().LoginMessage; got != "Invalid login credentials" {
		t.Errorf("LoginMessage = %q", got)
	}
	if _, err := h.store.Load(); !errors.Is(err, session.ErrNoSession) {
		t.Error("failed login must not store a session")
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if err := h.engine.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	snap := h.engine.Snapshot()
	if snap.State != viewstate.LoggedOut.String() || snap.LoggedIn {
		t.Errorf("state = %s, logged in = %v", snap.State, snap.LoggedIn)
	}
	if snap.LoginMessage != MsgLoggedOut {
		t.Errorf("LoginMessage = %q", snap.LoginMessage)
	}
}

func TestReconcile_ConnectedNoticeFiresOnce(t *testing.T) {
	h := newHarness(t)

	h.engine.Reconcile(context.Background())
	h.engine.Reconcile(context.Background())

	got := h.notes.Payloads()
	if len(got) != 1 {
		t.Fatalf("notifications = %+v, want 1", got)
	}
	if got[0].Title != "Wi-Fi Connected" || got[0].Content != "Open the device at: http://10.0.0.7/" {
		t.Errorf("notification = %+v", got[0])
	}

	h.dev.set(func(st *deviceapi.DeviceStatus) { st.IP = "10.0.0.9" })
	h.engine.Reconcile(context.Background())
	if len(h.notes.Payloads()) != 2 {
		t.Errorf("IP change should notify again")
	}
}

func TestWiFi_ScanAndSelect(t *testing.T) {
	h := newHarness(t)
	h.dev.set(func(st *deviceapi.DeviceStatus) { st.Connected = false; st.Internet = false; st.IP = "" })
	h.dev.networks = [][]deviceapi.NetworkEntry{nil, nil, {{SSID: "HomeNet", RSSI: -48, Secure: true}}}

	nets, err := h.engine.Scan(context.Background())
	if err != nil || len(nets) != 1 {
		t.Fatalf("Scan() = %v, %v", nets, err)
	}

	if err := h.engine.SelectNetwork(context.Background(), "HomeNet", ""); !errors.Is(err, provision.ErrCredentialRequired) {
		t.Errorf("SelectNetwork() error = %v, want ErrCredentialRequired", err)
	}
	if err := h.engine.SelectNetwork(context.Background(), "HomeNet", "pw"); err != nil {
		t.Fatalf("SelectNetwork() error = %v", err)
	}

	snap := h.engine.Snapshot()
	if snap.WiFi.Message != provision.MsgSaved {
		t.Errorf("WiFi.Message = %q", snap.WiFi.Message)
	}
	if len(h.dev.saved) != 1 || h.dev.saved[0] != "HomeNet" {
		t.Errorf("saved = %v", h.dev.saved)
	}
	if p := h.notes.Payloads(); len(p) != 1 || p[0].Title != "Wi-Fi Saved" {
		t.Errorf("notifications = %+v", p)
	}
	if len(h.refreshs) == 0 || h.refreshs[0] != WiFiSaveRefreshDelay {
		t.Errorf("refreshes = %v", h.refreshs)
	}
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t)
	h.engine.Reconcile(context.Background())

	if err := h.engine.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if h.refreshs[0] != DisconnectRefreshDelay {
		t.Errorf("refreshes = %v", h.refreshs)
	}

	h.dev.set(func(st *deviceapi.DeviceStatus) { st.Connected = false })
	h.engine.Reconcile(context.Background())
	if err := h.engine.Disconnect(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Disconnect() while offline error = %v, want ErrDisabled", err)
	}
}

func TestRefreshLogs(t *testing.T) {
	h := newHarness(t)
	h.dev.events = "2024-05-01 12:00:00 boot\nWiFi connected\n"

	h.engine.RefreshLogs(context.Background())
	snap := h.engine.Snapshot()
	if len(snap.Events) != 2 || snap.Events[1].Text != "WiFi connected" {
		t.Errorf("events = %+v", snap.Events)
	}
	if len(snap.Monitor) != 0 {
		t.Error("monitor must not be fetched while logged out")
	}

	h.login(t)
	h.engine.RefreshLogs(context.Background())
	snap = h.engine.Snapshot()
	if len(snap.Monitor) != 1 || snap.Monitor[0].Text != "Fetch failed" {
		t.Errorf("monitor = %+v", snap.Monitor)
	}
}

func TestRefreshLogs_MicDisabledSkipsMonitor(t *testing.T) {
	h := newHarness(t)
	h.dev.monitor = "dB=42\n"
	h.dev.set(func(st *deviceapi.DeviceStatus) { st.Mic = false })
	h.login(t)

	h.engine.RefreshLogs(context.Background())
	if h.dev.monitors != 0 {
		t.Errorf("monitor fetched %d times with the mic off", h.dev.monitors)
	}
	if got := h.engine.Snapshot().Monitor; len(got) != 0 {
		t.Errorf("monitor = %+v", got)
	}
}

func TestRefreshLogs_RevokedAdminClearsMonitor(t *testing.T) {
	h := newHarness(t)
	h.dev.monitor = "dB=42\n"
	h.login(t)

	h.engine.RefreshLogs(context.Background())
	if got := h.engine.Snapshot().Monitor; len(got) != 1 || got[0].Text != "dB=42" {
		t.Fatalf("monitor = %+v", got)
	}

	h.id.role = "viewer"
	h.engine.Reconcile(context.Background())
	h.engine.RefreshLogs(context.Background())

	if h.dev.monitors != 1 {
		t.Errorf("monitor fetched %d times, want 1", h.dev.monitors)
	}
	if got := h.engine.Snapshot().Monitor; len(got) != 0 {
		t.Errorf("monitor after revocation = %+v", got)
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	ch, cancel := h.engine.Subscribe()
	defer cancel()

	h.engine.Reconcile(context.Background())
	select {
	case snap := <-ch:
		if !snap.Polled {
			t.Error("snapshot should reflect the poll")
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}
