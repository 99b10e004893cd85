package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/discovery"
	"github.com/muurk/noisepanel/internal/panel"
)

type fakePanel struct {
	mu sync.Mutex

	snap    panel.Snapshot
	ch      chan panel.Snapshot
	focused []string
	blurred []string
	edits   []string
	saved   []string
	played  []int
	logins  []string
	wifi    []string
	manual  []string
	calls   []string
	closed  bool
	editErr error
}

func newFakePanel(snap panel.Snapshot) *fakePanel {
	return &fakePanel{snap: snap, ch: make(chan panel.Snapshot, 1)}
}

func (f *fakePanel) record(list *[]string, v string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*list = append(*list, v)
	return nil
}

func (f *fakePanel) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakePanel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
func (f *fakePanel) Snapshot() panel.Snapshot { return f.snap }
func (f *fakePanel) Subscribe() (<-chan panel.Snapshot, func()) {
	return f.ch, func() {}
}
func (f *fakePanel) Focus(field string) error { return f.record(&f.focused, field) }
func (f *fakePanel) Blur(field string) error { return f.record(&f.blurred, field) }
func (f *fakePanel) Edit(field, value string) error {
	if f.editErr != nil {
		return f.editErr
	}
	return f.record(&f.edits, field+"="+value)
}
func (f *fakePanel) Save(group string) error { return f.record(&f.saved, group) }
func (f *fakePanel) ToggleSpeaker(ctx context.Context) error {
	return f.record(&f.calls, "speaker")
}
func (f *fakePanel) Play(ctx context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, n)
	return nil
}
func (f *fakePanel) Stop(ctx context.Context) error { return f.record(&f.calls, "stop") }
func (f *fakePanel) Login(ctx context.Context, email, password string) error {
	return f.record(&f.logins, email+":"+password)
}
func (f *fakePanel) Logout(ctx context.Context) error { return f.record(&f.calls, "logout") }
func (f *fakePanel) Scan(ctx context.Context) ([]deviceapi.NetworkEntry, error) {
	return nil, f.record(&f.calls, "scan")
}
func (f *fakePanel) SelectNetwork(ctx context.Context, ssid, password string) error {
	return f.record(&f.wifi, ssid+":"+password)
}
func (f *fakePanel) SaveManualWiFi(ctx context.Context, ssid, password string) error {
	return f.record(&f.manual, ssid+":"+password)
}
func (f *fakePanel) DismissManual() { f.record(&f.calls, "dismiss") }
func (f *fakePanel) Disconnect(ctx context.Context) error { return f.record(&f.calls, "disconnect") }

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyEnter    = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc      = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab      = tea.KeyMsg{Type: tea.KeyTab}
	keyShiftTab = tea.KeyMsg{Type: tea.KeyShiftTab}
	keyDown     = tea.KeyMsg{Type: tea.KeyDown}
)

func update(t *testing.T, m DashboardModel, msg tea.Msg) (DashboardModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(DashboardModel), cmd
}

// runCmd executes an action command and feeds its result back
func runCmd(t *testing.T, m DashboardModel, cmd tea.Cmd) DashboardModel {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	res, ok := msg.(actionResultMsg)
	if !ok {
		t.Fatalf("command returned %T, want actionResultMsg", msg)
	}
	m, _ = update(t, m, res)
	return m
}

func controlsSnapshot() panel.Snapshot {
	return panel.Snapshot{
		Polled:   true,
		Surface:  "controls",
		Status:   deviceapi.DefaultStatus(),
		Fields:   map[string]string{"vol": "10", "nleden": "1", "yellow": "60"},
		Disabled: map[string]string{},
	}
}

func controlIndex(t *testing.T, field string) int {
	t.Helper()
	for i, c := range editableControls() {
		if c.Field == field {
			return i
		}
	}
	t.Fatalf("field %s is not editable", field)
	return -1
}

func TestDashboard_SnapshotUpdates(t *testing.T) {
	f := newFakePanel(panel.Snapshot{})
	m := NewDashboardModel("lab", f)
	if m.Init() == nil {
		t.Fatal("Init() should wait for snapshots")
	}

	snap := controlsSnapshot()
	m, cmd := update(t, m, snapshotMsg{snap: snap, ok: true})
	if m.Snap.Surface != "controls" {
		t.Errorf("Surface = %q", m.Snap.Surface)
	}
	if cmd == nil {
		t.Error("snapshot handling should re-arm the subscription")
	}

	m, cmd = update(t, m, snapshotMsg{ok: false})
	if cmd != nil {
		t.Error("a closed subscription should not be re-armed")
	}
}

func TestDashboard_TabSwitching(t *testing.T) {
	m := NewDashboardModel("lab", newFakePanel(controlsSnapshot()))

	m, _ = update(t, m, keyTab)
	if m.Tab != TabControls {
		t.Errorf("Tab = %d, want controls", m.Tab)
	}
	m, _ = update(t, m, keyShiftTab)
	m, _ = update(t, m, keyShiftTab)
	if m.Tab != TabLogs {
		t.Errorf("Tab = %d, want logs", m.Tab)
	}
	m, _ = update(t, m, keyRunes("q"))
	if !m.IsBackRequested() {
		t.Error("q should request leaving the dashboard")
	}
}

func TestDashboard_Login(t *testing.T) {
	f := newFakePanel(panel.Snapshot{Surface: "login", Polled: true})
	m := NewDashboardModel("lab", f)

	m, _ = update(t, m, keyTab)
	m, _ = update(t, m, keyRunes("ops@example.com"))
	m, _ = update(t, m, keyEnter)
	if m.LoginFocus != 1 {
		t.Fatalf("LoginFocus = %d, want password", m.LoginFocus)
	}

	// An empty password is refused without a request
	m, cmd := update(t, m, keyEnter)
	if cmd != nil || len(f.logins) != 0 {
		t.Error("login without a password should not be sent")
	}

	m, _ = update(t, m, keyRunes("s3cret"))
	m, cmd = update(t, m, keyEnter)
	m = runCmd(t, m, cmd)

	if len(f.logins) != 1 || f.logins[0] != "ops@example.com:s3cret" {
		t.Errorf("logins = %v", f.logins)
	}
	if m.Password.Value() != "" {
		t.Error("password should be cleared after submit")
	}
	if m.Message != "Logged in." {
		t.Errorf("Message = %q", m.Message)
	}
}

func TestDashboard_FlagToggle(t *testing.T) {
	f := newFakePanel(controlsSnapshot())
	m := NewDashboardModel("lab", f)
	m.Tab = TabControls
	m.Cursor = controlIndex(t, "nleden")

	m, _ = update(t, m, keyEnter)
	if len(f.edits) != 1 || f.edits[0] != "nleden=0" {
		t.Errorf("edits = %v", f.edits)
	}
	if m.EditField != "" {
		t.Error("flags toggle without opening an editor")
	}
}

func TestDashboard_InlineEdit(t *testing.T) {
	f := newFakePanel(controlsSnapshot())
	m := NewDashboardModel("lab", f)
	m.Tab = TabControls
	m.Cursor = controlIndex(t, "vol")

	m, _ = update(t, m, keyEnter)
	if m.EditField != "vol" || len(f.focused) != 1 {
		t.Fatalf("EditField = %q, focused = %v", m.EditField, f.focused)
	}
	if m.Input.Value() != "10" {
		t.Errorf("editor value = %q, want 10", m.Input.Value())
	}

	m, _ = update(t, m, keyRunes("5"))
	if len(f.edits) != 1 || f.edits[0] != "vol=105" {
		t.Errorf("edits = %v", f.edits)
	}

	m, _ = update(t, m, keyEnter)
	if m.EditField != "" {
		t.Error("enter should close the editor")
	}
	if len(f.blurred) != 1 || f.blurred[0] != "vol" {
		t.Errorf("blurred = %v", f.blurred)
	}
}

func TestDashboard_EditErrorShown(t *testing.T) {
	f := newFakePanel(controlsSnapshot())
	f.editErr = errors.New("control disabled: vol")
	m := NewDashboardModel("lab", f)
	m.Tab = TabControls
	m.Cursor = controlIndex(t, "vol")

	m, _ = update(t, m, keyEnter)
	m, _ = update(t, m, keyRunes("1"))
	if m.Message != "control disabled: vol" {
		t.Errorf("Message = %q", m.Message)
	}
}

func TestDashboard_DisabledField(t *testing.T) {
	snap := controlsSnapshot()
	snap.Disabled["micen"] = "MIC not detected"
	f := newFakePanel(snap)
	m := NewDashboardModel("lab", f)
	m.Tab = TabControls
	m.Cursor = controlIndex(t, "micen")

	m, _ = update(t, m, keyEnter)
	if len(f.edits) != 0 {
		t.Errorf("disabled field was edited: %v", f.edits)
	}
	if !strings.Contains(m.Message, "MIC not detected") {
		t.Errorf("Message = %q", m.Message)
	}
}

func TestDashboard_Save(t *testing.T) {
	f := newFakePanel(controlsSnapshot())
	m := NewDashboardModel("lab", f)
	m.Tab = TabControls

	m.Cursor = controlIndex(t, "yellow")
	m, _ = update(t, m, keyRunes("s"))
	if len(f.saved) != 1 || f.saved[0] != "thresholds" {
		t.Errorf("saved = %v", f.saved)
	}

	m.Cursor = controlIndex(t, "vol")
	m, _ = update(t, m, keyRunes("s"))
	if len(f.saved) != 1 {
		t.Errorf("volume is not a save group, saved = %v", f.saved)
	}
	if m.Message == "" {
		t.Error("expected a hint for a non-save control")
	}
}

func TestDashboard_PlaybackKeys(t *testing.T) {
	f := newFakePanel(controlsSnapshot())
	m := NewDashboardModel("lab", f)
	m.Tab = TabControls

	_, cmd := update(t, m, keyRunes("2"))
	m = runCmd(t, m, cmd)
	_, cmd = update(t, m, keyRunes("x"))
	m = runCmd(t, m, cmd)
	_, cmd = update(t, m, keyRunes("p"))
	runCmd(t, m, cmd)

	if len(f.played) != 1 || f.played[0] != 2 {
		t.Errorf("played = %v", f.played)
	}
	if strings.Join(f.calls, ",") != "stop,speaker" {
		t.Errorf("calls = %v", f.calls)
	}
}

func wifiSnapshot() panel.Snapshot {
	snap := controlsSnapshot()
	snap.WiFi.Networks = []deviceapi.NetworkEntry{
		{SSID: "HomeNet", RSSI: -50, Secure: true},
		{SSID: "Cafe", RSSI: -70},
	}
	return snap
}

func TestDashboard_WiFiSecuredNetwork(t *testing.T) {
	f := newFakePanel(wifiSnapshot())
	m := NewDashboardModel("lab", f)
	m.Tab = TabWiFi

	m, _ = update(t, m, keyEnter)
	if m.PasswordFor != "HomeNet" {
		t.Fatalf("PasswordFor = %q", m.PasswordFor)
	}
	m, _ = update(t, m, keyRunes("hunter2"))
	m, cmd := update(t, m, keyEnter)
	m = runCmd(t, m, cmd)

	if len(f.wifi) != 1 || f.wifi[0] != "HomeNet:hunter2" {
		t.Errorf("wifi = %v", f.wifi)
	}
	if m.PasswordFor != "" {
		t.Error("password prompt should close after a successful save")
	}
}

func TestDashboard_WiFiOpenNetwork(t *testing.T) {
	f := newFakePanel(wifiSnapshot())
	m := NewDashboardModel("lab", f)
	m.Tab = TabWiFi

	m, _ = update(t, m, keyDown)
	_, cmd := update(t, m, keyEnter)
	runCmd(t, m, cmd)

	if len(f.wifi) != 1 || f.wifi[0] != "Cafe:" {
		t.Errorf("wifi = %v", f.wifi)
	}
}

func TestDashboard_WiFiManualEntry(t *testing.T) {
	f := newFakePanel(wifiSnapshot())
	m := NewDashboardModel("lab", f)
	m.Tab = TabWiFi

	m, _ = update(t, m, keyRunes("m"))
	if !m.ManualMode {
		t.Fatal("m should open manual entry")
	}
	m, _ = update(t, m, keyRunes("Hidden"))
	m, _ = update(t, m, keyEnter)
	m, _ = update(t, m, keyRunes("pw"))
	m, cmd := update(t, m, keyEnter)
	m = runCmd(t, m, cmd)

	if len(f.manual) != 1 || f.manual[0] != "Hidden:pw" {
		t.Errorf("manual = %v", f.manual)
	}
	if m.ManualMode {
		t.Error("manual form should close after a successful save")
	}

	m, _ = update(t, m, keyRunes("d"))
	if len(f.calls) != 1 || f.calls[0] != "dismiss" {
		t.Errorf("calls = %v", f.calls)
	}
}

func TestDashboard_DisconnectDisabled(t *testing.T) {
	snap := wifiSnapshot()
	snap.Disabled[panel.ControlDisconnect] = "Not connected"
	f := newFakePanel(snap)
	m := NewDashboardModel("lab", f)
	m.Tab = TabWiFi

	m, cmd := update(t, m, keyRunes("D"))
	if cmd != nil {
		t.Error("disconnect should not be sent while disabled")
	}
	if m.Message != "Not connected" {
		t.Errorf("Message = %q", m.Message)
	}
}

func TestDashboard_TabSwitchBlursEditor(t *testing.T) {
	f := newFakePanel(controlsSnapshot())
	m := NewDashboardModel("lab", f)
	m.Tab = TabControls
	m.Cursor = controlIndex(t, "vol")

	m, _ = update(t, m, keyEnter)
	m, _ = update(t, m, keyTab)
	if m.EditField != "" || len(f.blurred) != 1 {
		t.Errorf("EditField = %q, blurred = %v", m.EditField, f.blurred)
	}
}

func TestActionMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  actionResultMsg
		want string
	}{
		{"login ok", actionResultMsg{action: "login"}, "Logged in."},
		{"silent ok", actionResultMsg{action: "play"}, ""},
		{"failure", actionResultMsg{action: "scan", err: errors.New("boom")}, "scan failed: boom"},
		{"disabled", actionResultMsg{action: "play", err: panel.ErrDisabled}, "control disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := actionMessage(tt.msg); got != tt.want {
				t.Errorf("actionMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFieldLabel(t *testing.T) {
	tests := map[string]string{
		"vol":     "Volume",
		"sr_boot": "Status color: boot",
		"sc_noi":  "Palette preset: noi",
		"other":   "other",
	}
	for field, want := range tests {
		if got := FieldLabel(field); got != want {
			t.Errorf("FieldLabel(%q) = %q, want %q", field, got, want)
		}
	}
}

func TestEditableControlsSkipChannels(t *testing.T) {
	for _, c := range editableControls() {
		if strings.HasSuffix(c.Field, "_r") || strings.HasSuffix(c.Field, "_g") || strings.HasSuffix(c.Field, "_b") {
			t.Errorf("channel field %s should not be listed", c.Field)
		}
	}
}

func TestDashboard_ViewRenders(t *testing.T) {
	snap := wifiSnapshot()
	snap.NetState = "Connected"
	snap.Faults = []string{"SD card not detected"}
	m := NewDashboardModel("lab", newFakePanel(snap))
	m.Width, m.Height = 100, 40

	for tab := TabStatus; tab < tabCount; tab++ {
		m.Tab = tab
		if out := m.View(); !strings.Contains(out, "NOISEPANEL") {
			t.Errorf("tab %d view is missing the header", tab)
		}
	}
}

func TestParseManualAddress(t *testing.T) {
	tests := []struct {
		in       string
		wantIP   string
		wantPort int
		wantErr  bool
	}{
		{"192.168.4.1", "192.168.4.1", 80, false},
		{" 10.0.0.7:8080 ", "10.0.0.7", 8080, false},
		{"[fe80::1]:81", "fe80::1", 81, false},
		{"", "", 0, true},
		{"10.0.0.7:99999", "", 0, true},
		{"10.0.0.7:http", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dev, err := ParseManualAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseManualAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if dev.IP != tt.wantIP || dev.Port != tt.wantPort || dev.ID != ManualID {
				t.Errorf("device = %+v", dev)
			}
		})
	}
}

func fakeScan(devs ...*discovery.Device) ScanFunc {
	return func(ctx context.Context) ([]*discovery.Device, error) { return devs, nil }
}

func TestDiscovery_SelectDevice(t *testing.T) {
	dev := &discovery.Device{ID: "3fa2c1", IP: "10.0.0.7", Port: 80}
	m := NewDiscoveryModel(fakeScan(dev))

	msg := m.scanDevices()
	updated, _ := m.Update(msg)
	m = updated.(DiscoveryModel)
	if len(m.DeviceList.Items()) != 1 {
		t.Fatalf("items = %d, want 1", len(m.DeviceList.Items()))
	}

	updated, _ = m.Update(keyEnter)
	m = updated.(DiscoveryModel)
	if got := m.GetSelectedDevice(); got != dev {
		t.Errorf("GetSelectedDevice() = %v", got)
	}
}

func TestDiscovery_ManualEntryKeptAcrossRescan(t *testing.T) {
	m := NewDiscoveryModel(fakeScan())

	updated, _ := m.Update(keyRunes("m"))
	m = updated.(DiscoveryModel)
	updated, _ = m.Update(keyRunes("10.0.0.9"))
	m = updated.(DiscoveryModel)
	updated, _ = m.Update(keyEnter)
	m = updated.(DiscoveryModel)
	if m.ManualMode || len(m.DeviceList.Items()) != 1 {
		t.Fatalf("ManualMode = %v, items = %d", m.ManualMode, len(m.DeviceList.Items()))
	}

	updated, _ = m.Update(scanCompleteMsg{devices: []*discovery.Device{{ID: "aa", IP: "10.0.0.8", Port: 80}}})
	m = updated.(DiscoveryModel)
	if len(m.DeviceList.Items()) != 2 {
		t.Errorf("items = %d, want manual + discovered", len(m.DeviceList.Items()))
	}
}

func TestDiscovery_ManualEntryInvalid(t *testing.T) {
	m := NewDiscoveryModel(fakeScan())
	updated, _ := m.Update(keyRunes("m"))
	m = updated.(DiscoveryModel)
	updated, _ = m.Update(keyEnter)
	m = updated.(DiscoveryModel)
	if !m.ManualMode || m.ManualErr == nil {
		t.Error("an empty address should keep the form open with an error")
	}
	updated, _ = m.Update(keyEsc)
	m = updated.(DiscoveryModel)
	if m.ManualMode {
		t.Error("esc should close manual entry")
	}
}

func TestApp_OpenAndLeaveDashboard(t *testing.T) {
	f := newFakePanel(controlsSnapshot())
	var opened *discovery.Device
	factory := func(dev *discovery.Device) (Panel, error) {
		opened = dev
		return f, nil
	}
	dev := &discovery.Device{ID: "3fa2c1", IP: "10.0.0.7", Port: 80}

	app := NewAppModel(factory, fakeScan(), dev)
	if app.CurrentScreen != ScreenDashboard {
		t.Fatalf("CurrentScreen = %s", app.CurrentScreen)
	}
	updated, _ := app.Update(app.Init()())
	app = updated.(AppModel)
	if opened != dev || app.DashboardModel.Panel == nil {
		t.Fatal("dashboard was not opened for the device")
	}

	updated, _ = app.Update(keyRunes("q"))
	app = updated.(AppModel)
	if app.CurrentScreen != ScreenDiscovery {
		t.Errorf("CurrentScreen = %s, want discovery", app.CurrentScreen)
	}
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if !closed {
		t.Error("leaving the dashboard should close the engine")
	}
}

func TestApp_FactoryError(t *testing.T) {
	factory := func(dev *discovery.Device) (Panel, error) {
		return nil, errors.New("keyring locked")
	}
	dev := &discovery.Device{ID: ManualID, IP: "10.0.0.7", Port: 80}

	app := NewAppModel(factory, fakeScan(), dev)
	updated, _ := app.Update(openDashboardMsg{})
	app = updated.(AppModel)
	if app.CurrentScreen != ScreenDiscovery || app.DiscoveryModel.Err == nil {
		t.Errorf("CurrentScreen = %s, Err = %v", app.CurrentScreen, app.DiscoveryModel.Err)
	}
}
