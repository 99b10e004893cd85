package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/dispatch"
	"github.com/muurk/noisepanel/internal/panel"
	"github.com/muurk/noisepanel/internal/ui"
	"github.com/muurk/noisepanel/internal/viewstate"
)

// actionTimeout bounds one blocking panel call started from a key press
const actionTimeout = 20 * time.Second

// Panel is the engine the dashboard drives
type Panel interface {
	Run(ctx context.Context) error
	Close()
	Snapshot() panel.Snapshot
	Subscribe() (<-chan panel.Snapshot, func())

	Focus(field string) error
	Blur(field string) error
	Edit(field, value string) error
	Save(group string) error
	ToggleSpeaker(ctx context.Context) error
	Play(ctx context.Context, n int) error
	Stop(ctx context.Context) error

	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error

	Scan(ctx context.Context) ([]deviceapi.NetworkEntry, error)
	SelectNetwork(ctx context.Context, ssid, password string) error
	SaveManualWiFi(ctx context.Context, ssid, password string) error
	DismissManual()
	Disconnect(ctx context.Context) error
}

// Tab is one page of the dashboard
type Tab int

const (
	TabStatus Tab = iota
	TabControls
	TabWiFi
	TabLogs
	tabCount
)

var tabNames = [tabCount]string{"Status", "Controls", "Wi-Fi", "Logs"}

type snapshotMsg struct {
	snap panel.Snapshot
	ok   bool
}

type actionResultMsg struct {
	action string
	err    error
}

// dashboardKeyMap defines key bindings for the dashboard screen
type dashboardKeyMap struct {
	NextTab key.Binding
	PrevTab key.Binding
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Cancel  key.Binding
	Back    key.Binding

	Save    key.Binding
	Speaker key.Binding
	Play    key.Binding
	Stop    key.Binding
	Logout  key.Binding

	Scan       key.Binding
	Manual     key.Binding
	Dismiss    key.Binding
	Disconnect key.Binding
}

func newDashboardKeyMap() dashboardKeyMap {
	return dashboardKeyMap{
		NextTab: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next page")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev page")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "done")),
		Back:    key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "devices")),

		Save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Speaker: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "speaker")),
		Play:    key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1-3", "play")),
		Stop:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Logout:  key.NewBinding(key.WithKeys("L", "ctrl+x"), key.WithHelp("L", "logout")),

		Scan:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "scan")),
		Manual:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual SSID")),
		Dismiss:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "hide manual")),
		Disconnect: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "disconnect")),
	}
}

// DashboardModel is the live control panel for one device
type DashboardModel struct {
	Device string
	Panel  Panel
	Snap   panel.Snapshot

	Tab     Tab
	Cursor  int // controls row
	NetRow  int // Wi-Fi network row
	Message string

	// Inline field editing
	EditField string
	Input     textinput.Model

	// Login form
	Email      textinput.Model
	Password   textinput.Model
	LoginFocus int

	// Wi-Fi forms
	PasswordFor  string
	WiFiPassword textinput.Model
	ManualMode   bool
	ManualSSID   textinput.Model
	ManualPass   textinput.Model
	ManualFocus  int

	BackRequested bool

	Width  int
	Height int
	Help   help.Model
	Keys   dashboardKeyMap

	updates     <-chan panel.Snapshot
	unsubscribe func()
}

// NewDashboardModel subscribes to p and seeds the view with its current state
func NewDashboardModel(device string, p Panel) DashboardModel {
	ch, unsubscribe := p.Subscribe()

	return DashboardModel{
		Device:       device,
		Panel:        p,
		Snap:         p.Snapshot(),
		Input:        newInput("", 0, false),
		Email:        newInput("operator@example.com", 254, false),
		Password:     newInput("password", 128, true),
		WiFiPassword: newInput("Wi-Fi password", 63, true),
		ManualSSID:   newInput("network name", 32, false),
		ManualPass:   newInput("password (empty for open)", 63, true),
		Help:         help.New(),
		Keys:         newDashboardKeyMap(),
		updates:      ch,
		unsubscribe:  unsubscribe,
	}
}

func newInput(placeholder string, limit int, secret bool) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	if limit > 0 {
		in.CharLimit = limit
	}
	in.Width = 40
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return in
}

// Init starts listening for engine snapshots
func (m DashboardModel) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

// Release stops the snapshot subscription
func (m DashboardModel) Release() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// IsBackRequested reports whether the operator asked to leave the dashboard
func (m DashboardModel) IsBackRequested() bool {
	return m.BackRequested
}

func waitForSnapshot(ch <-chan panel.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		return snapshotMsg{snap: snap, ok: ok}
	}
}

// runAction performs a blocking panel call off the update loop
func runAction(name string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: name, err: fn(ctx)}
	}
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case snapshotMsg:
		if !msg.ok {
			m.updates = nil
			return m, nil
		}
		m.Snap = msg.snap
		m.clampCursors()
		return m, waitForSnapshot(m.updates)

	case actionResultMsg:
		m.Message = actionMessage(msg)
		if msg.action == "wifi" && msg.err == nil {
			m.PasswordFor = ""
			m.ManualMode = false
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func actionMessage(r actionResultMsg) string {
	if r.err == nil {
		switch r.action {
		case "login":
			return "Logged in."
		case "logout":
			return "Logged out."
		case "wifi":
			return "Wi-Fi credentials saved."
		case "disconnect":
			return "Disconnect requested."
		}
		return ""
	}
	if errors.Is(r.err, panel.ErrDisabled) {
		return r.err.Error()
	}
	return fmt.Sprintf("%s failed: %s", r.action, deviceapi.GetShortErrorMessage(r.err))
}

func (m DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Page switching works from any form; it abandons open edits
	switch {
	case key.Matches(msg, m.Keys.NextTab):
		m.closeForms()
		m.Tab = (m.Tab + 1) % tabCount
		return m, m.enterTab()
	case key.Matches(msg, m.Keys.PrevTab):
		m.closeForms()
		m.Tab = (m.Tab + tabCount - 1) % tabCount
		return m, m.enterTab()
	}

	switch m.Tab {
	case TabControls:
		if m.onLoginSurface() {
			return m.updateLogin(msg)
		}
		return m.updateControls(msg)
	case TabWiFi:
		return m.updateWiFi(msg)
	}

	if key.Matches(msg, m.Keys.Back) {
		m.BackRequested = true
	}
	return m, nil
}

// enterTab focuses the login form when the controls page shows it
func (m *DashboardModel) enterTab() tea.Cmd {
	if m.Tab == TabControls && m.onLoginSurface() {
		m.LoginFocus = 0
		m.Password.Blur()
		return m.Email.Focus()
	}
	m.Email.Blur()
	m.Password.Blur()
	return nil
}

func (m *DashboardModel) closeForms() {
	if m.EditField != "" {
		_ = m.Panel.Blur(m.EditField)
		m.EditField = ""
		m.Input.Blur()
	}
	m.PasswordFor = ""
	m.WiFiPassword.Blur()
	m.ManualMode = false
	m.ManualSSID.Blur()
	m.ManualPass.Blur()
}

func (m DashboardModel) onLoginSurface() bool {
	return m.Snap.Surface != viewstate.SurfaceControls.String()
}

func (m DashboardModel) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "esc":
		m.BackRequested = true
		return m, nil
	case "up", "down":
		m.LoginFocus = 1 - m.LoginFocus
		if m.LoginFocus == 0 {
			m.Password.Blur()
			return m, m.Email.Focus()
		}
		m.Email.Blur()
		return m, m.Password.Focus()
	case "ctrl+x":
		if !m.Snap.LoggedIn {
			return m, nil
		}
		p := m.Panel
		return m, runAction("logout", p.Logout)
	case "enter":
		if m.LoginFocus == 0 {
			m.LoginFocus = 1
			m.Email.Blur()
			return m, m.Password.Focus()
		}
		email, password := strings.TrimSpace(m.Email.Value()), m.Password.Value()
		if email == "" || password == "" {
			m.Message = "Email and password are required."
			return m, nil
		}
		m.Password.SetValue("")
		p := m.Panel
		return m, runAction("login", func(ctx context.Context) error {
			return p.Login(ctx, email, password)
		})
	}

	if m.LoginFocus == 0 {
		m.Email, cmd = m.Email.Update(msg)
	} else {
		m.Password, cmd = m.Password.Update(msg)
	}
	return m, cmd
}

// editableControls are the fields shown on the controls page; color channels
// are edited through their swatch
func editableControls() []dispatch.Control {
	var cs []dispatch.Control
	for _, c := range dispatch.Controls {
		if c.Kind == dispatch.KindChannel {
			continue
		}
		cs = append(cs, c)
	}
	return cs
}

var fieldLabels = map[string]string{
	"yellow":  "Yellow threshold (dB)",
	"red":     "Red threshold (dB)",
	"vol":     "Volume",
	"ng":      "Green LED brightness",
	"ny":      "Yellow LED brightness",
	"nr":      "Red LED brightness",
	"st":      "Status LED brightness",
	"nleden":  "Noise LEDs",
	"micen":   "Microphone",
	"serlog":  "Serial logging",
	"db_samp": "dB log sample period (ms)",
	"db_thr":  "dB log threshold (dB)",
	"db_hb":   "dB log heartbeat (s)",
	"db_up":   "dB log upload (min)",
}

// FieldLabel returns the operator-facing name of a field
func FieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	switch {
	case strings.HasPrefix(field, "sr_"):
		return "Status color: " + strings.TrimPrefix(field, "sr_")
	case strings.HasPrefix(field, "sc_"):
		return "Palette preset: " + strings.TrimPrefix(field, "sc_")
	}
	return field
}

func (m DashboardModel) updateControls(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.EditField != "" {
		return m.updateEditing(msg)
	}

	controls := editableControls()
	p := m.Panel

	switch {
	case key.Matches(msg, m.Keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
	case key.Matches(msg, m.Keys.Down):
		if m.Cursor < len(controls)-1 {
			m.Cursor++
		}
	case key.Matches(msg, m.Keys.Enter):
		c := controls[m.Cursor]
		if reason, off := m.Snap.Disabled[c.Field]; off {
			m.Message = FieldLabel(c.Field) + ": " + reason
			return m, nil
		}
		if c.Kind == dispatch.KindFlag {
			next := deviceapi.FlagValue(!dispatch.ParseFlag(m.Snap.Fields[c.Field]))
			if err := p.Edit(c.Field, next); err != nil {
				m.Message = err.Error()
			}
			return m, nil
		}
		if err := p.Focus(c.Field); err != nil {
			m.Message = err.Error()
			return m, nil
		}
		m.EditField = c.Field
		m.Input.SetValue(m.Snap.Fields[c.Field])
		m.Input.CursorEnd()
		return m, m.Input.Focus()
	case key.Matches(msg, m.Keys.Save):
		g, err := dispatch.LookupGroup(controls[m.Cursor].Group)
		if err != nil || !g.Save {
			m.Message = "Nothing to save here; this control applies as you edit."
			return m, nil
		}
		if err := p.Save(g.Name); err != nil {
			m.Message = err.Error()
		}
	case key.Matches(msg, m.Keys.Speaker):
		return m, runAction("speaker", p.ToggleSpeaker)
	case key.Matches(msg, m.Keys.Play):
		n := int(msg.String()[0] - '0')
		return m, runAction("play", func(ctx context.Context) error { return p.Play(ctx, n) })
	case key.Matches(msg, m.Keys.Stop):
		return m, runAction("stop", p.Stop)
	case key.Matches(msg, m.Keys.Logout):
		return m, runAction("logout", p.Logout)
	case key.Matches(msg, m.Keys.Back):
		m.BackRequested = true
	}
	return m, nil
}

func (m DashboardModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		_ = m.Panel.Blur(m.EditField)
		m.EditField = ""
		m.Input.Blur()
		return m, nil
	}

	before := m.Input.Value()
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	if v := m.Input.Value(); v != before {
		if err := m.Panel.Edit(m.EditField, v); err != nil {
			m.Message = err.Error()
		} else {
			m.Message = ""
		}
	}
	return m, cmd
}

func (m DashboardModel) updateWiFi(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.PasswordFor != "" {
		return m.updateWiFiPassword(msg)
	}
	if m.ManualMode {
		return m.updateManual(msg)
	}

	nets := m.Snap.WiFi.Networks
	p := m.Panel

	switch {
	case key.Matches(msg, m.Keys.Up):
		if m.NetRow > 0 {
			m.NetRow--
		}
	case key.Matches(msg, m.Keys.Down):
		if m.NetRow < len(nets)-1 {
			m.NetRow++
		}
	case key.Matches(msg, m.Keys.Scan):
		return m, runAction("scan", func(ctx context.Context) error {
			_, err := p.Scan(ctx)
			return err
		})
	case key.Matches(msg, m.Keys.Enter):
		if len(nets) == 0 {
			return m, nil
		}
		n := nets[m.NetRow]
		if n.Secure {
			m.PasswordFor = n.SSID
			m.WiFiPassword.SetValue("")
			return m, m.WiFiPassword.Focus()
		}
		return m, runAction("wifi", func(ctx context.Context) error {
			return p.SelectNetwork(ctx, n.SSID, "")
		})
	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.ManualFocus = 0
		m.ManualSSID.SetValue("")
		m.ManualPass.SetValue("")
		return m, m.ManualSSID.Focus()
	case key.Matches(msg, m.Keys.Dismiss):
		p.DismissManual()
	case key.Matches(msg, m.Keys.Disconnect):
		if reason, off := m.Snap.Disabled[panel.ControlDisconnect]; off {
			m.Message = reason
			return m, nil
		}
		return m, runAction("disconnect", p.Disconnect)
	case key.Matches(msg, m.Keys.Back):
		m.BackRequested = true
	}
	return m, nil
}

func (m DashboardModel) updateWiFiPassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.PasswordFor = ""
		m.WiFiPassword.Blur()
		return m, nil
	case "enter":
		ssid, password := m.PasswordFor, m.WiFiPassword.Value()
		p := m.Panel
		return m, runAction("wifi", func(ctx context.Context) error {
			return p.SelectNetwork(ctx, ssid, password)
		})
	}

	var cmd tea.Cmd
	m.WiFiPassword, cmd = m.WiFiPassword.Update(msg)
	return m, cmd
}

func (m DashboardModel) updateManual(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ManualMode = false
		m.ManualSSID.Blur()
		m.ManualPass.Blur()
		return m, nil
	case "up", "down":
		m.ManualFocus = 1 - m.ManualFocus
		if m.ManualFocus == 0 {
			m.ManualPass.Blur()
			return m, m.ManualSSID.Focus()
		}
		m.ManualSSID.Blur()
		return m, m.ManualPass.Focus()
	case "enter":
		if m.ManualFocus == 0 {
			m.ManualFocus = 1
			m.ManualSSID.Blur()
			return m, m.ManualPass.Focus()
		}
		ssid, password := m.ManualSSID.Value(), m.ManualPass.Value()
		p := m.Panel
		return m, runAction("wifi", func(ctx context.Context) error {
			return p.SaveManualWiFi(ctx, ssid, password)
		})
	}

	var cmd tea.Cmd
	if m.ManualFocus == 0 {
		m.ManualSSID, cmd = m.ManualSSID.Update(msg)
	} else {
		m.ManualPass, cmd = m.ManualPass.Update(msg)
	}
	return m, cmd
}

func (m *DashboardModel) clampCursors() {
	if n := len(m.Snap.WiFi.Networks); m.NetRow >= n {
		m.NetRow = max(n-1, 0)
	}
}

// View renders the dashboard
func (m DashboardModel) View() string {
	var b strings.Builder
	b.WriteString(RenderTabs(tabNames[:], int(m.Tab)))
	b.WriteString("\n\n")

	switch m.Tab {
	case TabStatus:
		b.WriteString(m.renderStatus())
	case TabControls:
		if m.onLoginSurface() {
			b.WriteString(m.renderLogin())
		} else {
			b.WriteString(m.renderControls())
		}
	case TabWiFi:
		b.WriteString(m.renderWiFi())
	case TabLogs:
		b.WriteString(m.renderLogs())
	}

	if m.Message != "" {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render(m.Message))
		b.WriteString("\n")
	}

	return RenderApplicationContainer(m.Device, b.String(), m.Help.View(m.helpKeys()), m.Width, m.Height)
}

func (m DashboardModel) helpKeys() bindings {
	k := m.Keys
	switch {
	case m.EditField != "", m.PasswordFor != "", m.ManualMode:
		return bindings{k.Enter, k.Cancel}
	case m.Tab == TabControls && m.onLoginSurface():
		return bindings{k.NextTab, key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "log in"))}
	case m.Tab == TabControls:
		return bindings{k.NextTab, k.Up, k.Down, k.Enter, k.Save, k.Speaker, k.Play, k.Stop, k.Logout, k.Back}
	case m.Tab == TabWiFi:
		return bindings{k.NextTab, k.Up, k.Down, k.Scan, k.Manual, k.Dismiss, k.Disconnect, k.Back}
	}
	return bindings{k.NextTab, k.PrevTab, k.Back}
}

func (m DashboardModel) renderStatus() string {
	s := m.Snap
	var b strings.Builder

	if !s.Polled {
		b.WriteString(RenderSubtitle("Waiting for the first status poll..."))
		b.WriteString("\n")
		return b.String()
	}
	if !s.Reachable {
		b.WriteString(RenderError("Device not reachable; showing defaults"))
		b.WriteString("\n\n")
	}

	b.WriteString(ui.BadgeStyle(s.Badge).Render("● " + s.NetState))
	b.WriteString("  ")
	b.WriteString(s.Subtitle)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Signal: %s\n\n", deviceapi.BarsGlyph(s.Bars))
	b.WriteString(InfoBoxStyle.Render(s.Details))
	b.WriteString("\n")

	if len(s.Faults) > 0 {
		b.WriteString("\n")
		b.WriteString(SectionStyle.Render("Faults"))
		b.WriteString("\n")
		for _, f := range s.Faults {
			b.WriteString(ui.BadgeStyle(s.FaultSeverity).Render("  ! " + f))
			b.WriteString("\n")
		}
	}

	if n := len(s.Notices); n > 0 {
		last := s.Notices[n-1]
		b.WriteString("\n")
		b.WriteString(SectionStyle.Render(last.Title))
		b.WriteString("\n  ")
		b.WriteString(last.Body)
		b.WriteString("\n")
	}
	return b.String()
}

func (m DashboardModel) renderLogin() string {
	var b strings.Builder
	b.WriteString(SectionStyle.Render("Operator login"))
	b.WriteString("\n\n")
	if m.Snap.LoginMessage != "" {
		b.WriteString(WarningStyle.Render(m.Snap.LoginMessage))
		b.WriteString("\n\n")
	}
	b.WriteString("  Email:    ")
	b.WriteString(m.Email.View())
	b.WriteString("\n  Password: ")
	b.WriteString(m.Password.View())
	b.WriteString("\n")
	if m.Snap.LoggedIn {
		b.WriteString("\n")
		b.WriteString(RenderSubtitle("Signed in without admin access. ctrl+x logs out."))
		b.WriteString("\n")
	}
	return b.String()
}

func (m DashboardModel) renderControls() string {
	var b strings.Builder
	s := m.Snap

	for i, c := range editableControls() {
		label := FieldLabel(c.Field)
		value := s.Fields[c.Field]
		if c.Kind == dispatch.KindFlag {
			value = "off"
			if dispatch.ParseFlag(s.Fields[c.Field]) {
				value = "on"
			}
		}

		var line string
		switch {
		case c.Field == m.EditField:
			line = ExpandedFieldStyle.Render(fmt.Sprintf("→ %-28s ", label)) + m.Input.View()
		case s.Disabled[c.Field] != "":
			line = DisabledItemStyle.Render(fmt.Sprintf("  %-28s %s (%s)", label, value, s.Disabled[c.Field]))
		default:
			line = RenderMenuItem(fmt.Sprintf("%-28s %s", label, value), i == m.Cursor)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	speaker := "off"
	if s.Status != nil && s.Status.Speaker {
		speaker = "on"
	}
	fmt.Fprintf(&b, "Speaker: %s", speaker)
	if s.NowPlaying != "" {
		fmt.Fprintf(&b, "   Now: %s", s.NowPlaying)
	}
	if reason := s.Disabled[panel.ControlPlay]; reason != "" {
		fmt.Fprintf(&b, "   (playback: %s)", reason)
	}
	b.WriteString("\n")
	if s.ControlMessage != "" {
		b.WriteString(RenderSubtitle(s.ControlMessage))
		b.WriteString("\n")
	}
	return b.String()
}

func (m DashboardModel) renderWiFi() string {
	var b strings.Builder
	w := m.Snap.WiFi

	if w.Message != "" {
		b.WriteString(w.Message)
		b.WriteString("\n\n")
	}

	if len(w.Networks) == 0 {
		b.WriteString(RenderSubtitle("No scan results. Press 'r' to scan."))
		b.WriteString("\n")
	}
	for i, n := range w.Networks {
		lock := " "
		if n.Secure {
			lock = "🔒"
		}
		b.WriteString(RenderMenuItem(fmt.Sprintf("%-32s %4d dBm %s", n.SSID, n.RSSI, lock), i == m.NetRow && m.PasswordFor == ""))
		b.WriteString("\n")
	}

	if m.PasswordFor != "" {
		fmt.Fprintf(&b, "\nPassword for %q: %s\n", m.PasswordFor, m.WiFiPassword.View())
	}

	if m.ManualMode {
		b.WriteString("\n")
		b.WriteString(SectionStyle.Render("Enter network manually"))
		b.WriteString("\n  SSID:     ")
		b.WriteString(m.ManualSSID.View())
		b.WriteString("\n  Password: ")
		b.WriteString(m.ManualPass.View())
		b.WriteString("\n")
	} else if w.ManualVisible {
		b.WriteString("\n")
		b.WriteString(RenderSubtitle("Network not listed? Press 'm' to enter it manually."))
		b.WriteString("\n")
	}
	if w.ManualMessage != "" {
		b.WriteString(WarningStyle.Render(w.ManualMessage))
		b.WriteString("\n")
	}
	return b.String()
}

func (m DashboardModel) renderLogs() string {
	var b strings.Builder
	b.WriteString(SectionStyle.Render("Events"))
	b.WriteString("\n")
	b.WriteString(ui.RenderLog(m.Snap.Events))
	if len(m.Snap.Monitor) > 0 {
		b.WriteString("\n")
		b.WriteString(SectionStyle.Render("Live monitor"))
		b.WriteString("\n")
		b.WriteString(ui.RenderLog(m.Snap.Monitor))
	}
	return b.String()
}
