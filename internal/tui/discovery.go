package tui

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/noisepanel/internal/discovery"
)

// ManualID marks a device entered by address rather than discovered
const ManualID = "manual"

// ScanFunc finds devices on the local network
type ScanFunc func(ctx context.Context) ([]*discovery.Device, error)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// bindings is a fixed help.KeyMap for screens with a short list of keys
type bindings []key.Binding

func (b bindings) ShortHelp() []key.Binding { return b }
func (b bindings) FullHelp() [][]key.Binding { return [][]key.Binding{b} }

// deviceItem wraps a Device for use with bubbles/list
type deviceItem struct {
	device *discovery.Device
}

func (d deviceItem) FilterValue() string {
	return d.device.ID + " " + d.device.IP + " " + d.device.Hostname
}

// Title returns the device name for list display
func (d deviceItem) Title() string {
	if d.device.ID == ManualID {
		return "Manual: " + d.device.Address()
	}
	return "noisemon-" + d.device.ID
}

// Description returns device details for list display
func (d deviceItem) Description() string {
	return fmt.Sprintf("%s • Firmware: %s", d.device.Address(), firmwareOf(d.device))
}

func firmwareOf(d *discovery.Device) string {
	if fw := d.GetMetadata("fw"); fw != "" {
		return fw
	}
	return "Unknown"
}

// deviceDelegate renders devices as cards
type deviceDelegate struct {
	width int
}

func (d deviceDelegate) Height() int { return 6 }
func (d deviceDelegate) Spacing() int { return 1 }
func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(deviceItem)
	if !ok {
		return
	}
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + it.Title()))
	} else {
		content.WriteString("  " + it.Title())
	}
	content.WriteString("\n")
	fmt.Fprintf(&content, "  Address:  %s\n", it.device.Address())
	fmt.Fprintf(&content, "  Firmware: %s", firmwareOf(it.device))

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(ContentWidth(d.width))
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel represents the device discovery screen state
type DiscoveryModel struct {
	Scanning   bool
	DeviceList list.Model
	Selected   bool
	Err        error

	ManualMode bool
	AddrInput  textinput.Model
	ManualErr  error

	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	ScanTimeout   time.Duration
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    bindings
	ScanningKeys  bindings

	scan ScanFunc
}

// NewDiscoveryModel creates a discovery screen; a nil scan uses mDNS
func NewDiscoveryModel(scan ScanFunc) DiscoveryModel {
	timeout := discovery.DefaultScanTimeout
	if scan == nil {
		scan = func(ctx context.Context) ([]*discovery.Device, error) {
			return discovery.QuickScan(ctx, timeout)
		}
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	addr := textinput.New()
	addr.Placeholder = "192.168.4.1"
	addr.CharLimit = 64
	addr.Width = 30

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	deviceList := list.New([]list.Item{}, deviceDelegate{width: MinTerminalWidth}, 0, 0)
	deviceList.Title = "Discovered Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetFilteringEnabled(false)
	deviceList.Styles.Title = TitleStyle

	confirm := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm"))
	cancel := key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
	manual := key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual address"))
	quit := key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit"))

	return DiscoveryModel{
		DeviceList:  deviceList,
		AddrInput:   addr,
		Spinner:     s,
		ProgressBar: progressBar,
		ScanTimeout: timeout,
		Help:        help.New(),
		Keys: discoveryKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "open panel")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: manual,
			Quit:   quit,
		},
		ManualKeys:   bindings{confirm, cancel},
		ScanningKeys: bindings{manual, quit},
		scan:         scan,
	}
}

// Init starts the first scan
func (m DiscoveryModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanDevices,
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetDelegate(deviceDelegate{width: msg.Width})
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(msg.Height - 8)

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, 0, len(msg.devices)+1)
		// Keep a manually entered device across rescans
		for _, it := range m.DeviceList.Items() {
			if di, ok := it.(deviceItem); ok && di.device.ID == ManualID {
				items = append(items, it)
			}
		}
		for _, dev := range msg.devices {
			items = append(items, deviceItem{device: dev})
		}
		m.DeviceList.SetItems(items)

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.Keys.Enter):
		if m.DeviceList.SelectedItem() != nil {
			m.Selected = true
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning {
			return m, nil
		}
		m.Err = nil
		return m, tea.Batch(
			func() tea.Msg { return scanStartMsg{} },
			m.scanDevices,
			m.Spinner.Tick,
		)

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.ManualErr = nil
		m.AddrInput.SetValue("")
		return m, m.AddrInput.Focus()
	}

	if !m.Scanning {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
	}
	return m, cmd
}

func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "esc":
		m.ManualMode = false
		m.AddrInput.Blur()
		return m, nil

	case "enter":
		dev, err := ParseManualAddress(m.AddrInput.Value())
		if err != nil {
			m.ManualErr = err
			return m, nil
		}
		items := append([]list.Item{deviceItem{device: dev}}, m.DeviceList.Items()...)
		m.DeviceList.SetItems(items)
		m.DeviceList.Select(0)
		m.ManualMode = false
		m.ManualErr = nil
		m.AddrInput.Blur()
		return m, nil
	}

	m.AddrInput, cmd = m.AddrInput.Update(msg)
	return m, cmd
}

// ParseManualAddress turns "host" or "host:port" into a device
func ParseManualAddress(value string) (*discovery.Device, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("address is required")
	}

	host, port := value, discovery.DefaultPort
	if h, p, err := net.SplitHostPort(value); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	}
	if host == "" {
		return nil, fmt.Errorf("address is required")
	}

	return &discovery.Device{
		ID:           ManualID,
		Hostname:     host,
		IP:           host,
		Port:         port,
		DiscoveredAt: time.Now(),
	}, nil
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning()
		helpText = m.Help.View(m.ScanningKeys)
	default:
		content = m.renderDeviceResults()
		helpText = m.Help.View(m.Keys)
	}
	return RenderApplicationContainer("", content, helpText, m.Width, m.Height)
}

func (m DiscoveryModel) renderScanning() string {
	elapsed := time.Since(m.ScanStartTime)
	fraction := 1.0
	if m.ScanTimeout > 0 {
		fraction = min(1.0, elapsed.Seconds()/m.ScanTimeout.Seconds())
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" SEARCHING FOR NOISE MONITORS"),
		SubtitleStyle.Render("Browsing the local network over mDNS..."),
		"",
		m.ProgressBar.ViewAs(fraction),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
	)
	return lipgloss.Place(max(m.Width-4, MinTerminalWidth-4), 0, lipgloss.Center, lipgloss.Top, content)
}

func (m DiscoveryModel) renderDeviceResults() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
	}

	if len(m.DeviceList.Items()) == 0 {
		b.WriteString("  ")
		b.WriteString(WarningStyle.Render("⚠ No noise monitors found on your network"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Ensure the device is powered on\n")
		b.WriteString("    • A device in setup mode answers at 192.168.4.1 on its own hotspot\n")
		b.WriteString("    • Press 'm' to enter an address, or 'r' to rescan\n")
		return b.String()
	}

	b.WriteString(m.DeviceList.View())
	return b.String()
}

func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(RenderSubtitle("Enter the device address (host or host:port)"))
	b.WriteString("\n\n  Address: ")
	b.WriteString(m.AddrInput.View())
	b.WriteString("\n")
	if m.ManualErr != nil {
		b.WriteString("\n")
		b.WriteString(RenderError(m.ManualErr.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// GetSelectedDevice returns the selected device (if any)
func (m DiscoveryModel) GetSelectedDevice() *discovery.Device {
	if !m.Selected {
		return nil
	}
	if item, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
		return item.device
	}
	return nil
}

func (m DiscoveryModel) scanDevices() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.ScanTimeout+time.Second)
	defer cancel()

	devices, err := m.scan(ctx)
	return scanCompleteMsg{devices: devices, err: err}
}
