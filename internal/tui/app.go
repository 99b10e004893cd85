package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/discovery"
	"github.com/muurk/noisepanel/internal/logging"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenDashboard Screen = "dashboard"
)

// PanelFactory builds the engine for a chosen device
type PanelFactory func(dev *discovery.Device) (Panel, error)

// AppModel is the top-level coordinator model that manages screen transitions.
// It owns the engine of the open dashboard: the engine runs while the
// dashboard is shown and is closed when the operator leaves it.
type AppModel struct {
	CurrentScreen Screen

	DiscoveryModel DiscoveryModel
	DashboardModel DashboardModel

	SelectedDevice *discovery.Device
	LastError      error

	Width  int
	Height int

	factory PanelFactory
	scan    ScanFunc
	stop    context.CancelFunc
}

// NewAppModel starts on the dashboard when a device is given, otherwise on
// discovery
func NewAppModel(factory PanelFactory, scan ScanFunc, device *discovery.Device) AppModel {
	m := AppModel{
		CurrentScreen:  ScreenDiscovery,
		DiscoveryModel: NewDiscoveryModel(scan),
		SelectedDevice: device,
		factory:        factory,
		scan:           scan,
	}
	if device != nil {
		m.CurrentScreen = ScreenDashboard
	}
	return m
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	if m.CurrentScreen == ScreenDashboard {
		return func() tea.Msg { return openDashboardMsg{} }
	}
	return m.DiscoveryModel.Init()
}

// openDashboardMsg defers engine start to Update so the model that owns the
// engine is the one bubbletea keeps
type openDashboardMsg struct{}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		updated, _ := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		m.DashboardModel.Width = msg.Width
		m.DashboardModel.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.Shutdown()
			return m, tea.Quit
		}

	case openDashboardMsg:
		return m.openDashboard()
	}

	switch m.CurrentScreen {
	case ScreenDiscovery:
		updated, cmd := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)

		if dev := m.DiscoveryModel.GetSelectedDevice(); dev != nil {
			m.DiscoveryModel.Selected = false
			m.SelectedDevice = dev
			return m.openDashboard()
		}

		if keyMsg, ok := msg.(tea.KeyMsg); ok && !m.DiscoveryModel.ManualMode {
			if keyMsg.String() == "q" || keyMsg.String() == "esc" {
				return m, tea.Quit
			}
		}
		return m, cmd

	case ScreenDashboard:
		if m.DashboardModel.Panel == nil {
			return m, nil
		}
		updated, cmd := m.DashboardModel.Update(msg)
		m.DashboardModel = updated.(DashboardModel)
		if m.DashboardModel.IsBackRequested() {
			return m.goBack()
		}
		return m, cmd
	}
	return m, nil
}

func (m AppModel) openDashboard() (tea.Model, tea.Cmd) {
	if m.SelectedDevice == nil || m.factory == nil {
		m.CurrentScreen = ScreenDiscovery
		return m, nil
	}

	p, err := m.factory(m.SelectedDevice)
	if err != nil {
		logging.Warn("Failed to open panel", zap.String("device", m.SelectedDevice.Address()), zap.Error(err))
		m.LastError = err
		m.CurrentScreen = ScreenDiscovery
		m.DiscoveryModel.Err = fmt.Errorf("open %s: %w", m.SelectedDevice.Address(), err)
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.stop = func() {
		cancel()
		p.Close()
	}
	go func() {
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			logging.Warn("Panel engine exited", zap.Error(err))
		}
	}()

	m.LastError = nil
	m.CurrentScreen = ScreenDashboard
	m.DashboardModel = NewDashboardModel(deviceLabel(m.SelectedDevice), p)
	m.DashboardModel.Width = m.Width
	m.DashboardModel.Height = m.Height
	return m, m.DashboardModel.Init()
}

func deviceLabel(d *discovery.Device) string {
	if d.ID == "" || d.ID == ManualID {
		return d.Address()
	}
	return fmt.Sprintf("noisemon-%s (%s)", d.ID, d.Address())
}

// goBack leaves the dashboard for a fresh discovery screen
func (m AppModel) goBack() (tea.Model, tea.Cmd) {
	m.Shutdown()
	m.CurrentScreen = ScreenDiscovery
	m.DiscoveryModel = NewDiscoveryModel(m.scan)
	m.DiscoveryModel.Width = m.Width
	m.DiscoveryModel.Height = m.Height
	return m, m.DiscoveryModel.Init()
}

// Shutdown stops the open dashboard's engine, if any. Call it on the final
// model after the program exits.
func (m *AppModel) Shutdown() {
	m.DashboardModel.Release()
	m.DashboardModel.unsubscribe = nil
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

// View renders the current screen
func (m AppModel) View() string {
	if m.CurrentScreen == ScreenDashboard {
		return m.DashboardModel.View()
	}
	return m.DiscoveryModel.View()
}
