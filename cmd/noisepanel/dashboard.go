package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/discovery"
	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/metrics"
	"github.com/muurk/noisepanel/internal/server"
	"github.com/muurk/noisepanel/internal/tui"
	"github.com/muurk/noisepanel/internal/ui"
)

// metaName carries a registry name on a device the dashboard opens directly
const metaName = "name"

// runDashboard launches the full-screen dashboard. It opens the configured
// device directly, or starts on the discovery screen when none is known.
func runDashboard(cmd *cobra.Command, args []string) error {
	if !ui.IsInteractive() {
		return fmt.Errorf("the dashboard needs a terminal; see 'noisepanel --help' for one-shot commands")
	}

	var start *discovery.Device
	if _, d := registry.ResolveDevice(deviceFlag); deviceFlag != "" || d != nil {
		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		start = &discovery.Device{
			ID:       t.Name,
			Hostname: t.Host,
			IP:       t.Host,
			Port:     t.Port,
			Metadata: map[string]string{metaName: t.Name},
		}
		if t.Name == "" {
			start.ID = tui.ManualID
		}
	}

	factory := func(d *discovery.Device) (tui.Panel, error) {
		t := targetFor(d)
		rememberTarget(t)
		logging.Info("Opening dashboard", zap.String("device", t.String()))
		return newEngine(t, nil), nil
	}
	scan := func(ctx context.Context) ([]*discovery.Device, error) {
		return discovery.QuickScan(ctx, discoverTimeout())
	}

	app := tui.NewAppModel(factory, scan, start)
	final, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	if m, ok := final.(tui.AppModel); ok {
		m.Shutdown()
	}
	if err != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// targetFor maps a device chosen on the discovery screen to a target
func targetFor(d *discovery.Device) *target {
	t := &target{Host: d.IP, Port: d.Port}
	switch {
	case d.GetMetadata(metaName) != "":
		t.Name = d.GetMetadata(metaName)
	case d.ID != tui.ManualID && d.ID != "":
		t.Name = "noisemon-" + d.ID
	}
	return t
}

// Serve command flags
var (
	serveHost    string
	servePort    int
	serveOrigins []string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Interface to listen on")
	serveCmd.Flags().IntVar(&servePort, "listen-port", server.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allowed-origin", nil, "Browser origin allowed to open the websocket (repeatable)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the panel as a local HTTP and websocket bridge",
	Long: `Run one panel engine for the device and expose it to browsers.

Endpoints:
  GET  /api/snapshot   current panel state as JSON
  GET  /ws             websocket: snapshots out, operator intents in
  GET  /metrics        Prometheus metrics
  GET  /healthz        liveness

The bridge listens on localhost by default. Device commands keep going
through the same edit guard and debounce as the dashboard.`,
	Example: `  noisepanel serve --device lab
  noisepanel serve --host 0.0.0.0 --allowed-origin http://panel.local:3000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		rememberTarget(t)

		met := metrics.New()
		eng := newEngine(t, met)
		defer eng.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := eng.Run(ctx); err != nil {
				logging.Error("Panel engine stopped", zap.Error(err))
			}
		}()

		srv := server.New(&server.Config{
			Host:           serveHost,
			Port:           servePort,
			AllowedOrigins: serveOrigins,
		}, eng, met.Handler())
		if err := srv.Listen(); err != nil {
			return err
		}

		fmt.Print(ui.NewHeader("Panel Bridge", "serve",
			ui.Param{Key: "Device", Value: t.String()},
			ui.Param{Key: "Listening", Value: "http://" + srv.Addr()},
		).String())
		fmt.Println("Press Ctrl+C to stop")

		return srv.Start(ctx)
	},
}
