// Noisepanel is the operator control panel for networked noise monitors.
//
// It talks to a device's HTTP API on the local network, reconciles polled
// status with the operator's edits, and gates the controls behind an
// identity provider login with an admin role. Three front ends share one
// engine:
//
//   - a full-screen terminal dashboard (the default command)
//   - one-shot commands for scripting (status, set, wifi, play, ...)
//   - a local HTTP and websocket bridge for browsers (serve)
//
// Usage:
//
//	noisepanel [command] [flags]
//
// Running without arguments launches the dashboard.
// See 'noisepanel --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/config"
	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	deviceFlag    string
	devicePort    int
	configPath    string
	logLevel      string
	identityURL   string
	anonKey       string
	notifyDesktop bool
	account       string
)

// registry is loaded once per invocation by the root pre-run hook
var registry *config.Registry

var rootCmd = &cobra.Command{
	Use:   "noisepanel",
	Short: "Noise monitor control panel",
	Long: `An operator control panel for networked noise monitors.

Shows device status, guides Wi-Fi provisioning and, for operators with the
admin role, edits thresholds, LEDs, audio and logging settings.

If no command is specified, the interactive dashboard launches.`,
	Version:      version.Version,
	SilenceUsage: true,
	RunE:         runDashboard,
}

func init() {
	// Assigned here rather than in the literal: setup references rootCmd
	rootCmd.PersistentPreRunE = setup
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&deviceFlag, "device", "", "Device name from the config file, or host[:port] (skips discovery)")
	pf.IntVar(&devicePort, "port", 80, "Device HTTP port")
	pf.StringVar(&configPath, "config", "", "Config file (default is the per-user config directory)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)
	pf.StringVar(&identityURL, "identity-url", "", "Identity provider URL; overrides "+config.IdentityURLEnvVar)
	pf.StringVar(&anonKey, "anon-key", "", "Identity provider public key; overrides "+config.AnonKeyEnvVar)
	pf.BoolVar(&notifyDesktop, "notify", true, "Show desktop notifications for connectivity changes")
	pf.StringVar(&account, "account", "", "Keyring account the session is stored under")

	rootCmd.AddCommand(versionCmd)
}

// setup initializes logging and loads the config file for every command
func setup(cmd *cobra.Command, args []string) error {
	// The dashboard owns the terminal, so its log goes to a file
	if cmd == rootCmd && (logLevel != "" || os.Getenv(logging.LogLevelEnvVar) != "") {
		dir, err := config.GetConfigDir()
		if err == nil {
			err = os.MkdirAll(dir, 0700)
		}
		if err != nil {
			return fmt.Errorf("failed to prepare log directory: %w", err)
		}
		if err := logging.InitializeWithOutput(logLevel, filepath.Join(dir, "noisepanel.log")); err != nil {
			return err
		}
	} else if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	var err error
	if configPath != "" {
		registry, err = config.LoadFile(configPath)
	} else {
		registry, err = config.LoadRegistry()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cmd.Flags().Changed("notify") {
		notifyDesktop = registry.Preferences.Notifications
	}

	logging.Debug("Configuration loaded",
		zap.String("config", configPath),
		zap.Int("devices", len(registry.Devices)),
	)
	return nil
}

// saveRegistry writes the config back to where it was loaded from
func saveRegistry() error {
	if configPath != "" {
		return registry.SaveFile(configPath)
	}
	return registry.Save()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("noisepanel %s\n", version.Full())
	},
}
