package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/discovery"
	"github.com/muurk/noisepanel/internal/editguard"
	"github.com/muurk/noisepanel/internal/identity"
	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/metrics"
	"github.com/muurk/noisepanel/internal/notify"
	"github.com/muurk/noisepanel/internal/panel"
	"github.com/muurk/noisepanel/internal/poller"
	"github.com/muurk/noisepanel/internal/session"
)

// errNoIdentity is returned when no identity provider is configured
var errNoIdentity = errors.New("no identity provider configured; set --identity-url and --anon-key")

// target is the device a command talks to
type target struct {
	Name string // registry name; empty for an ad-hoc address
	Host string
	Port int
}

func (t *target) String() string {
	addr := net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	if t.Name == "" {
		return addr
	}
	return fmt.Sprintf("%s (%s)", t.Name, addr)
}

// resolveTarget picks the device from --device, the config file, or mDNS
// discovery, in that order
func resolveTarget(cmd *cobra.Command) (*target, error) {
	portSet := cmd.Flags().Changed("port")

	if deviceFlag == "" || registry.GetDevice(deviceFlag) != nil {
		if name, d := registry.ResolveDevice(deviceFlag); d != nil {
			port := d.Port
			if port == 0 {
				port = discovery.DefaultPort
			}
			if portSet {
				port = devicePort
			}
			return &target{Name: name, Host: d.Address, Port: port}, nil
		}
	}

	if deviceFlag != "" {
		host, port, err := splitAddress(deviceFlag, devicePort)
		if err != nil {
			return nil, err
		}
		return &target{Host: host, Port: port}, nil
	}

	if !registry.Preferences.AutoDiscover {
		return nil, fmt.Errorf("no device configured. Use --device or 'noisepanel config add-device'")
	}

	dev, err := discoverOne(cmd.Context())
	if err != nil {
		return nil, err
	}
	t := &target{Name: "noisemon-" + dev.ID, Host: dev.IP, Port: dev.Port}
	rememberTarget(t)
	return t, nil
}

// splitAddress parses "host" or "host:port"
func splitAddress(value string, defPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(value)
	if err != nil {
		// No port
		return value, defPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", value)
	}
	return host, port, nil
}

func discoverTimeout() time.Duration {
	if s := registry.Preferences.DiscoverTimeout; s > 0 {
		return time.Duration(s) * time.Second
	}
	return discovery.DefaultScanTimeout
}

func discoverOne(ctx context.Context) (*discovery.Device, error) {
	fmt.Fprintln(os.Stderr, "No device specified, attempting auto-discovery...")
	devices, err := discovery.QuickScan(ctx, discoverTimeout())
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no devices found. Use --device to specify an address")
	case 1:
		fmt.Fprintf(os.Stderr, "Found %s\n\n", devices[0])
		return devices[0], nil
	}

	fmt.Fprintf(os.Stderr, "Found %d devices:\n", len(devices))
	for i, d := range devices {
		fmt.Fprintf(os.Stderr, "%d. %s\n", i+1, d)
	}
	return nil, fmt.Errorf("multiple devices found. Use --device to pick one")
}

// rememberTarget records a named device as seen now
func rememberTarget(t *target) {
	if t.Name == "" {
		return
	}
	registry.UpdateDeviceLastSeen(t.Name, t.Host, t.Port)
	if err := saveRegistry(); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
	}
}

func newDeviceClient(t *target) *deviceapi.Client {
	return deviceapi.NewClient(t.Host, t.Port)
}

// newIdentity builds the identity client from flags, environment and config
func newIdentity() (*identity.Client, error) {
	url, key := registry.Preferences.IdentityConfig()
	if identityURL != "" {
		url = identityURL
	}
	if anonKey != "" {
		key = anonKey
	}
	c := identity.NewClient(url, key)
	if !c.Configured() {
		return nil, errNoIdentity
	}
	return c, nil
}

func newSessionStore() session.Store {
	return session.NewKeyringStore(account)
}

func newNotifier() notify.Sender {
	if !notifyDesktop {
		return notify.Nop{}
	}
	return notify.NewDesktopSender("noisepanel")
}

// newEngine wires a panel engine for a device. met may be nil.
func newEngine(t *target, met *metrics.Metrics) *panel.Engine {
	var id panel.Identity
	if c, err := newIdentity(); err == nil {
		id = c
	} else {
		logging.Info("Login disabled", zap.Error(err))
	}

	prefs := registry.Preferences
	return panel.New(newDeviceClient(t), id, newSessionStore(), panel.Options{
		StatusInterval: prefs.StatusInterval(poller.DefaultStatusInterval),
		LogInterval:    prefs.LogInterval(poller.DefaultLogInterval),
		QuietDelay:     prefs.QuietDelay(editguard.DefaultQuietDelay),
		RecencyWindow:  prefs.RecencyWindow(editguard.DefaultRecencyWindow),
		Notifier:       newNotifier(),
		Metrics:        met,
	})
}
