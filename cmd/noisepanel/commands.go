package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/dispatch"
	"github.com/muurk/noisepanel/internal/discovery"
	"github.com/muurk/noisepanel/internal/session"
	"github.com/muurk/noisepanel/internal/ui"
	"github.com/muurk/noisepanel/internal/viewstate"
)

// Command flags
var (
	outputFormat string
	scanTimeout  int
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(speakerCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(stopCmd)

	statusCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Discovery timeout in seconds (default from config)")
}

// statusCmd shows the device's status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device status",
	Long: `Read /status from the device and show network state, controls and faults.

Fields the device leaves out are shown with their documented defaults.`,
	Example: `  # Status of the default device
  noisepanel status

  # A specific device, as JSON for scripting
  noisepanel status --device 192.168.1.40 --format json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	st, err := newDeviceClient(t).Status(cmd.Context())
	if err != nil {
		fmt.Print(ui.NewDeviceFailure("Status unavailable", err).String())
		return err
	}
	rememberTarget(t)

	switch outputFormat {
	case "compact":
		fmt.Println(st.Summary())
	case "json":
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	default:
		fmt.Print(ui.NewHeader("Device Status", "status", ui.Param{Key: "Device", Value: t.String()}).String())
		label, badge := st.NetworkState()
		fmt.Println(ui.BadgeStyle(badge).Render("● " + label))
		fmt.Println(st.FormatDetailed())
	}
	return nil
}

// discoverCmd finds devices over mDNS
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find noise monitors on the network",
	Long: `Browse the local network over mDNS for noise monitors.

Devices advertise as noisemon-<id>.local, or with a model=noisemon TXT
record. Found devices are added to the config file so they can be named
with --device.`,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := discoverTimeout()
	if scanTimeout > 0 {
		timeout = time.Duration(scanTimeout) * time.Second
	}
	fmt.Printf("Scanning for noise monitors (timeout: %s)...\n\n", timeout)

	devices, err := discovery.QuickScan(cmd.Context(), timeout)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Print(ui.NewWarningResult("No devices found").String())
		fmt.Println("Troubleshooting:")
		fmt.Println("  - Ensure the device is powered on and on this network")
		fmt.Println("  - A device in setup mode answers at 192.168.4.1 on its own hotspot")
		fmt.Println("  - Use --device to specify an address if discovery fails")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		name := "noisemon-" + d.ID
		fmt.Printf("%d. %s\n", i+1, name)
		fmt.Printf("   Address: %s\n", d.Address())
		if fw := d.GetMetadata("fw"); fw != "" {
			fmt.Printf("   Firmware: %s\n", fw)
		}
		fmt.Println()
		rememberTarget(&target{Name: name, Host: d.IP, Port: d.Port})
	}

	fmt.Println("Use 'noisepanel --device <name>' to open a device's panel")
	return nil
}

// requireAdmin applies the panel's login gate to one-shot control commands
func requireAdmin(cmd *cobra.Command, st *deviceapi.DeviceStatus) error {
	sess, err := newSessionStore().Load()
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		return fmt.Errorf("failed to load session: %w", err)
	}

	var lookup viewstate.RoleLookup
	if c, err := newIdentity(); err == nil {
		lookup = c
	}

	res := viewstate.New(lookup).Evaluate(cmd.Context(), sess, st.Internet)
	if res.Surface == viewstate.SurfaceControls {
		return nil
	}
	if res.State == viewstate.LoggedOut {
		return fmt.Errorf("not logged in. Run 'noisepanel login' first")
	}
	if res.Reason == "" {
		return fmt.Errorf("not authorized: the %s role is required", session.RoleAdmin)
	}
	return errors.New(res.Reason)
}

// setCmd writes one control field
var setCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Set a device control",
	Long: `Set one control field, using the same units and ranges as the dashboard.

The field's whole command group is sent, with the other fields taken from
the device's current status. Requires an admin session.

Fields:
` + fieldHelp(),
	Example: `  # Volume 0-30
  noisepanel set vol 18

  # Thresholds are saved together; red stays as it is
  noisepanel set yellow 65

  # Logging heartbeat in seconds, threshold in dB
  noisepanel set db_hb 30
  noisepanel set db_thr 2.5

  # Status LED color for the Wi-Fi state
  noisepanel set sr_wifi "#00ff80"`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func fieldHelp() string {
	var b strings.Builder
	for _, c := range dispatch.Controls {
		if c.Kind == dispatch.KindChannel {
			continue
		}
		fmt.Fprintf(&b, "  %-10s %s\n", c.Field, c.Group)
	}
	return b.String()
}

func runSet(cmd *cobra.Command, args []string) error {
	field, value := args[0], args[1]
	c, err := dispatch.Lookup(field)
	if err != nil {
		return err
	}
	g, err := dispatch.LookupGroup(c.Group)
	if err != nil {
		return err
	}

	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	client := newDeviceClient(t)
	ctx := cmd.Context()

	st, err := client.Status(ctx)
	if err != nil {
		fmt.Print(ui.NewDeviceFailure("Status unavailable", err).String())
		return err
	}
	if err := requireAdmin(cmd, st); err != nil {
		return err
	}

	vals := dispatch.MapValues{}
	for _, ctl := range dispatch.Controls {
		if ctl.FromStatus != nil {
			vals[ctl.Field] = ctl.FromStatus(st)
		}
	}
	vals[field] = value
	if c.Kind == dispatch.KindChannel {
		vals[c.Swatch] = dispatch.Recompose(c.Swatch, vals)
	}

	params, err := dispatch.Params(g.Name, vals)
	if err != nil {
		return err
	}
	if err := client.Send(ctx, g.Path, params); err != nil {
		fmt.Print(ui.NewDeviceFailure("Update failed", err).String())
		return err
	}

	details := []ui.Param{{Key: "Device", Value: t.String()}}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		details = append(details, ui.Param{Key: k, Value: params.Get(k)})
	}
	fmt.Print(ui.NewSuccessResult("Sent "+g.Path, details...).String())
	return nil
}

var speakerCmd = &cobra.Command{
	Use:   "speaker",
	Short: "Toggle the speaker",
	Long:  `Read the speaker state from the device and send the opposite. Requires an admin session.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		client := newDeviceClient(t)
		st, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		if err := requireAdmin(cmd, st); err != nil {
			return err
		}
		if st.SpeakerError {
			return fmt.Errorf("MP3 player not detected")
		}
		if err := client.SetSpeaker(cmd.Context(), !st.Speaker); err != nil {
			return err
		}
		state := "OFF"
		if !st.Speaker {
			state = "ON"
		}
		fmt.Printf("Speaker: %s\n", state)
		return nil
	},
}

var playCmd = &cobra.Command{
	Use:   "play <track>",
	Short: "Play a test track (1-3)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > deviceapi.TrackCount {
			return fmt.Errorf("track must be 1-%d, got %q", deviceapi.TrackCount, args[0])
		}
		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		client := newDeviceClient(t)
		st, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		if err := requireAdmin(cmd, st); err != nil {
			return err
		}
		if !st.Speaker {
			return fmt.Errorf("speaker is off. Run 'noisepanel speaker' first")
		}
		if err := client.PlayTest(cmd.Context(), n); err != nil {
			return err
		}
		fmt.Printf("Playing %02d...\n", n)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		client := newDeviceClient(t)
		st, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		if err := requireAdmin(cmd, st); err != nil {
			return err
		}
		if err := client.StopPlayback(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Stopped")
		return nil
	},
}
