package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/notify"
	"github.com/muurk/noisepanel/internal/provision"
	"github.com/muurk/noisepanel/internal/ui"
)

// Wi-Fi command flags
var (
	wifiPassword string
	wifiHidden   bool
	wifiWait     bool
	wifiTimeout  int
	assumeYes    bool
)

func init() {
	rootCmd.AddCommand(wifiCmd)
	wifiCmd.AddCommand(wifiScanCmd)
	wifiCmd.AddCommand(wifiConnectCmd)
	wifiCmd.AddCommand(wifiDisconnectCmd)

	wifiConnectCmd.Flags().StringVar(&wifiPassword, "password", "", "Network password (prompted for when the network is secured)")
	wifiConnectCmd.Flags().BoolVar(&wifiHidden, "hidden", false, "Save the SSID without scanning for it")
	wifiConnectCmd.Flags().BoolVar(&wifiWait, "wait", true, "Wait for the device to join the network")
	wifiConnectCmd.Flags().IntVar(&wifiTimeout, "timeout", 60, "Seconds to wait for the device to join")
	wifiDisconnectCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "Provision the device's Wi-Fi",
	Long: `Scan for networks from the device, save credentials, or drop the station link.

A device that has no working Wi-Fi runs a setup hotspot and answers at
192.168.4.1. Join the hotspot, then use these commands with
--device 192.168.4.1.`,
	Example: `  # Networks the device can see
  noisepanel wifi scan --device 192.168.4.1

  # Join a network, prompting for the password
  noisepanel wifi connect HomeNet --device 192.168.4.1

  # A network that does not broadcast its SSID
  noisepanel wifi connect Attic --hidden --password hunter2`,
}

var wifiScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List networks the device can see",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		flow := provision.NewFlow(newDeviceClient(t))

		fmt.Println(provision.MsgScanning)
		nets, err := flow.Scan(cmd.Context(), true)
		if err != nil {
			fmt.Print(ui.NewDeviceFailure(provision.MsgScanFailed, err).String())
			return err
		}
		if len(nets) == 0 {
			fmt.Print(ui.NewWarningResult(provision.MsgNoNetworks).String())
			fmt.Println("Use 'noisepanel wifi connect <ssid> --hidden' to enter a network manually")
			return nil
		}

		fmt.Printf("\n%d network(s):\n\n", len(nets))
		for _, n := range nets {
			fmt.Printf("  %s\n", deviceapi.FormatNetworkEntry(n))
		}
		return nil
	},
}

var wifiConnectCmd = &cobra.Command{
	Use:   "connect <ssid>",
	Short: "Save Wi-Fi credentials and join the network",
	Args:  cobra.ExactArgs(1),
	RunE:  runWiFiConnect,
}

func runWiFiConnect(cmd *cobra.Command, args []string) error {
	ssid := args[0]
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	client := newDeviceClient(t)
	flow := provision.NewFlow(client)
	ctx := cmd.Context()

	var notice *provision.Notice
	if wifiHidden {
		if wifiPassword == "" {
			if wifiPassword, err = readSecret("Password (empty for an open network): "); err != nil {
				return err
			}
		}
		notice, err = flow.SaveManual(ctx, ssid, wifiPassword)
	} else {
		notice, err = selectAndSave(cmd, flow, ssid)
	}
	if err != nil {
		msg := flow.View().Message
		if wifiHidden {
			msg = flow.View().ManualMessage
		}
		if msg == "" {
			msg = provision.MsgSaveFailed
		}
		fmt.Print(ui.NewDeviceFailure(msg, err).String())
		return err
	}

	fmt.Print(ui.NewSuccessResult(notice.Title,
		ui.Param{Key: "Device", Value: t.String()},
		ui.Param{Key: "SSID", Value: strings.TrimSpace(ssid)},
	).String())
	newNotifier().Send(notify.Payload{Title: notice.Title, Content: notice.Body})

	if !wifiWait {
		return nil
	}
	return waitForJoin(cmd, client)
}

// selectAndSave finds ssid in a fresh scan and saves it, asking for a password
// when the network is secured and none was given
func selectAndSave(cmd *cobra.Command, flow *provision.Flow, ssid string) (*provision.Notice, error) {
	fmt.Println(provision.MsgScanning)
	if _, err := flow.Scan(cmd.Context(), true); err != nil {
		return nil, err
	}
	if _, err := flow.Select(ssid); err != nil {
		return nil, fmt.Errorf("%w. Use --hidden for a network that does not broadcast its SSID", err)
	}

	notice, err := flow.Save(cmd.Context(), wifiPassword)
	if !errors.Is(err, provision.ErrCredentialRequired) {
		return notice, err
	}

	pw, err := readSecret(fmt.Sprintf("Password for %s: ", ssid))
	if err != nil {
		return nil, err
	}
	return flow.Save(cmd.Context(), pw)
}

// waitForJoin polls /status until the device reports a station address, then
// prints and sends the same notices the dashboard raises
func waitForJoin(cmd *cobra.Command, client *deviceapi.Client) error {
	fmt.Println("Waiting for the device to join the network...")
	fmt.Println("(Your computer may lose its link to the setup hotspot; rejoin your usual Wi-Fi if so.)")

	opts := deviceapi.DefaultVerifyOptions()
	opts.InitialDelay = 2 * time.Second
	opts.MaxRetryDelay = 5 * time.Second
	opts.MaxRetries = wifiTimeout / int(opts.MaxRetryDelay/time.Second)

	result := client.Verify(cmd.Context(), opts, deviceapi.ExpectConnected())
	if !result.Success {
		hints := []string{
			"Check the password and that the network is in range",
			"A device that cannot join reopens its setup hotspot",
			"Find it again with 'noisepanel discover' once it has joined",
		}
		err := result.Error
		if err == nil {
			err = fmt.Errorf("device did not report a connection after %d checks", result.Attempts)
		}
		fmt.Print(ui.NewFailureResult("Not connected yet", err, hints).String())
		return err
	}

	var edges provision.EdgeDetector
	sender := newNotifier()
	for _, n := range edges.Observe(result.Status) {
		fmt.Print(ui.NewSuccessResult(n.Title, ui.Param{Key: "Next", Value: n.Body}).String())
		sender.Send(notify.Payload{Title: n.Title, Content: n.Body, URL: n.URL})
	}
	return nil
}

var wifiDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Drop the device's station link",
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
		if !st.Connected {
			return fmt.Errorf("device is not connected to Wi-Fi")
		}

		if !assumeYes {
			warnings := []string{
				fmt.Sprintf("The device will leave %s and may reopen its setup hotspot.", st.SSID),
				"This computer loses contact with it until it is provisioned again.",
			}
			if !ui.Confirm(os.Stdin, os.Stdout, "Disconnect Wi-Fi", warnings, "Continue?") {
				fmt.Println("Cancelled")
				return nil
			}
		}

		if err := client.Disconnect(cmd.Context()); err != nil {
			fmt.Print(ui.NewDeviceFailure("Disconnect failed", err).String())
			return err
		}
		fmt.Print(ui.NewSuccessResult("Disconnected", ui.Param{Key: "Device", Value: t.String()}).String())
		return nil
	},
}

// readSecret prompts on stderr and reads a line without echo
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password required; pass it with --password")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
