package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/poller"
	"github.com/muurk/noisepanel/internal/ui"
)

var followLogs bool

func init() {
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(monitorCmd)

	for _, c := range []*cobra.Command{eventsCmd, monitorCmd} {
		c.Flags().BoolVarP(&followLogs, "follow", "f", false, "Keep polling and print new lines")
	}
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the device event log",
	Long: `Show the device's event log with each line colored by severity.

Errors, failures and timeouts are shown in red; warnings, retries and
disconnects in amber; connections and successes in green.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLog(cmd, "events", (*deviceapi.Client).Events)
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show the live noise monitor log",
	Long: `Show the device's live monitor output. The device only produces it while the
microphone is enabled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLog(cmd, "monitor", (*deviceapi.Client).Monitor)
	},
}

type logFetch func(c *deviceapi.Client, ctx context.Context) (string, error)

func runLog(cmd *cobra.Command, name string, fetch logFetch) error {
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	client := newDeviceClient(t)

	text, err := fetch(client, cmd.Context())
	if err != nil {
		fmt.Print(ui.NewDeviceFailure(poller.FetchFailText, err).String())
		return err
	}
	lines := poller.ClassifyLog(text)
	printLog(lines)
	if !followLogs {
		return nil
	}

	interval := registry.Preferences.LogInterval(poller.DefaultLogInterval)
	if name == "events" {
		interval = registry.Preferences.StatusInterval(poller.DefaultStatusInterval)
	}

	seen := len(lines)
	p := poller.New()
	p.Add(name, interval, func(ctx context.Context) error {
		text, err := fetch(client, ctx)
		if err != nil {
			return err
		}
		lines := poller.ClassifyLog(text)
		// The device keeps a bounded buffer; a shorter log means it rolled over
		if len(lines) < seen {
			seen = 0
		}
		printLog(lines[seen:])
		seen = len(lines)
		return nil
	})

	fmt.Printf("\n(following every %s, Ctrl+C to stop)\n", interval.Round(time.Millisecond))
	return p.Run(cmd.Context())
}

func printLog(lines []poller.LogLine) {
	if len(lines) > 0 {
		fmt.Println(ui.RenderLog(lines))
	}
}
