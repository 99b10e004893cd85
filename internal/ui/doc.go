// Package ui renders the output of noisepanel's one-shot commands.
//
// Unlike the interactive dashboard in package tui, these components follow a
// "run once and exit" pattern: a command header, a success, warning or
// failure box, and colour helpers for badges and classified log lines.
// Failure boxes built with NewDeviceFailure take their message and
// troubleshooting tips from the device error classification.
//
// Example:
//
//	fmt.Println(ui.NewHeader("Wi-Fi connect", "noisepanel wifi connect",
//	    ui.Param{Key: "Device", Value: client.BaseURL}))
//	if err != nil {
//	    fmt.Println(ui.NewDeviceFailure("Could not save credentials", err))
//	}
package ui
