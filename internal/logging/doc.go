// Package logging provides structured logging for noisepanel.
//
// This package wraps a global zap logger with convenience functions for the
// patterns used throughout the panel: poll results, device commands, state
// transitions, and bridge traffic.
//
// # Silent by Default
//
// One-shot CLI commands and the terminal dashboard must not print log lines
// over their own output. Unless a level is passed to Initialize or set in
// NOISEPANEL_LOG_LEVEL, the logger is a no-op.
//
//	if err := logging.Initialize(flagLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// The dashboard owns the terminal, so it logs to a file:
//
//	logging.InitializeWithOutput(level, filepath.Join(dir, "noisepanel.log"))
//
// # Specialized Logging
//
//	logging.LogPoll("status", elapsed, err)
//	logging.LogCommand("led", "/setLedBrightness", params, err)
//	logging.LogTransition("viewstate", "LoggedOut", "LoggedInAdmin")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once Initialize has returned.
package logging
