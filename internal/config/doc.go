// Package config provides user configuration management for noisepanel.
//
// This package manages a YAML-based configuration file that remembers the
// noise monitors the operator has used (address, port, nickname, last seen)
// and the panel preferences: the default device, discovery behaviour, the
// identity provider location, poll cadences and edit guard windows.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/noisepanel/config.yaml or $HOME/.config/noisepanel/config.yaml
//   - macOS: $HOME/.config/noisepanel/config.yaml
//   - Windows: %LOCALAPPDATA%\noisepanel\config.yaml
//
// # Security
//
// Wi-Fi passwords are never written to this file. Identity-provider access
// tokens are kept in the OS keyring by the session package. The anon key is
// a public client key and may be stored here, or supplied through the
// NOISEPANEL_ANON_KEY environment variable.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.UpdateDeviceLastSeen("office", "10.0.0.7", 80)
//	registry.SetDeviceNickname("office", "Open-plan office")
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
