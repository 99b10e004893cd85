package config

import (
	"os"
	"strings"
	"time"
)

// Environment variables that override the identity preferences
const (
	IdentityURLEnvVar = "NOISEPANEL_IDENTITY_URL"
	AnonKeyEnvVar     = "NOISEPANEL_ANON_KEY"
)

// Registry represents the entire user configuration file.
// This stores user-defined metadata for noise monitors and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single noise monitor.
type Device struct {
	Address  string    `yaml:"address"`             // Host or IP the device answers on
	Port     int       `yaml:"port,omitempty"`      // HTTP port, 80 when unset
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultDevice   string          `yaml:"default_device,omitempty"` // Device name used when --device is absent
	AutoDiscover    bool            `yaml:"auto_discover"`            // Fall back to mDNS discovery when no device is known
	DiscoverTimeout int             `yaml:"discover_timeout"`         // mDNS discovery timeout in seconds
	Notifications   bool            `yaml:"notifications"`            // Show desktop notifications
	Identity        *IdentityPrefs  `yaml:"identity,omitempty"`
	Polling         *PollingPrefs   `yaml:"polling,omitempty"`
	EditGuard       *EditGuardPrefs `yaml:"edit_guard,omitempty"`
}

// IdentityPrefs locates the identity provider.
// Note: access tokens are NEVER stored here - they live in the OS keyring.
type IdentityPrefs struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"` // Public anon key; not a secret
}

// PollingPrefs holds the poll cadences as Go duration strings
type PollingPrefs struct {
	StatusInterval string `yaml:"status_interval"`
	LogInterval    string `yaml:"log_interval"`
}

// EditGuardPrefs holds the edit guard windows as Go duration strings
type EditGuardPrefs struct {
	QuietDelay    string `yaml:"quiet_delay"`
	RecencyWindow string `yaml:"recency_window"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		AutoDiscover:    true,
		DiscoverTimeout: 5,
		Notifications:   true,
		Identity:        &IdentityPrefs{},
		Polling: &PollingPrefs{
			StatusInterval: "2.5s",
			LogInterval:    "800ms",
		},
		EditGuard: &EditGuardPrefs{
			QuietDelay:    "1.2s",
			RecencyWindow: "4s",
		},
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves device metadata by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// EnsureDevice ensures a device entry exists in the registry.
func (r *Registry) EnsureDevice(name string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[name]; exists {
		return device
	}

	device := &Device{}
	r.Devices[name] = device
	return device
}

// UpdateDeviceLastSeen records where and when a device was last reached.
func (r *Registry) UpdateDeviceLastSeen(name, address string, port int) {
	device := r.EnsureDevice(name)
	device.LastSeen = time.Now()
	device.Address = address
	device.Port = port
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(name, nickname string) {
	device := r.EnsureDevice(name)
	device.Nickname = nickname
}

// ResolveDevice returns the device to talk to: the named one, else the
// default device, else the only registered device. It returns nil when the
// choice is ambiguous or nothing is registered.
func (r *Registry) ResolveDevice(name string) (string, *Device) {
	if name != "" {
		if d := r.Devices[name]; d != nil {
			return name, d
		}
		return "", nil
	}
	if r.Preferences != nil && r.Preferences.DefaultDevice != "" {
		if d := r.Devices[r.Preferences.DefaultDevice]; d != nil {
			return r.Preferences.DefaultDevice, d
		}
	}
	if len(r.Devices) == 1 {
		for n, d := range r.Devices {
			return n, d
		}
	}
	return "", nil
}

// IdentityConfig returns the identity provider URL and anon key, with the
// environment taking precedence over the file
func (p *Preferences) IdentityConfig() (url, anonKey string) {
	if p != nil && p.Identity != nil {
		url, anonKey = p.Identity.URL, p.Identity.AnonKey
	}
	if v := strings.TrimSpace(os.Getenv(IdentityURLEnvVar)); v != "" {
		url = v
	}
	if v := strings.TrimSpace(os.Getenv(AnonKeyEnvVar)); v != "" {
		anonKey = v
	}
	return url, anonKey
}

// StatusInterval returns the status poll cadence, or def when unset or invalid
func (p *Preferences) StatusInterval(def time.Duration) time.Duration {
	if p == nil || p.Polling == nil {
		return def
	}
	return parseDuration(p.Polling.StatusInterval, def)
}

// LogInterval returns the log poll cadence, or def when unset or invalid
func (p *Preferences) LogInterval(def time.Duration) time.Duration {
	if p == nil || p.Polling == nil {
		return def
	}
	return parseDuration(p.Polling.LogInterval, def)
}

// QuietDelay returns the edit guard quiet delay, or def when unset or invalid
func (p *Preferences) QuietDelay(def time.Duration) time.Duration {
	if p == nil || p.EditGuard == nil {
		return def
	}
	return parseDuration(p.EditGuard.QuietDelay, def)
}

// RecencyWindow returns the edit guard recency window, or def when unset or invalid
func (p *Preferences) RecencyWindow(def time.Duration) time.Duration {
	if p == nil || p.EditGuard == nil {
		return def
	}
	return parseDuration(p.EditGuard.RecencyWindow, def)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
