package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents a noise monitor found on the network
type Device struct {
	// ID is the device identifier from its hostname or TXT record (e.g., "3fa2c1")
	ID string

	// Hostname is the mDNS hostname (e.g., "noisemon-3fa2c1.local.")
	Hostname string

	// IP is the device address, IPv4 when advertised
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the mDNS TXT record data (e.g., "model=noisemon", "fw=1.4.2")
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Noise monitor %s (%s) at %s", d.ID, d.Hostname, d.Address())
}

// Address returns host:port, bracketing IPv6 addresses
func (d *Device) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return "http://" + d.Address()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
