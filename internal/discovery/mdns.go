package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/logging"
)

const (
	// ServiceType is the mDNS service type the noise monitor advertises
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the default HTTP port for the device
	DefaultPort = 80

	// ModelTXT is the TXT record value that identifies a noise monitor whose
	// hostname has been customised
	ModelTXT = "noisemon"
)

// hostPattern matches default device hostnames (e.g., "noisemon-3fa2c1.local")
var hostPattern = regexp.MustCompile(`^noisemon-([0-9A-Za-z]+)\.local\.?$`)

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration

	// browse is replaced in tests
	browse func(ctx context.Context, entries chan *zeroconf.ServiceEntry) error
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		browse:  browseZeroconf,
	}
}

func browseZeroconf(ctx context.Context, entries chan *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// ScanForDevices discovers all noise monitors on the local network until the
// timeout passes or ctx is done. Devices are de-duplicated by ID.
func (s *Scanner) ScanForDevices(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		devices []*Device
		seen    = make(map[string]bool)
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				device := parseServiceEntry(entry)
				if device == nil {
					continue
				}
				mu.Lock()
				if !seen[device.ID] {
					seen[device.ID] = true
					devices = append(devices, device)
					logging.Debug("Discovered device",
						zap.String("id", device.ID),
						zap.String("ip", device.IP),
						zap.Int("port", device.Port))
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := s.browse(ctx, entries); err != nil {
		return nil, err
	}

	<-ctx.Done()
	<-done

	mu.Lock()
	defer mu.Unlock()
	return devices, nil
}

// WaitForDevice waits for a specific device by ID.
// Returns the device or an error if not found within timeout.
func (s *Scanner) WaitForDevice(ctx context.Context, id string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Device, 1)

	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				device := parseServiceEntry(entry)
				if device != nil && strings.EqualFold(device.ID, id) {
					found <- device
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := s.browse(ctx, entries); err != nil {
		return nil, err
	}

	select {
	case device := <-found:
		return device, nil
	case <-ctx.Done():
		select {
		case device := <-found:
			return device, nil
		default:
		}
		return nil, fmt.Errorf("device %s not found within %s", id, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry is not a noise monitor.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil || entry.HostName == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	var id string
	if m := hostPattern.FindStringSubmatch(entry.HostName); len(m) == 2 {
		id = m[1]
	} else if metadata["model"] == ModelTXT {
		id = metadata["id"]
		if id == "" {
			id = strings.TrimSuffix(strings.TrimSuffix(entry.HostName, "."), ".local")
		}
	} else {
		return nil
	}

	// Prefer IPv4; the device's own pages link to its IPv4 address
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Device{
		ID:           id,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// QuickScan performs a scan with the given timeout
func QuickScan(ctx context.Context, timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.ScanForDevices(ctx)
}
