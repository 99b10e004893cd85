package deviceapi

import (
	"fmt"
	"math"
	"strings"
)

// Badge is the severity class of a connectivity indicator
type Badge string

const (
	BadgeOK   Badge = "ok"
	BadgeWarn Badge = "warn"
	BadgeBad  Badge = "bad"
)

// NetworkState returns the connectivity label and its badge
func (s *DeviceStatus) NetworkState() (string, Badge) {
	switch {
	case s.Connected && s.Internet:
		return "Connected + Internet", BadgeOK
	case s.Connected:
		return "Connected (No Internet)", BadgeWarn
	default:
		return "Not connected", BadgeBad
	}
}

// Subtitle returns the one-line device availability summary
func (s *DeviceStatus) Subtitle() string {
	switch {
	case s.Connected && s.Internet:
		return "Device online"
	case s.Connected:
		return "Device connected (no internet)"
	default:
		return "Device offline"
	}
}

// NeedsWiFiFix reports whether the provisioning surface should be offered
func (s *DeviceStatus) NeedsWiFiFix() bool {
	return !s.Connected || !s.Internet
}

// SignalBars maps an RSSI in dBm to 0-4 bars
func SignalBars(rssi *int) int {
	if rssi == nil {
		return 0
	}
	switch v := *rssi; {
	case v >= -55:
		return 4
	case v >= -65:
		return 3
	case v >= -75:
		return 2
	case v >= -85:
		return 1
	default:
		return 0
	}
}

// BarsGlyph renders signal bars as a fixed-width glyph
func BarsGlyph(bars int) string {
	glyphs := []string{"▁", "▃", "▅", "▇"}
	var b strings.Builder
	for i := 0; i < 4; i++ {
		if i < bars {
			b.WriteString(glyphs[i])
		} else {
			b.WriteString("·")
		}
	}
	return b.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Details returns the address line shown under the network state
func (s *DeviceStatus) Details() string {
	return fmt.Sprintf("STA IP: %s | GW: %s | AP IP: %s", dash(s.IP), dash(s.Gateway), dash(s.APIP))
}

// ThresholdDb returns the logging threshold in dB (one decimal place)
func (s *DeviceStatus) ThresholdDb() float64 {
	return float64(s.ThresholdTenths) / 10.0
}

// HeartbeatSeconds returns the heartbeat period in whole seconds
func (s *DeviceStatus) HeartbeatSeconds() int {
	return int(math.Round(float64(s.HeartbeatMs) / 1000.0))
}

// UploadMinutes returns the upload period in whole minutes
func (s *DeviceStatus) UploadMinutes() int {
	return int(math.Round(float64(s.UploadPeriodMs) / 60000.0))
}

// Summary returns a one-line summary of the device status
func (s *DeviceStatus) Summary() string {
	state, _ := s.NetworkState()
	return fmt.Sprintf("Noise monitor %s @ %s (%s)", dash(s.SSID), dash(s.IP), state)
}

// FormatNetwork returns a formatted block with connectivity information
func (s *DeviceStatus) FormatNetwork() string {
	var b strings.Builder
	state, badge := s.NetworkState()

	b.WriteString("=== Network ===\n")
	b.WriteString(fmt.Sprintf("State:    %s [%s]\n", state, badge))
	b.WriteString(fmt.Sprintf("SSID:     %s\n", dash(s.SSID)))
	if s.RSSI != nil {
		b.WriteString(fmt.Sprintf("Signal:   %s %d dBm\n", BarsGlyph(SignalBars(s.RSSI)), *s.RSSI))
	} else {
		b.WriteString("Signal:   -\n")
	}
	b.WriteString(s.Details() + "\n")
	if s.APGrace {
		b.WriteString("Setup AP: still active (grace period)\n")
	}

	return b.String()
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// FormatControls returns a formatted block with every control value in UI units
func (s *DeviceStatus) FormatControls() string {
	var b strings.Builder

	b.WriteString("=== Controls ===\n")
	b.WriteString(fmt.Sprintf("Thresholds:   yellow %d, red %d\n", s.Yellow, s.Red))
	b.WriteString(fmt.Sprintf("Speaker:      %s (volume %d/%d)\n", onOff(s.Speaker), s.Volume, MaxVolume))
	b.WriteString(fmt.Sprintf("Brightness:   green %d, yellow %d, red %d, status %d\n",
		s.GreenBrightness, s.YellowBrightness, s.RedBrightness, s.StatusBrightness))
	b.WriteString(fmt.Sprintf("Noise LEDs:   %s\n", onOff(s.NoiseLEDs)))
	b.WriteString(fmt.Sprintf("Microphone:   %s\n", onOff(s.Mic)))
	b.WriteString(fmt.Sprintf("Serial log:   %s\n", onOff(s.SerialLogging)))
	b.WriteString(fmt.Sprintf("dB logging:   sample %d ms, threshold %.1f dB, heartbeat %d s, upload %d min\n",
		s.SamplePeriodMs, s.ThresholdDb(), s.HeartbeatSeconds(), s.UploadMinutes()))
	b.WriteString("Status LEDs: ")
	for _, state := range LedStates {
		b.WriteString(fmt.Sprintf(" %s=%s", state, HexColor(s.StatusRGB(state))))
	}
	b.WriteString("\n")

	return b.String()
}

// FormatFaults returns the fault banner text, or "" when the device reports none
func (s *DeviceStatus) FormatFaults() string {
	faults := s.Faults()
	if len(faults) == 0 {
		return ""
	}
	return "System Alert: " + strings.Join(faults, " | ")
}

// FormatDetailed returns the full multi-block status report
func (s *DeviceStatus) FormatDetailed() string {
	var b strings.Builder
	b.WriteString(s.FormatNetwork())
	b.WriteString("\n")
	b.WriteString(s.FormatControls())
	if f := s.FormatFaults(); f != "" {
		b.WriteString("\n")
		b.WriteString(f)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatNetworkEntry renders one scan row
func FormatNetworkEntry(n NetworkEntry) string {
	sec := "Open"
	if n.Secure {
		sec = "Secured"
	}
	rssi := n.RSSI
	return fmt.Sprintf("%-32s %s | %d dBm %s", n.SSID, sec, n.RSSI, BarsGlyph(SignalBars(&rssi)))
}
