package deviceapi

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// LedState names one of the five status-LED states whose color is configurable
type LedState string

const (
	LedBoot  LedState = "boot"
	LedAP    LedState = "ap"
	LedWiFi  LedState = "wifi"
	LedNoise LedState = "noi"
	LedOff   LedState = "off"
)

// LedStates lists the status-LED states in the order the device reports them
var LedStates = []LedState{LedBoot, LedAP, LedWiFi, LedNoise, LedOff}

// DeviceStatus is the document returned by GET /status.
//
// Every field has a safe default (see DefaultStatus); ParseStatus falls back to
// it per field when the device omits a key or sends the wrong type.
type DeviceStatus struct {
	// Connectivity
	Connected bool `json:"connected"`
	Internet  bool `json:"internet"`
	APGrace   bool `json:"apGrace"`

	// Network identity
	SSID    string `json:"ssid"`
	RSSI    *int   `json:"rssi"` // nil when the device has no station link
	IP      string `json:"ip"`
	Gateway string `json:"gw"`
	APIP    string `json:"apip"`

	// Noise thresholds (percent of full scale)
	Yellow int `json:"yellow"`
	Red    int `json:"red"`

	// LED brightness, 0-255
	GreenBrightness  int `json:"ngbrt"`
	YellowBrightness int `json:"nybrt"`
	RedBrightness    int `json:"nrbrt"`
	StatusBrightness int `json:"stbrt"`

	// Status LED colors as 0xRRGGBB
	BootRGB  int `json:"sr_boot"`
	APRGB    int `json:"sr_ap"`
	WiFiRGB  int `json:"sr_wifi"`
	NoiseRGB int `json:"sr_noi"`
	OffRGB   int `json:"sr_off"`

	// Enable flags
	NoiseLEDs     bool `json:"nleden"`
	Mic           bool `json:"micen"`
	SerialLogging bool `json:"serlog"`
	Speaker       bool `json:"speaker"`

	Volume int `json:"mp3vol"`

	// Logging cadence in device units
	SamplePeriodMs  int `json:"db_samp"`
	ThresholdTenths int `json:"db_thr10"`
	HeartbeatMs     int `json:"db_hb"`
	UploadPeriodMs  int `json:"db_up"`

	// Subsystem faults
	SDError      bool `json:"sderr"`
	MicError     bool `json:"micerr"`
	SpeakerError bool `json:"mp3err"`
	BackendError bool `json:"supaerr"`
}

// DefaultStatus returns the status used when the device cannot be read
func DefaultStatus() *DeviceStatus {
	return &DeviceStatus{
		GreenBrightness:  40,
		YellowBrightness: 40,
		RedBrightness:    80,
		StatusBrightness: 40,
		BootRGB:          0x0000FF,
		APRGB:            0x0000FF,
		WiFiRGB:          0x00FF00,
		NoiseRGB:         0xFFFF00,
		OffRGB:           0xFF0000,
		NoiseLEDs:        true,
		Mic:              true,
		SerialLogging:    true,
		Volume:           30,
		SamplePeriodMs:   100,
		ThresholdTenths:  10,
		HeartbeatMs:      8000,
		UploadPeriodMs:   3600000,
	}
}

// StatusRGB returns the configured color for a status-LED state
func (s *DeviceStatus) StatusRGB(state LedState) int {
	switch state {
	case LedBoot:
		return s.BootRGB
	case LedAP:
		return s.APRGB
	case LedWiFi:
		return s.WiFiRGB
	case LedNoise:
		return s.NoiseRGB
	case LedOff:
		return s.OffRGB
	}
	return 0
}

// Faults returns the operator-facing descriptions of every reported subsystem fault
func (s *DeviceStatus) Faults() []string {
	var faults []string
	if s.SDError {
		faults = append(faults, "SD card not detected")
	}
	if s.MicError {
		faults = append(faults, "MIC not detected / stuck at 0")
	}
	if s.BackendError {
		faults = append(faults, "Backend error (recent post/upload failed)")
	}
	if s.SpeakerError {
		faults = append(faults, "MP3 player not detected")
	}
	return faults
}

// NetworkEntry is one row of a GET /scan result
type NetworkEntry struct {
	SSID   string `json:"ssid"`
	RSSI   int    `json:"rssi"`
	Secure bool   `json:"secure"`
}

// CleanJSONResponse extracts the first complete JSON value from a device response.
//
// The firmware writes its documents straight into the socket buffer and
// occasionally leaves trailing bytes behind the closing brace:
//
//	{"connected":true,"ip":"10.0.0.7"}\x00\x00
//
// Both objects and arrays are handled; anything after the matching close is dropped.
func CleanJSONResponse(data []byte) ([]byte, error) {
	start := -1
	var open, close byte
	for i, b := range data {
		if b == '{' || b == '[' {
			start = i
			open = b
			close = '}'
			if b == '[' {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return nil, fmt.Errorf("no JSON document found in response")
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(data); i++ {
		b := data[i]

		if escaped {
			escaped = false
			continue
		}
		if b == '\\' && inString {
			escaped = true
			continue
		}
		if b == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch b {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return data[start : i+1], nil
			}
		}
	}

	return nil, fmt.Errorf("unclosed JSON document in response")
}

// ParseStatus decodes a status document field by field.
// A missing or mistyped field keeps its DefaultStatus value; only a document
// that is not a JSON object at all is an error.
func ParseStatus(data []byte) (*DeviceStatus, error) {
	clean, err := CleanJSONResponse(data)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(clean, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	st := DefaultStatus()

	boolField(fields, "connected", &st.Connected)
	boolField(fields, "internet", &st.Internet)
	boolField(fields, "apGrace", &st.APGrace)

	stringField(fields, "ssid", &st.SSID)
	stringField(fields, "ip", &st.IP)
	stringField(fields, "gw", &st.Gateway)
	stringField(fields, "apip", &st.APIP)
	if raw, ok := fields["rssi"]; ok {
		if v, ok := decodeInt(raw); ok {
			st.RSSI = &v
		}
	}

	intField(fields, "yellow", &st.Yellow)
	intField(fields, "red", &st.Red)

	intField(fields, "ngbrt", &st.GreenBrightness)
	intField(fields, "nybrt", &st.YellowBrightness)
	intField(fields, "nrbrt", &st.RedBrightness)
	intField(fields, "stbrt", &st.StatusBrightness)

	intField(fields, "sr_boot", &st.BootRGB)
	intField(fields, "sr_ap", &st.APRGB)
	intField(fields, "sr_wifi", &st.WiFiRGB)
	intField(fields, "sr_noi", &st.NoiseRGB)
	intField(fields, "sr_off", &st.OffRGB)

	boolField(fields, "nleden", &st.NoiseLEDs)
	boolField(fields, "micen", &st.Mic)
	boolField(fields, "serlog", &st.SerialLogging)
	boolField(fields, "speaker", &st.Speaker)

	intField(fields, "mp3vol", &st.Volume)

	intField(fields, "db_samp", &st.SamplePeriodMs)
	intField(fields, "db_thr10", &st.ThresholdTenths)
	intField(fields, "db_hb", &st.HeartbeatMs)
	intField(fields, "db_up", &st.UploadPeriodMs)

	boolField(fields, "sderr", &st.SDError)
	boolField(fields, "micerr", &st.MicError)
	boolField(fields, "mp3err", &st.SpeakerError)
	boolField(fields, "supaerr", &st.BackendError)

	return st, nil
}

// ParseNetworks decodes a scan result, dropping hidden networks and collapsing
// duplicate SSIDs to their strongest entry. The result is sorted strongest first.
func ParseNetworks(data []byte) ([]NetworkEntry, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	clean, err := CleanJSONResponse(data)
	if err != nil {
		return nil, err
	}

	var raw []NetworkEntry
	if err := json.Unmarshal(clean, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan result: %w", err)
	}

	index := make(map[string]int, len(raw))
	nets := make([]NetworkEntry, 0, len(raw))
	for _, n := range raw {
		if n.SSID == "" {
			continue
		}
		if i, seen := index[n.SSID]; seen {
			if n.RSSI > nets[i].RSSI {
				nets[i].RSSI = n.RSSI
			}
			nets[i].Secure = nets[i].Secure || n.Secure
			continue
		}
		index[n.SSID] = len(nets)
		nets = append(nets, n)
	}

	sort.SliceStable(nets, func(i, j int) bool { return nets[i].RSSI > nets[j].RSSI })
	return nets, nil
}

func boolField(fields map[string]json.RawMessage, key string, dst *bool) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		*dst = b
		return
	}
	// Some firmware builds report flags as 0/1
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		*dst = n != 0
	}
}

func intField(fields map[string]json.RawMessage, key string, dst *int) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return
	}
	if v, ok := decodeInt(raw); ok {
		*dst = v
	}
}

func stringField(fields map[string]json.RawMessage, key string, dst *string) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*dst = s
	}
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func decodeInt(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	n = math.Round(n)
	// Device fields are 32-bit on the firmware; anything wider is garbage
	if math.IsNaN(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}
