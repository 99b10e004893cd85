// Package dispatch maps operator edits onto device commands.
//
// Every editable field is described once in the Controls table: which debounce
// group it belongs to, which query parameter carries it, and how its UI value
// converts to and from device units. A single generic handler turns the current
// field values of a group into the group's full parameter set and hands it to
// the debounce scheduler.
package dispatch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/noisepanel/internal/deviceapi"
)

// ErrUnknownControl is returned for a field or group that is not in the table
var ErrUnknownControl = errors.New("unknown control")

// Kind selects the conversion between a field's UI value and its wire value
type Kind int

const (
	KindInt     Kind = iota // integer in the same unit on both sides
	KindFlag                // checkbox, "1"/"0" on the wire
	KindHex                 // color swatch, "#rrggbb" on both sides
	KindChannel             // one 0..255 channel of a swatch; never sent directly
	KindDecibel             // one decimal dB in the UI, tenths on the wire
	KindSeconds             // seconds in the UI, milliseconds on the wire
	KindMinutes             // minutes in the UI, milliseconds on the wire
)

// Group names
const (
	GroupVolume     = "volume"
	GroupLED        = "led"
	GroupColors     = "colors"
	GroupRGB        = "rgb"
	GroupThresholds = "thresholds"
	GroupDbLog      = "dblog"
	GroupNoiseLEDs  = "noiseleds"
	GroupMic        = "mic"
	GroupSerialLog  = "serlog"
)

// Group is one coalesced device command
type Group struct {
	Name  string
	Path  string
	Delay time.Duration

	// Save groups are sent only on an explicit save intent, never on edit
	Save bool
}

// Groups lists every debounce group by name
var Groups = map[string]Group{
	GroupVolume:     {Name: GroupVolume, Path: deviceapi.PathSetMp3Volume, Delay: 120 * time.Millisecond},
	GroupLED:        {Name: GroupLED, Path: deviceapi.PathSetLedBrightness, Delay: 120 * time.Millisecond},
	GroupColors:     {Name: GroupColors, Path: deviceapi.PathSetStatusColors, Delay: 160 * time.Millisecond},
	GroupRGB:        {Name: GroupRGB, Path: deviceapi.PathSetStatusRgb, Delay: 160 * time.Millisecond},
	GroupThresholds: {Name: GroupThresholds, Path: deviceapi.PathSetThresholds, Save: true},
	GroupDbLog:      {Name: GroupDbLog, Path: deviceapi.PathSetDbLogConfig, Save: true},
	GroupNoiseLEDs:  {Name: GroupNoiseLEDs, Path: deviceapi.PathSetNoiseLeds},
	GroupMic:        {Name: GroupMic, Path: deviceapi.PathSetMicEnabled},
	GroupSerialLog:  {Name: GroupSerialLog, Path: deviceapi.PathSetSerialLogging},
}

// Control describes one editable field
type Control struct {
	Field string
	Group string
	Param string
	Kind  Kind

	// Min and Max bound the UI value
	Min, Max float64

	// Clamp pulls out-of-range values into bounds instead of rejecting them
	Clamp bool

	// Fallback replaces an empty UI value on send; "" makes the field optional
	// for partial groups and required for save groups
	Fallback string

	// Swatch is the color field a channel belongs to
	Swatch string

	// FromStatus renders the device value in UI units; nil fields are never
	// populated from a poll
	FromStatus func(*deviceapi.DeviceStatus) string
}

// Controls is the single declarative table of editable fields, in display order
var Controls = buildControls()

var controlIndex = func() map[string]Control {
	idx := make(map[string]Control, len(Controls))
	for _, c := range Controls {
		idx[c.Field] = c
	}
	return idx
}()

func itoa(get func(*deviceapi.DeviceStatus) int) func(*deviceapi.DeviceStatus) string {
	return func(s *deviceapi.DeviceStatus) string { return strconv.Itoa(get(s)) }
}

func flag(get func(*deviceapi.DeviceStatus) bool) func(*deviceapi.DeviceStatus) string {
	return func(s *deviceapi.DeviceStatus) string { return deviceapi.FlagValue(get(s)) }
}

func buildControls() []Control {
	cs := []Control{
		{Field: "yellow", Group: GroupThresholds, Param: "yellow", Kind: KindInt,
			Min: deviceapi.MinThreshold, Max: deviceapi.MaxThreshold,
			FromStatus: itoa(func(s *deviceapi.DeviceStatus) int { return s.Yellow })},
		{Field: "red", Group: GroupThresholds, Param: "red", Kind: KindInt,
			Min: deviceapi.MinThreshold, Max: deviceapi.MaxThreshold,
			FromStatus: itoa(func(s *deviceapi.DeviceStatus) int { return s.Red })},

		{Field: "vol", Group: GroupVolume, Param: "vol", Kind: KindInt,
			Min: deviceapi.MinVolume, Max: deviceapi.MaxVolume, Clamp: true,
			FromStatus: itoa(func(s *deviceapi.DeviceStatus) int { return s.Volume })},

		{Field: "ng", Group: GroupLED, Param: "ng", Kind: KindInt,
			Min: deviceapi.MinBrightness, Max: deviceapi.MaxBrightness, Clamp: true,
			FromStatus: itoa(func(s *deviceapi.DeviceStatus) int { return s.GreenBrightness })},
		{Field: "ny", Group: GroupLED, Param: "ny", Kind: KindInt,
			Min: deviceapi.MinBrightness, Max: deviceapi.MaxBrightness, Clamp: true,
			FromStatus: itoa(func(s *deviceapi.DeviceStatus) int { return s.YellowBrightness })},
		{Field: "nr", Group: GroupLED, Param: "nr", Kind: KindInt,
			Min: deviceapi.MinBrightness, Max: deviceapi.MaxBrightness, Clamp: true,
			FromStatus: itoa(func(s *deviceapi.DeviceStatus) int { return s.RedBrightness })},
		{Field: "st", Group: GroupLED, Param: "st", Kind: KindInt,
			Min: deviceapi.MinBrightness, Max: deviceapi.MaxBrightness, Clamp: true,
			FromStatus: itoa(func(s *deviceapi.DeviceStatus) int { return s.StatusBrightness })},

		{Field: "nleden", Group: GroupNoiseLEDs, Param: "enabled", Kind: KindFlag,
			FromStatus: flag(func(s *deviceapi.DeviceStatus) bool { return s.NoiseLEDs })},
		{Field: "micen", Group: GroupMic, Param: "enabled", Kind: KindFlag,
			FromStatus: flag(func(s *deviceapi.DeviceStatus) bool { return s.Mic })},
		{Field: "serlog", Group: GroupSerialLog, Param: "enabled", Kind: KindFlag,
			FromStatus: flag(func(s *deviceapi.DeviceStatus) bool { return s.SerialLogging })},

		{Field: "db_samp", Group: GroupDbLog, Param: "samp", Kind: KindInt,
			Min: deviceapi.MinSamplePeriodMs, Max: deviceapi.MaxSamplePeriodMs, Fallback: "100",
			FromStatus: itoa(func(s *deviceapi.DeviceStatus) int { return s.SamplePeriodMs })},
		{Field: "db_thr", Group: GroupDbLog, Param: "thr10", Kind: KindDecibel,
			Min: deviceapi.MinThresholdDb, Max: deviceapi.MaxThresholdDb, Fallback: "1.0",
			FromStatus: func(s *deviceapi.DeviceStatus) string {
				return strconv.FormatFloat(s.ThresholdDb(), 'f', 1, 64)
			}},
		{Field: "db_hb", Group: GroupDbLog, Param: "hb", Kind: KindSeconds,
			Min: deviceapi.MinHeartbeatSec, Max: deviceapi.MaxHeartbeatSec, Fallback: "8",
			FromStatus: itoa((*deviceapi.DeviceStatus).HeartbeatSeconds)},
		{Field: "db_up", Group: GroupDbLog, Param: "up", Kind: KindMinutes,
			Min: deviceapi.MinUploadMin, Max: deviceapi.MaxUploadMin, Fallback: "60",
			FromStatus: itoa((*deviceapi.DeviceStatus).UploadMinutes)},
	}

	for _, state := range deviceapi.LedStates {
		state := state
		swatch := SwatchField(state)
		cs = append(cs, Control{
			Field: swatch, Group: GroupRGB, Param: string(state), Kind: KindHex,
			FromStatus: func(s *deviceapi.DeviceStatus) string {
				return deviceapi.HexColor(s.StatusRGB(state))
			},
		})
		for i, suffix := range channelSuffixes {
			i := i
			cs = append(cs, Control{
				Field: swatch + suffix, Group: GroupRGB, Kind: KindChannel,
				Min: 0, Max: 255, Clamp: true, Swatch: swatch,
				FromStatus: func(s *deviceapi.DeviceStatus) string {
					r, g, b := deviceapi.SplitRGB(s.StatusRGB(state))
					return strconv.Itoa([3]int{r, g, b}[i])
				},
			})
		}
	}

	// Palette presets have no status readback
	for _, state := range deviceapi.LedStates {
		cs = append(cs, Control{
			Field: "sc_" + string(state), Group: GroupColors, Param: string(state), Kind: KindInt,
			Min: 0, Max: deviceapi.MaxPreset,
		})
	}

	return cs
}

var channelSuffixes = [3]string{"_r", "_g", "_b"}

// SwatchField returns the color field ID for a status LED state
func SwatchField(state deviceapi.LedState) string {
	return "sr_" + string(state)
}

// ChannelFields returns the red, green and blue field IDs of a swatch
func ChannelFields(swatch string) [3]string {
	return [3]string{swatch + channelSuffixes[0], swatch + channelSuffixes[1], swatch + channelSuffixes[2]}
}

// Lookup returns the control for a field ID
func Lookup(field string) (Control, error) {
	c, ok := controlIndex[field]
	if !ok {
		return Control{}, fmt.Errorf("%w: field %q", ErrUnknownControl, field)
	}
	return c, nil
}

// LookupGroup returns a group by name
func LookupGroup(name string) (Group, error) {
	g, ok := Groups[name]
	if !ok {
		return Group{}, fmt.Errorf("%w: group %q", ErrUnknownControl, name)
	}
	return g, nil
}

// GroupControls returns the controls of a group in table order
func GroupControls(name string) []Control {
	var out []Control
	for _, c := range Controls {
		if c.Group == name {
			out = append(out, c)
		}
	}
	return out
}

// ToWire converts a UI value to the device value for its query parameter
func (c Control) ToWire(ui string) (string, error) {
	ui = strings.TrimSpace(ui)
	if ui == "" {
		ui = c.Fallback
	}
	if ui == "" {
		return "", deviceapi.NewValidationError(fmt.Sprintf("%s is required", c.Field))
	}

	switch c.Kind {
	case KindFlag:
		return deviceapi.FlagValue(ParseFlag(ui)), nil

	case KindHex:
		rgb, err := deviceapi.ParseHexColor(ui)
		if err != nil {
			return "", err
		}
		return deviceapi.HexColor(rgb), nil

	case KindChannel:
		return strconv.Itoa(ParseChannel(ui)), nil
	}

	v, err := strconv.ParseFloat(ui, 64)
	if err != nil {
		return "", deviceapi.NewValidationError(fmt.Sprintf("%s must be a number, got %q", c.Field, ui))
	}
	v, err = c.bound(v)
	if err != nil {
		return "", err
	}

	switch c.Kind {
	case KindDecibel:
		return strconv.Itoa(max(1, int(math.Round(v*10)))), nil
	case KindSeconds:
		return strconv.Itoa(int(math.Round(v)) * 1000), nil
	case KindMinutes:
		return strconv.Itoa(int(math.Round(v)) * 60000), nil
	default:
		return strconv.Itoa(int(math.Round(v))), nil
	}
}

func (c Control) bound(v float64) (float64, error) {
	if c.Min == 0 && c.Max == 0 {
		return v, nil
	}
	if v >= c.Min && v <= c.Max {
		return v, nil
	}
	if c.Clamp {
		return math.Min(math.Max(v, c.Min), c.Max), nil
	}
	return 0, deviceapi.NewValidationError(fmt.Sprintf("%s must be %s-%s, got %s",
		c.Field, formatBound(c.Min), formatBound(c.Max), formatBound(v)))
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseFlag reads a checkbox value
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ParseChannel reads one color channel; non-numeric input is 0
func ParseChannel(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return deviceapi.ClampChannel(v)
}
