package deviceapi

import (
	"fmt"
	"strconv"
	"strings"
)

// ColorPreset is one entry of the fixed palette accepted by /setStatusColors
type ColorPreset struct {
	Index int
	Name  string
}

// ColorPresets is the device's fixed status color palette
var ColorPresets = []ColorPreset{
	{0, "Off"},
	{1, "Red"},
	{2, "Green"},
	{3, "Blue"},
	{4, "Yellow"},
	{5, "Cyan"},
	{6, "Magenta"},
	{7, "White"},
}

// PresetByName looks up a palette index by case-insensitive name or by number
func PresetByName(name string) (int, error) {
	name = strings.TrimSpace(name)
	if n, err := strconv.Atoi(name); err == nil {
		if err := ValidatePreset(n); err != nil {
			return 0, err
		}
		return n, nil
	}
	for _, p := range ColorPresets {
		if strings.EqualFold(p.Name, name) {
			return p.Index, nil
		}
	}
	return 0, NewValidationError(fmt.Sprintf("unknown color preset %q", name))
}

// HexColor renders 0xRRGGBB as "#rrggbb"
func HexColor(rgb int) string {
	return fmt.Sprintf("#%06x", uint32(rgb)&0xFFFFFF)
}

// ParseHexColor parses "#rrggbb" (the leading '#' is optional)
func ParseHexColor(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, NewValidationError(fmt.Sprintf("color must be #rrggbb, got %q", s))
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, NewValidationError(fmt.Sprintf("color must be #rrggbb, got %q", s))
	}
	return int(v), nil
}

// SplitRGB returns the red, green and blue channels of 0xRRGGBB
func SplitRGB(rgb int) (r, g, b int) {
	return (rgb >> 16) & 0xFF, (rgb >> 8) & 0xFF, rgb & 0xFF
}

// JoinRGB composes channels into 0xRRGGBB, clamping each to 0..255
func JoinRGB(r, g, b int) int {
	return ClampChannel(r)<<16 | ClampChannel(g)<<8 | ClampChannel(b)
}

// ClampChannel limits a color channel to 0..255
func ClampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
