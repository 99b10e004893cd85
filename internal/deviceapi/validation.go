package deviceapi

import (
	"fmt"
	"strings"
)

// Accepted control ranges
const (
	MinThreshold  = 0
	MaxThreshold  = 100
	MinVolume     = 0
	MaxVolume     = 30
	MinBrightness = 0
	MaxBrightness = 255
	MaxPreset     = 7

	MinSamplePeriodMs = 50
	MaxSamplePeriodMs = 5000
	MinThresholdDb    = 0.1
	MaxThresholdDb    = 20.0
	MinHeartbeatSec   = 1
	MaxHeartbeatSec   = 600
	MinUploadMin      = 1
	MaxUploadMin      = 1440

	maxSSIDLength     = 32
	maxPasswordLength = 63
)

func validateRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return NewValidationError(fmt.Sprintf("%s must be %d-%d, got %d", name, lo, hi, v))
	}
	return nil
}

// ValidateThreshold validates a yellow or red noise threshold
func ValidateThreshold(v int) error {
	return validateRange("threshold", v, MinThreshold, MaxThreshold)
}

// ValidateVolume validates an MP3 volume
func ValidateVolume(v int) error {
	return validateRange("volume", v, MinVolume, MaxVolume)
}

// ValidateBrightness validates an LED brightness
func ValidateBrightness(v int) error {
	return validateRange("brightness", v, MinBrightness, MaxBrightness)
}

// ValidatePreset validates a status color preset index
func ValidatePreset(v int) error {
	return validateRange("color preset", v, 0, MaxPreset)
}

// ValidateDbLogConfig validates a logging cadence in device units.
// Returns a slice of validation errors (empty if valid).
func ValidateDbLogConfig(cfg DbLogConfig) []error {
	var errs []error

	if err := validateRange("sample period (ms)", cfg.SamplePeriodMs, MinSamplePeriodMs, MaxSamplePeriodMs); err != nil {
		errs = append(errs, err)
	}
	if err := validateRange("threshold (tenths of dB)", cfg.ThresholdTenths, int(MinThresholdDb*10), int(MaxThresholdDb*10)); err != nil {
		errs = append(errs, err)
	}
	if err := validateRange("heartbeat (ms)", cfg.HeartbeatMs, MinHeartbeatSec*1000, MaxHeartbeatSec*1000); err != nil {
		errs = append(errs, err)
	}
	if err := validateRange("upload period (ms)", cfg.UploadPeriodMs, MinUploadMin*60000, MaxUploadMin*60000); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// ValidateSSID validates a Wi-Fi SSID.
// SSIDs must be non-empty and <= 32 bytes.
func ValidateSSID(ssid string) error {
	if strings.TrimSpace(ssid) == "" {
		return NewValidationError("SSID is required")
	}
	if len(ssid) > maxSSIDLength {
		return NewValidationError(fmt.Sprintf("SSID too long (max %d bytes): %d bytes", maxSSIDLength, len(ssid)))
	}
	return nil
}

// ValidatePassword validates a WPA passphrase; open networks take an empty one
func ValidatePassword(password string, secure bool) error {
	if !secure {
		return nil
	}
	if password == "" {
		return NewValidationError("password is required for a secured network")
	}
	if len(password) > maxPasswordLength {
		return NewValidationError(fmt.Sprintf("password too long (max %d chars)", maxPasswordLength))
	}
	return nil
}

// FormatValidationErrors formats a list of validation errors into a readable string
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Validation errors:\n")
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return b.String()
}
