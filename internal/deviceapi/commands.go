package deviceapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Command paths
const (
	PathSetThresholds     = "/setThresholds"
	PathSetSpeaker        = "/setSpeaker"
	PathStopMp3           = "/stopMp3"
	PathSetMp3Volume      = "/setMp3Volume"
	PathSetLedBrightness  = "/setLedBrightness"
	PathSetNoiseLeds      = "/setNoiseLedsEnabled"
	PathSetMicEnabled     = "/setMicEnabled"
	PathSetSerialLogging  = "/setSerialLogging"
	PathSetDbLogConfig    = "/setDbLogConfig"
	PathSetStatusColors   = "/setStatusColors"
	PathSetStatusRgb      = "/setStatusRgb"
	playTestPathTemplate  = "/playTest%03d"
	TrackCount            = 3
	enabledParam          = "enabled"
	volumeParam           = "vol"
	thresholdYellowParam  = "yellow"
	thresholdRedParam     = "red"
)

// LedBrightness holds an optional brightness per LED group; nil entries are not sent
type LedBrightness struct {
	Green  *int
	Yellow *int
	Red    *int
	Status *int
}

// DbLogConfig is the logging cadence in device units
type DbLogConfig struct {
	SamplePeriodMs  int
	ThresholdTenths int
	HeartbeatMs     int
	UploadPeriodMs  int
}

// FlagValue renders a boolean the way the device expects it
func FlagValue(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// PlayTestPath returns the path that plays test track n (1-based)
func PlayTestPath(n int) string {
	return fmt.Sprintf(playTestPathTemplate, n)
}

// SetThresholds sets the yellow and red noise thresholds
func (c *Client) SetThresholds(ctx context.Context, yellow, red int) error {
	if err := ValidateThreshold(yellow); err != nil {
		return fmt.Errorf("yellow: %w", err)
	}
	if err := ValidateThreshold(red); err != nil {
		return fmt.Errorf("red: %w", err)
	}
	return c.Send(ctx, PathSetThresholds, url.Values{
		thresholdYellowParam: {strconv.Itoa(yellow)},
		thresholdRedParam:    {strconv.Itoa(red)},
	})
}

// SetSpeaker switches the speaker amplifier
func (c *Client) SetSpeaker(ctx context.Context, on bool) error {
	return c.Send(ctx, PathSetSpeaker, url.Values{enabledParam: {FlagValue(on)}})
}

// PlayTest starts test track n (1..TrackCount)
func (c *Client) PlayTest(ctx context.Context, n int) error {
	if n < 1 || n > TrackCount {
		return NewValidationError(fmt.Sprintf("track must be 1-%d, got %d", TrackCount, n))
	}
	return c.Send(ctx, PlayTestPath(n), nil)
}

// StopPlayback stops the MP3 player
func (c *Client) StopPlayback(ctx context.Context) error {
	return c.Send(ctx, PathStopMp3, nil)
}

// SetVolume sets the MP3 volume
func (c *Client) SetVolume(ctx context.Context, vol int) error {
	if err := ValidateVolume(vol); err != nil {
		return err
	}
	return c.Send(ctx, PathSetMp3Volume, url.Values{volumeParam: {strconv.Itoa(vol)}})
}

// SetLedBrightness sets any subset of the LED brightness channels
func (c *Client) SetLedBrightness(ctx context.Context, b LedBrightness) error {
	params := url.Values{}
	for _, ch := range []struct {
		name string
		v    *int
	}{{"ng", b.Green}, {"ny", b.Yellow}, {"nr", b.Red}, {"st", b.Status}} {
		if ch.v == nil {
			continue
		}
		if err := ValidateBrightness(*ch.v); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
		params.Set(ch.name, strconv.Itoa(*ch.v))
	}
	if len(params) == 0 {
		return NewValidationError("no brightness channel given")
	}
	return c.Send(ctx, PathSetLedBrightness, params)
}

// SetNoiseLEDs enables or disables the noise indicator LEDs
func (c *Client) SetNoiseLEDs(ctx context.Context, on bool) error {
	return c.Send(ctx, PathSetNoiseLeds, url.Values{enabledParam: {FlagValue(on)}})
}

// SetMic enables or disables noise sampling
func (c *Client) SetMic(ctx context.Context, on bool) error {
	return c.Send(ctx, PathSetMicEnabled, url.Values{enabledParam: {FlagValue(on)}})
}

// SetSerialLogging enables or disables the serial console log
func (c *Client) SetSerialLogging(ctx context.Context, on bool) error {
	return c.Send(ctx, PathSetSerialLogging, url.Values{enabledParam: {FlagValue(on)}})
}

// SetDbLogConfig sets the logging cadence
func (c *Client) SetDbLogConfig(ctx context.Context, cfg DbLogConfig) error {
	if errs := ValidateDbLogConfig(cfg); len(errs) > 0 {
		return errs[0]
	}
	return c.Send(ctx, PathSetDbLogConfig, cfg.Params())
}

// Params renders the cadence as query parameters
func (cfg DbLogConfig) Params() url.Values {
	return url.Values{
		"samp":  {strconv.Itoa(cfg.SamplePeriodMs)},
		"thr10": {strconv.Itoa(cfg.ThresholdTenths)},
		"hb":    {strconv.Itoa(cfg.HeartbeatMs)},
		"up":    {strconv.Itoa(cfg.UploadPeriodMs)},
	}
}

// SetStatusColors assigns preset colors (0..7) to status-LED states
func (c *Client) SetStatusColors(ctx context.Context, presets map[LedState]int) error {
	params := url.Values{}
	for state, p := range presets {
		if err := ValidatePreset(p); err != nil {
			return fmt.Errorf("%s: %w", state, err)
		}
		params.Set(string(state), strconv.Itoa(p))
	}
	return c.Send(ctx, PathSetStatusColors, params)
}

// SetStatusRgb assigns 0xRRGGBB colors to status-LED states
func (c *Client) SetStatusRgb(ctx context.Context, colors map[LedState]int) error {
	params := url.Values{}
	for state, rgb := range colors {
		if rgb < 0 || rgb > 0xFFFFFF {
			return NewValidationError(fmt.Sprintf("%s: color out of range: %d", state, rgb))
		}
		params.Set(string(state), HexColor(rgb))
	}
	return c.Send(ctx, PathSetStatusRgb, params)
}
