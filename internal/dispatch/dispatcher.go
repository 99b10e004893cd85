package dispatch

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/debounce"
	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/logging"
)

// Values reads the current UI value of a field
type Values interface {
	Value(field string) string
}

// MapValues is a Values backed by a map
type MapValues map[string]string

// Value returns the field's value or ""
func (m MapValues) Value(field string) string { return m[field] }

// Sender sends one device command
type Sender interface {
	Send(ctx context.Context, path string, params url.Values) error
}

// Params builds a group's full parameter set from the current field values.
// Optional fields that are empty are left out, so partial groups such as LED
// brightness send only what the operator has.
func Params(group string, vals Values) (url.Values, error) {
	g, err := LookupGroup(group)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	for _, c := range GroupControls(group) {
		if c.Param == "" {
			continue
		}
		ui := vals.Value(c.Field)
		if ui == "" && c.Fallback == "" && !g.Save {
			continue
		}
		wire, err := c.ToWire(ui)
		if err != nil {
			return nil, err
		}
		params.Set(c.Param, wire)
	}
	if len(params) == 0 {
		return nil, deviceapi.NewValidationError("nothing to send for " + group)
	}
	return params, nil
}

// Recompose builds "#rrggbb" from a swatch's three channel fields
func Recompose(swatch string, vals Values) string {
	ch := ChannelFields(swatch)
	return deviceapi.HexColor(deviceapi.JoinRGB(
		ParseChannel(vals.Value(ch[0])),
		ParseChannel(vals.Value(ch[1])),
		ParseChannel(vals.Value(ch[2])),
	))
}

// Decompose splits "#rrggbb" into decimal channel values
func Decompose(hex string) ([3]string, error) {
	rgb, err := deviceapi.ParseHexColor(hex)
	if err != nil {
		return [3]string{}, err
	}
	r, g, b := deviceapi.SplitRGB(rgb)
	return [3]string{strconv.Itoa(r), strconv.Itoa(g), strconv.Itoa(b)}, nil
}

// Dispatcher turns group edits into debounced device commands
type Dispatcher struct {
	sched *debounce.Scheduler
}

// New creates a Dispatcher that sends through sender. Extra options are passed
// to the underlying debounce scheduler.
func New(sender Sender, opts ...debounce.Option) *Dispatcher {
	fire := func(ctx context.Context, group string, params url.Values) error {
		g, err := LookupGroup(group)
		if err != nil {
			return err
		}
		err = sender.Send(ctx, g.Path, params)
		logging.LogCommand(group, g.Path, params, err)
		return err
	}
	return &Dispatcher{sched: debounce.New(fire, opts...)}
}

// Dispatch schedules the group's full parameter set with the group's delay
// and returns the parameters that will be sent
func (d *Dispatcher) Dispatch(group string, vals Values) (url.Values, error) {
	g, err := LookupGroup(group)
	if err != nil {
		return nil, err
	}
	params, err := Params(group, vals)
	if err != nil {
		return nil, err
	}
	d.sched.Schedule(group, params, g.Delay)
	return params, nil
}

// Close stops all timers and waits for running commands. Unsent edits are
// dropped and logged.
func (d *Dispatcher) Close() {
	for name := range Groups {
		if d.sched.Pending(name) {
			logging.Warn("Dropping unsent command", zap.String("group", name))
		}
		if d.sched.InFlight(name) {
			logging.Debug("Waiting for running command", zap.String("group", name))
		}
	}
	d.sched.Close()
}
