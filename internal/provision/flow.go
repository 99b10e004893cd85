// Package provision drives the device's Wi-Fi provisioning: scanning with
// retry, picking a network, saving credentials, the manual-entry fallback,
// and the one-shot notices that follow a successful join.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/logging"
)

// Scan retry policy
const (
	ScanRetryInterval = 700 * time.Millisecond
	ScanMaxRetries    = 10
)

// Operator-facing messages
const (
	MsgScanning      = "Scanning..."
	MsgNoNetworks    = "No networks found."
	MsgScanFailed    = "Scan failed."
	MsgSaving        = "Saving Wi-Fi..."
	MsgSaved         = "Saved. Connecting..."
	MsgSaveFailed    = "Save failed."
	MsgSSIDRequired  = "SSID is required."
	MsgPasswordEmpty = "Password is required for a secured network."
)

var (
	// ErrCredentialRequired is returned when a secured network is saved without a password
	ErrCredentialRequired = errors.New("password required for secured network")

	// ErrSSIDRequired is returned when a manual save has no SSID
	ErrSSIDRequired = errors.New("SSID is required")

	// ErrNoSelection is returned when Save is called before Select
	ErrNoSelection = errors.New("no network selected")

	errEmptyScan = errors.New("scan returned no networks")
)

// Phase is the provisioning step the flow is in
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseResults
	PhaseEmpty
	PhaseSelected
	PhaseSaving
	PhaseReconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseResults:
		return "results"
	case PhaseEmpty:
		return "empty"
	case PhaseSelected:
		return "selected"
	case PhaseSaving:
		return "saving"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Device is the part of the device API the flow uses
type Device interface {
	Scan(ctx context.Context) ([]deviceapi.NetworkEntry, error)
	SaveWiFi(ctx context.Context, ssid, password string) error
}

// View is a copy of the flow's presentation state
type View struct {
	Phase           Phase                    `json:"phase"`
	Networks        []deviceapi.NetworkEntry `json:"networks"`
	Selected        string                   `json:"selected,omitempty"`
	Message         string                   `json:"message"`
	ManualVisible   bool                     `json:"manual_visible"`
	ManualMessage   string                   `json:"manual_message"`
	ScanRequested   bool                     `json:"scan_requested"`
	ManualDismissed bool                     `json:"manual_dismissed"`
}

// Option configures a Flow
type Option func(*Flow)

// WithBackOff replaces the scan retry policy
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(f *Flow) { f.newBackOff = newBackOff }
}

// WithChange registers a callback invoked after every state change
func WithChange(fn func(View)) Option {
	return func(f *Flow) { f.onChange = fn }
}

// Flow is safe for concurrent use; device calls never hold its lock
type Flow struct {
	dev        Device
	newBackOff func() backoff.BackOff
	onChange   func(View)

	mu       sync.Mutex
	view     View
	selected *deviceapi.NetworkEntry
}

// NewFlow creates a Flow for a device
func NewFlow(dev Device, opts ...Option) *Flow {
	f := &Flow{
		dev: dev,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(ScanRetryInterval), ScanMaxRetries)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// View returns a copy of the current state
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

func (f *Flow) snapshot() View {
	v := f.view
	v.Networks = append([]deviceapi.NetworkEntry(nil), f.view.Networks...)
	return v
}

// update applies fn under the lock and notifies the change callback outside it
func (f *Flow) update(fn func(v *View)) {
	f.mu.Lock()
	from := f.view.Phase
	fn(&f.view)
	to := f.view.Phase
	v := f.snapshot()
	cb := f.onChange
	f.mu.Unlock()

	logging.LogTransition("provision", from.String(), to.String())
	if cb != nil {
		cb(v)
	}
}

// Scan polls /scan, retrying while the result is empty. An explicit scan
// clears a previous manual-entry dismissal and allows the manual entry to be
// offered if the scan ends empty or fails.
func (f *Flow) Scan(ctx context.Context, explicit bool) ([]deviceapi.NetworkEntry, error) {
	f.update(func(v *View) {
		if explicit {
			v.ScanRequested = true
			v.ManualDismissed = false
		}
		v.Phase = PhaseScanning
		v.Networks = nil
		v.Message = ""
	})

	var nets []deviceapi.NetworkEntry
	attempts := 0
	op := func() error {
		attempts++
		got, err := f.dev.Scan(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(got) == 0 {
			return errEmptyScan
		}
		nets = got
		return nil
	}
	notify := func(err error, next time.Duration) {
		f.update(func(v *View) { v.Message = MsgScanning })
	}

	err := backoff.RetryNotify(op, backoff.WithContext(f.newBackOff(), ctx), notify)

	switch {
	case err == nil:
		logging.Debug("Scan complete", zap.Int("networks", len(nets)), zap.Int("attempts", attempts))
		f.update(func(v *View) {
			v.Phase = PhaseResults
			v.Networks = nets
			v.Message = ""
			v.ManualVisible = false
		})
		return nets, nil

	case errors.Is(err, errEmptyScan):
		f.update(func(v *View) {
			v.Phase = PhaseEmpty
			v.Message = MsgNoNetworks
			v.ManualVisible = v.ScanRequested && !v.ManualDismissed
		})
		return nil, nil

	default:
		logging.Warn("Scan failed", zap.Error(err), zap.Int("attempts", attempts))
		f.update(func(v *View) {
			v.Phase = PhaseEmpty
			v.Message = MsgScanFailed
			v.ManualVisible = v.ScanRequested && !v.ManualDismissed
		})
		return nil, err
	}
}

// Select picks a network from the last scan result
func (f *Flow) Select(ssid string) (deviceapi.NetworkEntry, error) {
	f.mu.Lock()
	var found *deviceapi.NetworkEntry
	for i := range f.view.Networks {
		if f.view.Networks[i].SSID == ssid {
			n := f.view.Networks[i]
			found = &n
			break
		}
	}
	f.mu.Unlock()

	if found == nil {
		return deviceapi.NetworkEntry{}, fmt.Errorf("network %q not in scan results", ssid)
	}

	f.update(func(v *View) {
		f.selected = found
		v.Phase = PhaseSelected
		v.Selected = found.SSID
	})
	return *found, nil
}

// Save sends the selected network's credentials. A secured network with an
// empty password is rejected before any request is sent.
func (f *Flow) Save(ctx context.Context, password string) (*Notice, error) {
	f.mu.Lock()
	sel := f.selected
	f.mu.Unlock()

	if sel == nil {
		return nil, ErrNoSelection
	}
	if sel.Secure && password == "" {
		f.update(func(v *View) { v.Message = MsgPasswordEmpty })
		return nil, ErrCredentialRequired
	}

	f.update(func(v *View) {
		v.Phase = PhaseSaving
		v.Message = MsgSaving
	})

	if err := f.dev.SaveWiFi(ctx, sel.SSID, password); err != nil {
		f.update(func(v *View) {
			v.Phase = PhaseSelected
			v.Message = MsgSaveFailed
		})
		return nil, err
	}

	f.update(func(v *View) {
		v.Phase = PhaseReconnecting
		v.Message = MsgSaved
	})
	return &Notice{
		Kind:  NoticeSaved,
		Title: "Wi-Fi Saved",
		Body:  fmt.Sprintf(`If connection succeeds, join "%s" then open the device via its router IP (it will show here).`, sel.SSID),
	}, nil
}

// SaveManual sends credentials typed into the manual entry
func (f *Flow) SaveManual(ctx context.Context, ssid, password string) (*Notice, error) {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		f.update(func(v *View) { v.ManualMessage = MsgSSIDRequired })
		return nil, ErrSSIDRequired
	}

	f.update(func(v *View) {
		v.Phase = PhaseSaving
		v.Selected = ssid
		v.ManualMessage = MsgSaving
	})

	if err := f.dev.SaveWiFi(ctx, ssid, password); err != nil {
		f.update(func(v *View) {
			v.Phase = PhaseEmpty
			v.ManualMessage = MsgSaveFailed
		})
		return nil, err
	}

	f.update(func(v *View) {
		v.Phase = PhaseReconnecting
		v.ManualMessage = MsgSaved
	})
	return &Notice{
		Kind:  NoticeSaved,
		Title: "Wi-Fi Saved",
		Body:  "Trying to connect. If it succeeds, join the same Wi-Fi and open the device via its router IP (it will show above).",
	}, nil
}

// DismissManual hides the manual entry until the next explicit scan or until
// the device reports a connection
func (f *Flow) DismissManual() {
	f.update(func(v *View) {
		v.ManualDismissed = true
		v.ManualVisible = false
	})
}

// Observe folds a polled status into the flow: a connected device resets the
// scan request and the manual dismissal, and the status message follows the
// device's connectivity.
func (f *Flow) Observe(st *deviceapi.DeviceStatus) {
	f.update(func(v *View) {
		if st.Connected {
			v.ScanRequested = false
			v.ManualDismissed = false
			v.ManualVisible = false
			if v.Phase == PhaseReconnecting || v.Phase == PhaseSaving {
				v.Phase = PhaseIdle
				f.selected = nil
				v.Selected = ""
			}
		} else if v.ManualDismissed {
			v.ManualVisible = false
		}

		switch {
		case st.APGrace && st.IP != "":
			v.Message = "Connected to Wi-Fi. Setup AP will turn off soon. Connect your phone to the same Wi-Fi and open: " + DeviceURL(st.IP)
		case !st.NeedsWiFiFix() && st.Connected:
			ssid := st.SSID
			if ssid == "" {
				ssid = "-"
			}
			v.Message = "Connected to Wi-Fi: " + ssid
		}
	})
}
