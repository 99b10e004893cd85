package panel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/dispatch"
	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/viewstate"
)

// Operator-facing control messages
const (
	MsgSaving     = "Saving..."
	MsgSaved      = "Saved."
	MsgSaveFailed = "Save failed."
	MsgUpdating   = "Updating..."
	MsgUpdated    = "Updated."
	MsgFailed     = "Failed."

	NowStopped = "Stopped"
	NowFailed  = "Failed"
)

// Focus marks a field as being edited
func (e *Engine) Focus(field string) error {
	if _, err := dispatch.Lookup(field); err != nil {
		return err
	}
	e.guard.MarkEditing(field)
	return nil
}

// Blur marks a field as no longer focused; it goes quiet after the quiet delay
func (e *Engine) Blur(field string) error {
	if _, err := dispatch.Lookup(field); err != nil {
		return err
	}
	e.guard.Blur(field)
	return nil
}

// Edit records an operator value for a field and, unless the field belongs to
// a save group, schedules the group's command. Color channels and swatches
// are kept consistent with each other before anything is sent.
func (e *Engine) Edit(field, value string) error {
	c, err := dispatch.Lookup(field)
	if err != nil {
		return err
	}
	if err := e.requireAdmin(); err != nil {
		return err
	}
	if reason, off := e.disabledReason(field); off {
		return fmt.Errorf("%w: %s: %s", ErrDisabled, field, reason)
	}

	// A checkbox change is a complete edit with no blur to follow
	if c.Kind == dispatch.KindFlag {
		e.guard.Commit(field)
	} else {
		e.guard.MarkEditing(field)
	}

	e.mu.Lock()
	e.fields[field] = value
	switch c.Kind {
	case dispatch.KindChannel:
		e.setDerivedLocked(c.Swatch, dispatch.Recompose(c.Swatch, dispatch.MapValues(e.fields)))
	case dispatch.KindHex:
		if ch, err := dispatch.Decompose(value); err == nil {
			for i, f := range dispatch.ChannelFields(field) {
				e.setDerivedLocked(f, ch[i])
			}
		}
	}
	vals := e.valuesLocked()
	e.mu.Unlock()

	defer e.publish()

	g, err := dispatch.LookupGroup(c.Group)
	if err != nil {
		return err
	}
	if g.Save {
		return nil
	}
	_, err = e.disp.Dispatch(c.Group, vals)
	if err != nil {
		logging.Debug("Edit not dispatched", zap.String("field", field), zap.Error(err))
	}
	return err
}

// setDerivedLocked writes a field that an operator edit implies. The operator's
// own edit always wins, so the guard is bypassed and only its recency window is
// restarted to keep the next poll from reverting the field.
func (e *Engine) setDerivedLocked(field, value string) {
	e.fields[field] = value
	e.guard.Touch(field)
}

// Save sends a save group (thresholds or logging cadence) built from the
// current field values. The result is reported in the control message.
func (e *Engine) Save(group string) error {
	g, err := dispatch.LookupGroup(group)
	if err != nil {
		return err
	}
	if err := e.requireAdmin(); err != nil {
		return err
	}
	if group == dispatch.GroupDbLog {
		if reason, off := e.disabledReason(ControlDbLogSave); off {
			return fmt.Errorf("%w: %s", ErrDisabled, reason)
		}
	}

	e.mu.Lock()
	e.controlMessage = MsgSaving
	vals := e.valuesLocked()
	e.mu.Unlock()

	_, err = e.disp.Dispatch(g.Name, vals)
	if err != nil {
		e.setControlMessage(MsgSaveFailed)
		return err
	}
	e.publish()
	return nil
}

// ToggleSpeaker reads a fresh status and sends the negation of its speaker flag
func (e *Engine) ToggleSpeaker(ctx context.Context) error {
	if err := e.requireAdmin(); err != nil {
		return err
	}
	if reason, off := e.disabledReason(ControlSpeaker); off {
		return fmt.Errorf("%w: %s", ErrDisabled, reason)
	}

	e.setControlMessage(MsgUpdating)
	defer e.refreshSoon(SpeakerRefreshDelay)

	st, err := e.dev.Status(ctx)
	if err == nil {
		err = e.dev.SetSpeaker(ctx, !st.Speaker)
	}
	e.met.ObserveCommand("speaker", err)
	if err != nil {
		logging.Warn("Speaker toggle failed", zap.Error(err))
		e.setControlMessage(MsgFailed)
		return err
	}
	e.setControlMessage(MsgUpdated)
	return nil
}

// Play starts test track n
func (e *Engine) Play(ctx context.Context, n int) error {
	if err := e.requireAdmin(); err != nil {
		return err
	}
	if reason, off := e.disabledReason(ControlPlay); off {
		return fmt.Errorf("%w: %s", ErrDisabled, reason)
	}
	if n < 1 || n > deviceapi.TrackCount {
		return deviceapi.NewValidationError(fmt.Sprintf("track must be 1-%d, got %d", deviceapi.TrackCount, n))
	}
	return e.playback(ctx, fmt.Sprintf("Playing %02d...", n), func() error {
		return e.dev.PlayTest(ctx, n)
	})
}

// Stop stops playback
func (e *Engine) Stop(ctx context.Context) error {
	if err := e.requireAdmin(); err != nil {
		return err
	}
	return e.playback(ctx, NowStopped, func() error {
		return e.dev.StopPlayback(ctx)
	})
}

func (e *Engine) playback(_ context.Context, now string, send func() error) error {
	e.mu.Lock()
	e.nowPlaying = now
	e.mu.Unlock()
	e.publish()

	err := send()
	e.met.ObserveCommand("playback", err)
	if err != nil {
		e.mu.Lock()
		e.nowPlaying = NowFailed
		e.mu.Unlock()
		e.publish()
	}
	return err
}

func (e *Engine) setControlMessage(msg string) {
	e.mu.Lock()
	e.controlMessage = msg
	e.mu.Unlock()
	e.publish()
}

func (e *Engine) valuesLocked() dispatch.MapValues {
	vals := make(dispatch.MapValues, len(e.fields))
	for k, v := range e.fields {
		vals[k] = v
	}
	return vals
}

// requireAdmin rejects control intents unless the last reconciliation pass
// proved an admin session
func (e *Engine) requireAdmin() error {
	e.mu.Lock()
	res := e.result
	e.mu.Unlock()

	if res.State == viewstate.LoggedInAdmin {
		return nil
	}
	if res.Reason != "" {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, res.Reason)
	}
	return fmt.Errorf("%w: %s", ErrNotAuthorized, res.State)
}

func (e *Engine) disabledReason(control string) (string, bool) {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()

	reason, off := disabledControls(st)[control]
	return reason, off
}
