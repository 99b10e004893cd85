// Package editguard tracks which input fields an operator is editing so that
// polled device values do not overwrite in-progress or just-committed edits.
//
// A field is guarded while it is marked editing, and for a recency window after
// its last edit even once it has lost focus. Blur schedules a quiet check after
// QuietDelay; the check compares elapsed time against the last edit instead of
// cancelling timers, so overlapping blur/focus sequences cannot lose an update.
package editguard

import (
	"sync"
	"time"
)

const (
	// DefaultQuietDelay is how long after blur a field waits before it may go quiet
	DefaultQuietDelay = 1200 * time.Millisecond

	// DefaultRecencyWindow guards a field after its last edit even when it is not focused
	DefaultRecencyWindow = 4 * time.Second

	// settleSlack is added to the quiet timer so it never fires a hair early
	settleSlack = 100 * time.Millisecond
)

// EditState is the per-field edit record
type EditState struct {
	Editing      bool
	LastEditedAt time.Time
}

// Tracker is safe for concurrent use
type Tracker struct {
	mu     sync.Mutex
	fields map[string]*EditState

	quietDelay    time.Duration
	recencyWindow time.Duration

	now       func() time.Time
	afterFunc func(time.Duration, func())
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithAfterFunc replaces the timer used to schedule quiet checks
func WithAfterFunc(after func(time.Duration, func())) Option {
	return func(t *Tracker) { t.afterFunc = after }
}

// WithQuietDelay overrides DefaultQuietDelay
func WithQuietDelay(d time.Duration) Option {
	return func(t *Tracker) { t.quietDelay = d }
}

// WithRecencyWindow overrides DefaultRecencyWindow
func WithRecencyWindow(d time.Duration) Option {
	return func(t *Tracker) { t.recencyWindow = d }
}

// New creates a Tracker
func New(opts ...Option) *Tracker {
	t := &Tracker{
		fields:        make(map[string]*EditState),
		quietDelay:    DefaultQuietDelay,
		recencyWindow: DefaultRecencyWindow,
		now:           time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// QuietDelay returns the configured quiet delay
func (t *Tracker) QuietDelay() time.Duration { return t.quietDelay }

// MarkEditing records focus, input or change on a field
func (t *Tracker) MarkEditing(field string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.entry(field)
	st.Editing = true
	st.LastEditedAt = t.now()
}

// Commit records a discrete change, such as a checkbox toggle, that has no
// focus phase. The field is not editing but stays guarded for the recency
// window.
func (t *Tracker) Commit(field string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.entry(field)
	st.Editing = false
	st.LastEditedAt = t.now()
}

// Touch restarts a field's recency window without changing its editing mark.
// It is used for fields rewritten as a side effect of an edit elsewhere.
func (t *Tracker) Touch(field string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entry(field).LastEditedAt = t.now()
}

// Blur records that a field lost focus and schedules its quiet check
func (t *Tracker) Blur(field string) {
	t.mu.Lock()
	st := t.entry(field)
	st.LastEditedAt = t.now()
	t.mu.Unlock()

	t.afterFunc(t.quietDelay+settleSlack, func() { t.MarkQuiet(field) })
}

// MarkQuiet clears the editing mark if no edit happened within the quiet delay.
// It reports whether the field is quiet afterwards.
func (t *Tracker) MarkQuiet(field string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.fields[field]
	if !ok {
		return true
	}
	if t.now().Sub(st.LastEditedAt) < t.quietDelay {
		return false
	}
	st.Editing = false
	return true
}

// ShouldAcceptServerValue reports whether a polled value may replace the displayed one.
// Writing a value equal to the current one is always allowed.
func (t *Tracker) ShouldAcceptServerValue(field, current, candidate string) bool {
	if current == candidate {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.fields[field]
	if !ok {
		return true
	}
	if st.Editing {
		return false
	}
	if t.now().Sub(st.LastEditedAt) < t.recencyWindow {
		return false
	}

	// Quiet and outside the recency window; the record is no longer needed
	delete(t.fields, field)
	return true
}

// State returns a copy of a field's edit record
func (t *Tracker) State(field string) (EditState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.fields[field]
	if !ok {
		return EditState{}, false
	}
	return *st, true
}

// Guarded reports whether a field is currently protected from polled values
func (t *Tracker) Guarded(field string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.fields[field]
	if !ok {
		return false
	}
	return st.Editing || t.now().Sub(st.LastEditedAt) < t.recencyWindow
}

// Collect drops records for fields that are quiet and past the recency window.
// It returns the number of records removed.
func (t *Tracker) Collect() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for field, st := range t.fields {
		if !st.Editing && now.Sub(st.LastEditedAt) >= t.recencyWindow {
			delete(t.fields, field)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked fields
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fields)
}

func (t *Tracker) entry(field string) *EditState {
	st, ok := t.fields[field]
	if !ok {
		st = &EditState{}
		t.fields[field] = st
	}
	return st
}
