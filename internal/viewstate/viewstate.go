// Package viewstate decides which surface the operator sees.
//
// The decision is re-made on every reconciliation pass from three inputs: the
// stored credential pair, the device's internet flag, and a fresh role lookup.
// Nothing is cached between passes.
package viewstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/session"
)

// State is the authorization state of the panel
type State int

const (
	LoggedOut State = iota
	LoggedInUnauthorized
	LoggedInAdmin
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged-out"
	case LoggedInUnauthorized:
		return "logged-in-unauthorized"
	case LoggedInAdmin:
		return "logged-in-admin"
	default:
		return "unknown"
	}
}

// Surface is the part of the panel that is shown
type Surface int

const (
	SurfaceLogin Surface = iota
	SurfaceControls
)

func (s Surface) String() string {
	if s == SurfaceControls {
		return "controls"
	}
	return "login"
}

// ReasonNoInternet is shown when the role cannot be checked
const ReasonNoInternet = "Login requires internet. Fix Wi-Fi first."

// RoleLookup resolves the role for a credential pair
type RoleLookup interface {
	Role(ctx context.Context, s session.Session) (string, error)
}

// RoleLookupFunc adapts a function to RoleLookup
type RoleLookupFunc func(ctx context.Context, s session.Session) (string, error)

func (f RoleLookupFunc) Role(ctx context.Context, s session.Session) (string, error) {
	return f(ctx, s)
}

// Result is the outcome of one evaluation
type Result struct {
	State   State
	Surface Surface
	Reason  string
	Role    string
}

// Machine evaluates the view state and logs transitions
type Machine struct {
	lookup RoleLookup

	mu   sync.Mutex
	last State
}

// New creates a Machine backed by lookup
func New(lookup RoleLookup) *Machine {
	return &Machine{lookup: lookup}
}

// Evaluate derives the view state. The role lookup is skipped when there are
// no credentials or the device reports no internet.
func (m *Machine) Evaluate(ctx context.Context, s session.Session, internet bool) Result {
	res := m.evaluate(ctx, s, internet)

	m.mu.Lock()
	prev := m.last
	m.last = res.State
	m.mu.Unlock()

	logging.LogTransition("viewstate", prev.String(), res.State.String())
	return res
}

// Last returns the state of the most recent evaluation
func (m *Machine) Last() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Machine) evaluate(ctx context.Context, s session.Session, internet bool) Result {
	if !s.HasCredentials() {
		return Result{State: LoggedOut, Surface: SurfaceLogin}
	}
	if !internet {
		return Result{State: LoggedInUnauthorized, Surface: SurfaceLogin, Reason: ReasonNoInternet}
	}
	if m.lookup == nil {
		return Result{State: LoggedInUnauthorized, Surface: SurfaceLogin, Reason: "Not authorized: role lookup failed (no identity provider)"}
	}

	role, err := m.lookup.Role(ctx, s)
	if err != nil {
		return Result{
			State:   LoggedInUnauthorized,
			Surface: SurfaceLogin,
			Reason:  fmt.Sprintf("Not authorized: role lookup failed (%v)", err),
		}
	}
	if role != session.RoleAdmin {
		shown := role
		if shown == "" {
			shown = "unknown"
		}
		return Result{
			State:   LoggedInUnauthorized,
			Surface: SurfaceLogin,
			Reason:  "Not authorized: role=" + shown,
			Role:    role,
		}
	}
	return Result{State: LoggedInAdmin, Surface: SurfaceControls, Role: role}
}
