package panel

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/identity"
	"github.com/muurk/noisepanel/internal/logging"
)

// Login messages
const (
	MsgLoggingIn   = "Logging in..."
	MsgLoggedIn    = "Logged in."
	MsgLoggedOut   = "Logged out."
	MsgLoginFailed = "login_failed"
)

// Login exchanges credentials with the identity provider, stores the session
// and reconciles immediately
func (e *Engine) Login(ctx context.Context, email, password string) error {
	e.setLoginMessage(MsgLoggingIn)

	if e.id == nil {
		e.setLoginMessage(identity.ErrNotConfigured.Error())
		return identity.ErrNotConfigured
	}

	sess, err := e.id.Login(ctx, email, password)
	if err != nil {
		msg := MsgLoginFailed
		var idErr *identity.Error
		switch {
		case errors.As(err, &idErr) && idErr.Message != "":
			msg = idErr.Message
		case errors.Is(err, identity.ErrNotConfigured):
			msg = err.Error()
		}
		logging.Warn("Login failed", zap.Error(err))
		e.setLoginMessage(msg)
		return err
	}

	if err := e.store.Save(sess); err != nil {
		e.setLoginMessage(err.Error())
		return err
	}

	logging.Info("Logged in", zap.String("user_id", sess.UserID))
	e.setLoginMessage(MsgLoggedIn)
	_ = e.Reconcile(ctx)
	return nil
}

// Logout clears the stored session and reconciles
func (e *Engine) Logout(ctx context.Context) error {
	err := e.store.Clear()
	if err != nil {
		logging.Warn("Failed to clear session", zap.Error(err))
	}
	e.setLoginMessage(MsgLoggedOut)
	_ = e.Reconcile(ctx)
	return err
}

func (e *Engine) setLoginMessage(msg string) {
	e.mu.Lock()
	e.loginMessage = msg
	e.mu.Unlock()
	e.publish()
}
