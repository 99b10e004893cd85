package panel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/provision"
)

// Scan runs an operator-requested Wi-Fi scan
func (e *Engine) Scan(ctx context.Context) ([]deviceapi.NetworkEntry, error) {
	return e.flow.Scan(ctx, true)
}

// SelectNetwork picks a network from the last scan and saves its credentials
func (e *Engine) SelectNetwork(ctx context.Context, ssid, password string) error {
	if _, err := e.flow.Select(ssid); err != nil {
		return err
	}
	notice, err := e.flow.Save(ctx, password)
	return e.afterSave(notice, err)
}

// SaveManualWiFi saves credentials typed into the manual entry
func (e *Engine) SaveManualWiFi(ctx context.Context, ssid, password string) error {
	notice, err := e.flow.SaveManual(ctx, ssid, password)
	return e.afterSave(notice, err)
}

func (e *Engine) afterSave(notice *provision.Notice, err error) error {
	if err != nil {
		return err
	}
	e.met.ObserveCommand("wifi", nil)
	if notice != nil {
		e.emit(*notice)
		e.mu.Lock()
		e.notices = append(e.notices, *notice)
		if len(e.notices) > maxNotices {
			e.notices = e.notices[len(e.notices)-maxNotices:]
		}
		e.mu.Unlock()
	}
	e.refreshSoon(WiFiSaveRefreshDelay)
	e.publish()
	return nil
}

// DismissManual hides the manual Wi-Fi entry
func (e *Engine) DismissManual() {
	e.flow.DismissManual()
}

// Disconnect drops the device's station link
func (e *Engine) Disconnect(ctx context.Context) error {
	if reason, off := e.disabledReason(ControlDisconnect); off {
		return fmt.Errorf("%w: %s", ErrDisabled, reason)
	}

	defer e.refreshSoon(DisconnectRefreshDelay)

	err := e.dev.Disconnect(ctx)
	e.met.ObserveCommand("disconnect", err)
	if err != nil {
		logging.Warn("Disconnect failed", zap.Error(err))
	}
	return err
}
