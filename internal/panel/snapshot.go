package panel

import (
	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/dispatch"
	"github.com/muurk/noisepanel/internal/poller"
	"github.com/muurk/noisepanel/internal/provision"
)

// Disabled-control keys that are not fields
const (
	ControlSpeaker    = "speaker"
	ControlPlay       = "play"
	ControlDbLogSave  = "dblog"
	ControlDisconnect = "disconnect"
	ControlScan       = "scan"
)

// Snapshot is a consistent copy of everything a front end renders
type Snapshot struct {
	Status    *deviceapi.DeviceStatus `json:"status"`
	Reachable bool                    `json:"reachable"`
	Polled    bool                    `json:"polled"`

	NetState string          `json:"net_state"`
	Badge    deviceapi.Badge `json:"badge"`
	Subtitle string          `json:"subtitle"`
	Details  string          `json:"details"`
	Bars     int             `json:"bars"`

	State    string `json:"state"`
	Surface  string `json:"surface"`
	Reason   string `json:"reason,omitempty"`
	Role     string `json:"role,omitempty"`
	LoggedIn bool   `json:"logged_in"`

	LoginMessage   string `json:"login_message"`
	ControlMessage string `json:"control_message"`
	NowPlaying     string `json:"now_playing"`

	Fields   map[string]string `json:"fields"`
	Editing  []string          `json:"editing,omitempty"`
	Disabled map[string]string `json:"disabled"`

	Faults        []string        `json:"faults"`
	FaultSeverity deviceapi.Badge `json:"fault_severity,omitempty"`

	WiFi    provision.View     `json:"wifi"`
	Events  []poller.LogLine   `json:"events"`
	Monitor []poller.LogLine   `json:"monitor"`
	Notices []provision.Notice `json:"notices"`
}

// Snapshot returns the current state
func (e *Engine) Snapshot() Snapshot {
	wifi := e.flow.View()

	e.mu.Lock()
	defer e.mu.Unlock()

	st := *e.status
	label, badge := st.NetworkState()

	fields := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}

	var editing []string
	for _, c := range dispatch.Controls {
		if e.guard.Guarded(c.Field) {
			editing = append(editing, c.Field)
		}
	}

	snap := Snapshot{
		Status:         &st,
		Reachable:      e.reachable,
		Polled:         e.polled,
		NetState:       label,
		Badge:          badge,
		Subtitle:       st.Subtitle(),
		Details:        st.Details(),
		Bars:           deviceapi.SignalBars(st.RSSI),
		State:          e.result.State.String(),
		Surface:        e.result.Surface.String(),
		Reason:         e.result.Reason,
		Role:           e.result.Role,
		LoggedIn:       e.loggedIn,
		LoginMessage:   e.loginMessage,
		ControlMessage: e.controlMessage,
		NowPlaying:     e.nowPlaying,
		Fields:         fields,
		Editing:        editing,
		Disabled:       disabledControls(&st),
		Faults:         st.Faults(),
		WiFi:           wifi,
		Events:         append([]poller.LogLine(nil), e.events...),
		Monitor:        append([]poller.LogLine(nil), e.monitor...),
		Notices:        append([]provision.Notice(nil), e.notices...),
	}
	if len(snap.Faults) > 0 {
		snap.FaultSeverity = deviceapi.BadgeWarn
		if st.SDError {
			snap.FaultSeverity = deviceapi.BadgeBad
		}
	}
	return snap
}

// disabledControls maps each control the device state disables to the reason
func disabledControls(st *deviceapi.DeviceStatus) map[string]string {
	d := map[string]string{}

	if st.SpeakerError {
		d[ControlSpeaker] = "MP3 player not detected"
		d[ControlPlay] = "MP3 player not detected"
	} else if !st.Speaker {
		d[ControlPlay] = "Speaker is off"
	}

	if st.MicError {
		d["micen"] = "MIC not detected"
	}

	if st.SDError {
		for _, c := range dispatch.GroupControls(dispatch.GroupDbLog) {
			d[c.Field] = "SD card not detected"
		}
		d[ControlDbLogSave] = "SD card not detected"
	}

	if !st.Connected {
		d[ControlDisconnect] = "Not connected"
	}
	if !st.NeedsWiFiFix() {
		d[ControlScan] = "Wi-Fi is working"
	}
	return d
}
