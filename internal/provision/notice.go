package provision

import (
	"fmt"
	"sync"

	"github.com/muurk/noisepanel/internal/deviceapi"
)

// NoticeKind identifies a one-shot notification
type NoticeKind string

const (
	NoticeConnected NoticeKind = "connected"
	NoticeAPGrace   NoticeKind = "ap-grace"
	NoticeSaved     NoticeKind = "saved"
)

// Notice is a one-shot operator notification
type Notice struct {
	Kind  NoticeKind `json:"kind"`
	Title string     `json:"title"`
	Body  string     `json:"body"`
	URL   string     `json:"url,omitempty"`
}

// DeviceURL returns the address the operator should open for a device IP
func DeviceURL(ip string) string {
	return fmt.Sprintf("http://%s/", ip)
}

// EdgeDetector fires notifications on connectivity transitions only. It keeps
// the values seen on the previous poll and compares each new status to them.
type EdgeDetector struct {
	mu            sync.Mutex
	lastConnected bool
	lastIP        string
	lastAPGrace   bool
}

// Observe records a status and returns the notifications its transition triggers
func (e *EdgeDetector) Observe(st *deviceapi.DeviceStatus) []Notice {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Notice

	if st.APGrace && st.IP != "" && !e.lastAPGrace {
		ssid := st.SSID
		if ssid == "" {
			ssid = "your Wi-Fi"
		}
		out = append(out, Notice{
			Kind:  NoticeAPGrace,
			Title: "Wi-Fi Connected",
			Body:  fmt.Sprintf(`Now join "%s" then open the device via its router IP (it will show here).`, ssid),
			URL:   DeviceURL(st.IP),
		})
	}
	e.lastAPGrace = st.APGrace

	if st.Connected && st.IP != "" && (!e.lastConnected || e.lastIP != st.IP) {
		out = append(out, Notice{
			Kind:  NoticeConnected,
			Title: "Wi-Fi Connected",
			Body:  "Open the device at: " + DeviceURL(st.IP),
			URL:   DeviceURL(st.IP),
		})
	}
	e.lastConnected = st.Connected
	e.lastIP = st.IP

	return out
}

