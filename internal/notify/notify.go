// Package notify delivers one-shot operator notifications.
package notify

import (
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/logging"
)

// Payload is a generic user-facing notification payload
type Payload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// Sender sends notifications using a platform-specific backend
type Sender interface {
	Send(payload Payload)
}

// Nop drops every notification
type Nop struct{}

func (Nop) Send(Payload) {}

// DesktopSender shows native desktop notifications
type DesktopSender struct {
	AppName string

	notify func(title, message string, icon any) error
}

// NewDesktopSender creates a sender that uses the OS notification center
func NewDesktopSender(appName string) *DesktopSender {
	if appName != "" {
		beeep.AppName = appName
	}
	return &DesktopSender{AppName: appName, notify: beeep.Notify}
}

func (s *DesktopSender) Send(p Payload) {
	if s == nil || s.notify == nil {
		return
	}

	title := strings.TrimSpace(p.Title)
	content := strings.TrimSpace(p.Content)
	if title == "" && content == "" {
		return
	}

	if err := s.notify(title, content, ""); err != nil {
		// Headless sessions have no notification daemon
		logging.Debug("Desktop notification failed", zap.String("title", title), zap.Error(err))
	}
}

// Recorder keeps every payload it is sent
type Recorder struct {
	mu       sync.Mutex
	payloads []Payload
}

func (r *Recorder) Send(p Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

// Payloads returns a copy of what was sent
func (r *Recorder) Payloads() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.payloads...)
}

// Multi fans a payload out to several senders
type Multi []Sender

func (m Multi) Send(p Payload) {
	for _, s := range m {
		if s != nil {
			s.Send(p)
		}
	}
}
