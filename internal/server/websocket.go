package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/panel"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// intentTimeout bounds a device or identity call made for one intent
	intentTimeout = 15 * time.Second
)

// Intent types accepted on /ws
const (
	IntentFocus         = "focus"
	IntentBlur          = "blur"
	IntentEdit          = "edit"
	IntentSave          = "save"
	IntentScan          = "scan"
	IntentSelect        = "select"
	IntentManual        = "manual"
	IntentDismiss       = "dismiss"
	IntentLogin         = "login"
	IntentLogout        = "logout"
	IntentToggleSpeaker = "toggle-speaker"
	IntentPlay          = "play"
	IntentStop          = "stop"
	IntentDisconnect    = "disconnect"
)

// Intent is an operator action sent by the browser
type Intent struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Field    string `json:"field,omitempty"`
	Value    string `json:"value,omitempty"`
	Group    string `json:"group,omitempty"`
	SSID     string `json:"ssid,omitempty"`
	Password string `json:"password,omitempty"`
	Email    string `json:"email,omitempty"`
	Track    int    `json:"track,omitempty"`
}

// Outbound message types
const (
	MessageSnapshot = "snapshot"
	MessageResult   = "result"
)

// Message is sent to the browser: either a snapshot or the result of an intent
type Message struct {
	Type     string          `json:"type"`
	Snapshot *panel.Snapshot `json:"snapshot,omitempty"`
	ID       string          `json:"id,omitempty"`
	Intent   string          `json:"intent,omitempty"`
	OK       bool            `json:"ok,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(s.config.AllowedOrigins) > 0 {
		allowed := s.config.AllowedOrigins
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}
	return u
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	u := s.upgrader()
	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.serveSession(conn, r.RemoteAddr)
}

// serveSession streams snapshots to one browser and applies its intents
func (s *Server) serveSession(conn *websocket.Conn, remoteAddr string) {
	logging.LogConnection(remoteAddr, "websocket_opened")

	ctx, cancel := context.WithCancel(context.Background())
	snaps, unsubscribe := s.panel.Subscribe()

	s.track(remoteAddr, func() {
		cancel()
		_ = conn.Close()
	})

	defer func() {
		cancel()
		unsubscribe()
		s.untrack(remoteAddr)
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	out := make(chan Message, 8)
	var writerDone sync.WaitGroup
	writerDone.Add(1)
	go func() {
		defer writerDone.Done()
		s.writeLoop(ctx, conn, remoteAddr, snaps, out)
	}()

	first := s.panel.Snapshot()
	out <- Message{Type: MessageSnapshot, Snapshot: &first}

	s.readLoop(ctx, conn, remoteAddr, out)
	cancel()
	writerDone.Wait()
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, remoteAddr string, out chan<- Message) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("WebSocket closed unexpectedly",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(remoteAddr, "received", redactIntent(data))

		var in Intent
		if err := json.Unmarshal(data, &in); err != nil {
			s.reply(ctx, out, Message{Type: MessageResult, Error: "invalid intent: " + err.Error()})
			continue
		}

		// Intents run in order; a slow device call only delays this browser
		err = s.apply(ctx, in)
		res := Message{Type: MessageResult, ID: in.ID, Intent: in.Type, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		s.reply(ctx, out, res)
	}
}

func (s *Server) reply(ctx context.Context, out chan<- Message, m Message) {
	select {
	case out <- m:
	case <-ctx.Done():
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, remoteAddr string, snaps <-chan panel.Snapshot, out <-chan Message) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(m Message) bool {
		data, err := json.Marshal(m)
		if err != nil {
			logging.Error("Failed to marshal message", zap.Error(err))
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.Debug("WebSocket write failed",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return false
		}
		if m.Type != MessageSnapshot {
			logging.LogWebSocketMessage(remoteAddr, "sent", data)
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case m := <-out:
			if !write(m) {
				return
			}
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if !write(Message{Type: MessageSnapshot, Snapshot: &snap}) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// apply runs one intent against the panel
func (s *Server) apply(parent context.Context, in Intent) error {
	ctx, cancel := context.WithTimeout(parent, intentTimeout)
	defer cancel()

	p := s.panel
	switch in.Type {
	case IntentFocus:
		return p.Focus(in.Field)
	case IntentBlur:
		return p.Blur(in.Field)
	case IntentEdit:
		return p.Edit(in.Field, in.Value)
	case IntentSave:
		return p.Save(in.Group)
	case IntentScan:
		_, err := p.Scan(ctx)
		return err
	case IntentSelect:
		return p.SelectNetwork(ctx, in.SSID, in.Password)
	case IntentManual:
		return p.SaveManualWiFi(ctx, in.SSID, in.Password)
	case IntentDismiss:
		p.DismissManual()
		return nil
	case IntentLogin:
		return p.Login(ctx, in.Email, in.Password)
	case IntentLogout:
		return p.Logout(ctx)
	case IntentToggleSpeaker:
		return p.ToggleSpeaker(ctx)
	case IntentPlay:
		return p.Play(ctx, in.Track)
	case IntentStop:
		return p.Stop(ctx)
	case IntentDisconnect:
		return p.Disconnect(ctx)
	default:
		return fmt.Errorf("unknown intent %q", in.Type)
	}
}

// redactIntent blanks passwords before an intent is logged
func redactIntent(data []byte) []byte {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return data
	}
	if _, ok := m["password"]; !ok {
		return data
	}
	m["password"] = "***"
	out, err := json.Marshal(m)
	if err != nil {
		return data
	}
	return out
}
