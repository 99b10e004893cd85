package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/logging"
	"github.com/muurk/noisepanel/internal/panel"
)

// DefaultPort is the bridge's default listen port
const DefaultPort = 8787

// shutdownTimeout bounds how long Shutdown waits for websocket sessions
const shutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// AllowedOrigins lists browser origins allowed to open /ws.
	// Empty allows same-host origins only.
	AllowedOrigins []string
}

// Panel is the engine surface the bridge drives
type Panel interface {
	Snapshot() panel.Snapshot
	Subscribe() (<-chan panel.Snapshot, func())

	Focus(field string) error
	Blur(field string) error
	Edit(field, value string) error
	Save(group string) error

	Scan(ctx context.Context) ([]deviceapi.NetworkEntry, error)
	SelectNetwork(ctx context.Context, ssid, password string) error
	SaveManualWiFi(ctx context.Context, ssid, password string) error
	DismissManual()
	Disconnect(ctx context.Context) error

	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error

	ToggleSpeaker(ctx context.Context) error
	Play(ctx context.Context, n int) error
	Stop(ctx context.Context) error
}

// Server is the local HTTP and websocket bridge in front of a panel engine
type Server struct {
	config  *Config
	panel   Panel
	metrics http.Handler

	httpServer *http.Server
	listener   net.Listener

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]func()
}

// New creates a new Server instance. metrics may be nil.
func New(config *Config, p Panel, metrics http.Handler) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}

	s := &Server{
		config:      config,
		panel:       p,
		metrics:     metrics,
		activeConns: make(map[string]func()),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Addr returns the listen address once the server is started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Listen binds the configured address
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	return nil
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	logging.Info("Panel bridge listening",
		zap.String("addr", s.Addr()),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping bridge...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.Error("Error shutting down HTTP server", zap.Error(err))
	}

	// Hijacked websocket connections are not tracked by http.Server
	s.mu.Lock()
	for addr, closeConn := range s.activeConns {
		logging.Debug("Closing active connection", zap.String("remote_addr", addr))
		closeConn()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return nil
}

// GetActiveConnections returns the number of open websocket sessions
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(remoteAddr string, closeConn func()) {
	s.mu.Lock()
	s.activeConns[remoteAddr] = closeConn
	s.mu.Unlock()
}

func (s *Server) untrack(remoteAddr string) {
	s.mu.Lock()
	delete(s.activeConns, remoteAddr)
	s.mu.Unlock()
}
