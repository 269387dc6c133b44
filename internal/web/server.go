// Package web serves the local HTTP endpoint used by the browser extension
// and the control surface used by the CLI and desktop UI.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/usecase"
)

const (
	// DefaultHost keeps the endpoint off external interfaces.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the port the browser extension connects to.
	DefaultPort = 4242
)

// Config holds the HTTP server settings.
type Config struct {
	Host    string
	Port    int
	Version string

	// PINRateLimit bounds PIN and master password requests per client per window.
	PINRateLimit  int
	PINRateWindow time.Duration

	// AllowedOrigins lists browser origins accepted by the extension routes.
	// An entry of the form "scheme://*" accepts every origin with that scheme.
	AllowedOrigins []string
}

// DefaultConfig returns the settings used by the daemon.
func DefaultConfig() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		PINRateLimit:   30,
		PINRateWindow:  time.Minute,
		AllowedOrigins: []string{"chrome-extension://*", "moz-extension://*"},
	}
}

// ChallengeSource reports the presentation currently requested from the UI.
type ChallengeSource interface {
	Challenge() domain.ChallengeState
}

// Server is the website block endpoint plus the control API.
type Server struct {
	cfg       Config
	ctrl      *usecase.Controller
	challenge ChallengeSource
	clock     domain.Clock
	logger    *zap.Logger
	server    *http.Server

	mu   sync.Mutex
	addr string
	done chan struct{}
}

// NewServer creates a Server. challenge may be nil.
func NewServer(cfg Config, ctrl *usecase.Controller, challenge ChallengeSource, clock domain.Clock, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		challenge: challenge,
		clock:     clock,
		logger:    logger,
	}
	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start binds the listener and serves in the background. A bind failure is
// returned without side effects so the caller can carry on without the endpoint.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.done = done
	s.mu.Unlock()

	s.logger.Info("http endpoint listening", zap.String("addr", ln.Addr().String()))
	go func() {
		defer close(done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http endpoint stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	s.logger.Info("shutting down http endpoint")
	err := s.server.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

// Run serves until ctx is done, calling Start unless it already succeeded.
// When the port cannot be bound the endpoint stays unavailable and Run blocks
// quietly so the rest of the daemon keeps working.
func (s *Server) Run(ctx context.Context) error {
	if !s.Listening() {
		if err := s.Start(); err != nil {
			s.logger.Warn("website block endpoint unavailable", zap.Error(err))
			<-ctx.Done()
			return nil
		}
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Listening reports whether Start succeeded.
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr != "" {
		return s.addr
	}
	return s.server.Addr
}
