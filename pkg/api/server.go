// Package api serves a small read-mostly HTTP surface next to the MQTT bridge:
// health, the managed entities, the event journal and direct service calls.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/bridge"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/journal"
)

const (
	gracefulShutdownTimeout = 10 * time.Second
	readHeaderTimeout       = 5 * time.Second
	maxBodyBytes            = 64 << 10
	defaultEventLimit       = 50
)

// EventSource is what the events endpoint reads from.
type EventSource interface {
	Recent(ctx context.Context, eventType string, limit int) ([]journal.Entry, error)
}

type Deps struct {
	Host        *homeassistant.Host
	Integration *bridge.Integration
	// Events is nil when the journal is disabled.
	Events  EventSource
	Version string
}

type Server struct {
	listen string
	deps   Deps
	logger *logrus.Logger

	mutex    sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewServer(listen string, deps Deps, logger *logrus.Logger) (*Server, error) {
	if deps.Host == nil {
		return nil, fmt.Errorf("host is required")
	}
	if deps.Integration == nil {
		return nil, fmt.Errorf("integration is required")
	}

	return &Server{
		listen: listen,
		deps:   deps,
		logger: logger,
	}, nil
}

// Start begins listening in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listen, err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.mutex.Lock()
	s.server = server
	s.listener = listener
	s.mutex.Unlock()

	s.logger.WithField("address", listener.Addr().String()).Info("API server listening")

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("API server error")
		}
	}()

	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop waits for in-flight requests up to a timeout.
func (s *Server) Stop() error {
	s.mutex.Lock()
	server := s.server
	s.server = nil
	s.mutex.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("API server shutdown: %w", err)
	}
	return nil
}
