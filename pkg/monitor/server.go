package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/p25bridge/pkg/call"
	"github.com/dbehnke/p25bridge/pkg/config"
	"github.com/dbehnke/p25bridge/pkg/logger"
)

// Server is the monitor dashboard's HTTP+WebSocket endpoint.
type Server struct {
	config config.WebConfig
	log    *logger.Logger
	hub    *Hub
	server *http.Server
	addr   string
	mu     sync.RWMutex

	engine *call.Engine
}

// NewServer builds a monitor server; call WithEngine to expose live
// call state on the status endpoint.
func NewServer(cfg config.WebConfig, log *logger.Logger) *Server {
	return &Server{config: cfg, log: log, hub: NewHub(log)}
}

// WithEngine attaches the call engine whose state the status endpoint reports.
func (s *Server) WithEngine(e *call.Engine) *Server {
	s.engine = e
	return s
}

// Hub returns the broadcast hub for wiring into the call engine's
// lifecycle callbacks.
func (s *Server) Hub() *Hub { return s.hub }

// Addr reports the address the server bound to, once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"server":  s.config.Host,
		"clients": s.hub.ClientCount(),
	}
	if s.engine != nil {
		status["rx_state"] = s.engine.RXState.String()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// Start runs the monitor HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("monitor dashboard disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", s.hub.Handler())
	mux.HandleFunc("/api/status", s.statusHandler)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor: failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.server = &http.Server{Handler: mux}
	s.log.Info("starting monitor dashboard", logger.String("addr", s.addr))

	var hubCtx context.Context
	var hubCancel context.CancelFunc
	hubCtx, hubCancel = context.WithCancel(ctx)
	go s.hub.Run(hubCtx)
	defer hubCancel()

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down monitor dashboard")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("monitor: shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the HTTP server.
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}
