package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/moonsim-core/internal/infrastructure/config"
	"github.com/nerrad567/moonsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/moonsim-core/internal/printer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown. Realtime sessions are force-closed immediately.
const gracefulShutdownTimeout = 5 * time.Second

// Deps holds the dependencies required by one device's API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Machine *printer.Machine
	Host    string
	Port    int
	Version string
}

// Server is the HTTP and WebSocket front-end of one simulated device.
//
// It manages the listener, routes, middleware, and the realtime hub. A
// Server is created with New() and started with Start(); it operates only
// on the Machine it was constructed with.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	machine  *printer.Machine
	host     string
	port     int
	version  string
	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc
}

// New creates an API server for one device instance.
// The server does not listen until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Machine == nil {
		return nil, fmt.Errorf("printer machine is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		machine: deps.Machine,
		host:    deps.Host,
		port:    deps.Port,
		version: deps.Version,
	}, nil
}

// Start binds the listener and begins serving.
//
// The bind happens synchronously: a nil return means the listener is
// accepting connections, and a bind/listen failure is returned to the
// caller directly. The HTTP serve loop runs on a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger, s.machine, s.version)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = ln

	go func() {
		if serveErr := s.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("device API server error", "addr", addr, "error", serveErr)
		}
	}()

	s.logger.Info("device API listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SessionCount returns the number of live realtime sessions.
func (s *Server) SessionCount() int {
	if s.hub == nil {
		return 0
	}
	return s.hub.SessionCount()
}

// BroadcastStatus fans a status change out to every live realtime session.
// Used by callers that mutate the Machine directly, bypassing the HTTP
// surface (the instance manager's convenience control operations).
func (s *Server) BroadcastStatus(changed map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastStatus(changed)
}

// Close shuts the server down, force-closing all realtime sessions.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancelling the hub context closes every session immediately;
	// there is no graceful WebSocket close handshake.
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("device API shutting down", "addr", s.Addr())
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down device API: %w", err)
	}
	return nil
}
