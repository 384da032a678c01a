// Package server is the live template inspector: an HTTP server listing the
// loaded templates, their dependency edges and bound objects, with a
// WebSocket feed of store changes that reloads open pages.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/conneroisu/protoplast/internal/config"
	"github.com/conneroisu/protoplast/internal/logging"
	"github.com/conneroisu/protoplast/internal/manager"
	"github.com/conneroisu/protoplast/internal/types"
	"github.com/conneroisu/protoplast/internal/websocket"
)

// Objects is the read side of the host world the inspector reports on.
type Objects interface {
	Bound(template string) []types.ObjectID
	Templates(obj types.ObjectID) []string
	Capabilities(obj types.ObjectID) []string
	Children(obj types.ObjectID) []types.ObjectID
}

// Server serves the inspector.
type Server struct {
	manager *manager.Manager
	objects Objects
	config  config.InspectConfig
	hub     *websocket.Hub
	logger  logging.Logger

	serverMutex sync.Mutex
	httpServer  *http.Server
	listener    net.Listener
	isShutdown  bool
}

// New creates an inspector over m and objects.
func New(m *manager.Manager, objects Objects, cfg config.InspectConfig, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("inspector")
	return &Server{
		manager: m,
		objects: objects,
		config:  cfg,
		hub:     websocket.NewHub(cfg.Origins, logger),
		logger:  logger,
	}
}

// Handler returns the inspector routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /templates/{id}", s.handleDetail)
	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("GET /api/templates/{id}", s.handleTemplate)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /ws", s.hub)

	return chain(mux, s.recoverMiddleware, s.loggingMiddleware, securityHeadersMiddleware)
}

// Listen binds the configured address, capped at MaxConnections concurrent
// connections.
func (s *Server) Listen() (net.Addr, error) {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()

	if s.isShutdown {
		return nil, fmt.Errorf("inspector has been shut down")
	}
	if s.listener != nil {
		return s.listener.Addr(), nil
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("inspector listen: %w", err)
	}
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ln.Addr(), nil
}

// Serve forwards store events to connected pages and serves requests until
// ctx is done, then shuts down gracefully. Listen is called if needed.
func (s *Server) Serve(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}

	s.serverMutex.Lock()
	server, ln := s.httpServer, s.listener
	s.serverMutex.Unlock()

	events := s.manager.Store().Watch()
	defer s.manager.Store().UnWatch(events)
	go s.hub.Forward(ctx, events)

	s.logger.Info(ctx, "Inspector listening", "addr", addr.String())

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("inspector: server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown closes WebSocket clients and drains HTTP connections. It is
// idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()

	if s.isShutdown {
		return nil
	}
	s.isShutdown = true

	if err := s.hub.Shutdown(ctx); err != nil {
		return err
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("inspector: shutdown failed: %w", err)
		}
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, indexPage(s.summaries()))
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.detail(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, r, http.StatusOK, detailPage(detail))
}
