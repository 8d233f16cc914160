package web

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/lawtest/lawtest/internal/config"
	"github.com/lawtest/lawtest/internal/consts"
	"github.com/lawtest/lawtest/internal/dispatch"
	"github.com/lawtest/lawtest/internal/logger"
)

//go:embed static
var staticFiles embed.FS

// shutdownNotice is broadcast to connected clients when the server stops.
var shutdownNotice = []byte(`{"status":"notice","message":"Server shutting down"}`)

// Server carries the HTTP surface: the upgrade endpoint multiplexing all
// application actions, a static landing page and a health probe.
type Server struct {
	addr       string
	httpServer *http.Server
	router     *httprouter.Router
	hub        *Hub
	dispatcher *dispatch.Dispatcher
	upgrader   websocket.Upgrader
	maxMessage int64
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, dispatcher *dispatch.Dispatcher) *Server {
	s := &Server{
		addr:       cfg.Addr,
		router:     httprouter.New(),
		hub:        NewHub(),
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  consts.BufferSize1KB,
			WriteBufferSize: consts.BufferSize1KB,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		maxMessage: cfg.MaxMessageSize,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go s.hub.Run()

	go func() {
		logger.Info("Web server listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop notifies connected clients, then stops the hub and the HTTP server.
func (s *Server) Stop() error {
	logger.Info("Stopping web server...")

	s.hub.Broadcast(shutdownNotice)
	s.hub.Stop()

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), consts.ShutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// RunHub starts the hub loop when the server is driven without Start, e.g.
// behind an externally managed listener.
func (s *Server) RunHub() {
	go s.hub.Run()
}

// handleWebSocket upgrades the connection and hands it to a client pair of
// pumps. A plain HTTP request to this endpoint gets 400.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected WebSocket upgrade", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the peer.
		logger.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.dispatcher, s.maxMessage)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(context.Background())
}

// handleIndex serves the embedded landing page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		logger.Error("Failed to read landing page: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// handleHealth reports liveness and the number of connected clients.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`, s.hub.ClientCount())
}
