package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/Kalantar81/window-counter/pkg/config"
	"github.com/Kalantar81/window-counter/pkg/health"
	"github.com/Kalantar81/window-counter/pkg/logger"
	"github.com/Kalantar81/window-counter/pkg/messaging"
	"github.com/Kalantar81/window-counter/pkg/middleware"
	"github.com/Kalantar81/window-counter/pkg/presence"
	"github.com/Kalantar81/window-counter/pkg/storage"
)

// Server owns the presence hub, the optional event store, and the HTTP
// listener. Construction and shutdown are explicit; nothing lives at
// module level.
type Server struct {
	config     *config.ServerConfig
	hub        *presence.Hub
	store      storage.Store
	recorder   *eventRecorder
	dispatcher *messaging.Dispatcher
	monitor    *health.Monitor
	log        *logger.Logger
	httpServer *http.Server
	serverMu   sync.Mutex
	started    bool
	startedMu  sync.Mutex
}

// NewServer creates a new server instance
func NewServer(cfg *config.ServerConfig) *Server {
	log := logger.Get()

	hub := presence.NewHub(presence.Routing{
		TargetTab:      cfg.Routing.TargetTab,
		RequireVisible: cfg.Routing.RequireVisible,
	}, log)

	var store storage.Store
	var recorder *eventRecorder
	if cfg.Database.Enabled {
		var err error
		store, err = storage.NewStore(cfg.Database)
		if err != nil {
			log.ErrorWithErr("failed to open event store", err)
			log.InfoWith("server will continue without event history")
			store = nil
		} else {
			recorder = newEventRecorder(store, log)
			hub.SetEventSink(recorder)
		}
	}

	dispatcher := messaging.NewDispatcher()
	dispatcher.Register(messaging.NewUpdateStateHandler(hub))
	dispatcher.Register(messaging.NewVisibilityChangeHandler(hub))

	return &Server{
		config:     cfg,
		hub:        hub,
		store:      store,
		recorder:   recorder,
		dispatcher: dispatcher,
		monitor:    health.NewMonitor(),
		log:        log,
	}
}

// buildRouter assembles the gin router with all routes
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	// Do not trust arbitrary proxies by default.
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogging(s.log))
	router.Use(CORSMiddleware())

	// WebSocket endpoint for browser tabs
	router.GET("/ws", s.ginHandleWebSocket)

	// API endpoints
	router.GET("/api/state", s.handleState)
	router.POST("/api/location", s.handleLocation)
	router.GET("/api/history", s.handleHistory)
	router.GET("/api/health", s.handleHealth)

	return router
}

// Start starts the server and blocks until the listener stops
func (s *Server) Start() error {
	s.startedMu.Lock()
	if s.started {
		s.log.WarnWith("server already started, skipping duplicate start")
		s.startedMu.Unlock()
		return nil
	}
	s.started = true
	s.startedMu.Unlock()

	router := s.buildRouter()

	if s.config.TLS.Enabled && s.config.TLS.CertFile != "" && s.config.TLS.KeyFile != "" {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		httpServer := &http.Server{
			Addr:      s.config.Address,
			Handler:   router,
			TLSConfig: tlsConfig,
		}

		s.serverMu.Lock()
		s.httpServer = httpServer
		s.serverMu.Unlock()

		s.log.InfoWith("listening with TLS", "address", s.config.Address)
		return httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	}

	httpServer := &http.Server{
		Addr:    s.config.Address,
		Handler: router,
	}

	s.serverMu.Lock()
	s.httpServer = httpServer
	s.serverMu.Unlock()

	s.log.InfoWith("listening", "address", s.config.Address)
	return httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.InfoWith("initiating graceful shutdown")

	s.startedMu.Lock()
	s.started = false
	s.startedMu.Unlock()

	s.serverMu.Lock()
	httpServer := s.httpServer
	s.serverMu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.log.ErrorWithErr("error shutting down HTTP server", err)
			httpServer.Close()
		}
	}

	// Close all client connections and drop the registry.
	s.hub.Shutdown()

	if s.recorder != nil {
		s.recorder.Stop()
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.ErrorWithErr("error closing event store", err)
		}
	}

	s.log.InfoWith("graceful shutdown complete")
	return nil
}
