package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/audiodrop/audiodrop/internal/auth"
	"github.com/audiodrop/audiodrop/internal/config"
	"github.com/audiodrop/audiodrop/internal/metrics"
	"github.com/audiodrop/audiodrop/internal/middleware"
	"github.com/audiodrop/audiodrop/internal/share"
	"github.com/audiodrop/audiodrop/internal/storage"
)

// Server wires the storage, share and auth layers behind HTTP.
type Server struct {
	config       *config.Config
	httpServer   *http.Server
	filesystem   *storage.Filesystem
	authManager  auth.Manager
	shareService *share.Service
	metrics      *metrics.Manager
	startTime    time.Time
}

// New creates an AudioDrop server from configuration.
func New(cfg *config.Config) (*Server, error) {
	filesystem, err := storage.NewFilesystem(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage layer: %w", err)
	}

	store, err := newShareStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create share store: %w", err)
	}

	server := &Server{
		config:       cfg,
		filesystem:   filesystem,
		authManager:  auth.NewManager(cfg.Auth),
		shareService: share.NewService(store, filesystem, cfg.PublicURL),
		metrics:      metrics.NewManager(),
		startTime:    time.Now(),
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      server.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

func newShareStore(cfg *config.Config) (share.Store, error) {
	switch cfg.Share.Backend {
	case "sqlite":
		return share.NewSQLiteStore(cfg.Share.File + ".db")
	default:
		return share.NewJSONStore(cfg.Share.File), nil
	}
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST", "OPTIONS")
	api.HandleFunc("/browse", s.handleBrowse).Methods("GET", "OPTIONS")
	api.HandleFunc("/folders", s.handleCreateFolder).Methods("POST", "OPTIONS")
	api.HandleFunc("/items/delete", s.handleDeleteItem).Methods("POST", "OPTIONS")
	api.HandleFunc("/upload", s.handleUpload).Methods("POST", "OPTIONS")
	api.HandleFunc("/shares", s.handleCreateShare).Methods("POST", "OPTIONS")
	api.HandleFunc("/shares", s.handleListShares).Methods("GET", "OPTIONS")
	api.HandleFunc("/shares/{token}", s.handleDeleteShare).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/status", s.handleStatus).Methods("GET", "OPTIONS")
	api.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")

	router.HandleFunc("/share/{token}", s.handleResolveShare).Methods("GET")
	router.HandleFunc("/share/{token}/qr", s.handleShareQR).Methods("GET")
	router.HandleFunc("/share/{token}/files/{name}", s.handleShareDownload).Methods("GET")
	router.PathPrefix("/files/").HandlerFunc(s.handleDownload).Methods("GET")

	if s.config.Metrics.Enable {
		router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods("GET")
	}

	chain := middleware.Privilege(s.authManager)(router)
	chain = middleware.Logging(s.metrics)(chain)
	chain = handlers.CORS(
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(chain)
	return handlers.RecoveryHandler()(chain)
}

// Start serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"address":      s.config.Listen,
		"storage_root": s.config.Storage.Root,
	}).Info("Starting AudioDrop server")

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.EnableTLS {
			err = s.httpServer.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to shutdown HTTP server")
		return err
	}
	return nil
}
