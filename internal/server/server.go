// ABOUTME: Localhost HTTP API server exposing the desktop command surface
// ABOUTME: Owns route wiring, port discovery, and graceful shutdown

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/2389/grimoire/internal/config"
	"github.com/2389/grimoire/internal/credentials"
	"github.com/2389/grimoire/internal/export"
	"github.com/2389/grimoire/internal/store"
	"github.com/2389/grimoire/internal/updater"
)

// Port probe range used when no port is configured
const (
	portProbeStart = 3000
	portProbeEnd   = 9000
)

// Server is the local HTTP API for the desktop UI.
// It binds to the configured loopback host only.
type Server struct {
	cfg      *config.Config
	store    store.Store
	resolver *credentials.Resolver
	exporter *export.Exporter
	checker  *updater.Checker
	sessions *SessionTokens
	logger   *slog.Logger

	httpServer *http.Server

	// PortFile, when set, receives the bound port number so CLI commands
	// can find a dynamically chosen port. Written best-effort.
	PortFile string
}

// New creates a server over the given collaborators. The updater checker
// may be nil, in which case the update status endpoint reports 404.
func New(cfg *config.Config, st store.Store, resolver *credentials.Resolver, exporter *export.Exporter, checker *updater.Checker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		resolver: resolver,
		exporter: exporter,
		checker:  checker,
		sessions: NewSessionTokens([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL),
		logger:   logger.With("component", "server"),
	}

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.RequestTimeout,
		WriteTimeout:      cfg.Server.RequestTimeout,
	}

	return s
}

// routes builds the request mux
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/projects", s.handleSaveProject)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("PUT /api/projects/{id}/files", s.handleUpsertProjectFile)
	mux.HandleFunc("GET /api/projects/{id}/files", s.handleListProjectFiles)
	mux.HandleFunc("POST /api/projects/{id}/export", s.handleExportProject)

	mux.HandleFunc("GET /api/settings", s.handleLoadSettings)
	mux.HandleFunc("PUT /api/settings", s.handleSaveSettings)

	mux.HandleFunc("GET /api/credentials/status", s.handleCredentialsStatus)
	mux.HandleFunc("POST /api/credentials/key", s.handleSubmitKey)
	mux.HandleFunc("GET /api/credentials", s.handleGetCredentials)

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignin)
	mux.HandleFunc("POST /api/auth/signout", s.handleSignout)
	mux.HandleFunc("GET /api/auth/session", s.handleSession)

	mux.HandleFunc("GET /api/updates/status", s.handleUpdateStatus)

	mux.HandleFunc("GET /ui/projects/{id}", s.handleProjectPreview)

	return mux
}

// Run binds the listener and serves until the context is canceled.
// Returns nil on graceful shutdown, or the server error otherwise.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	s.writePortFile(ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	s.removePortFile()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// listen binds the configured address, probing for a free port when none
// is configured
func (s *Server) listen() (net.Listener, error) {
	host := s.cfg.Server.Host

	if s.cfg.Server.Port != 0 {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(s.cfg.Server.Port)))
		if err != nil {
			return nil, fmt.Errorf("listening on port %d: %w", s.cfg.Server.Port, err)
		}
		return ln, nil
	}

	for port := portProbeStart; port <= portProbeEnd; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("no free port in range %d-%d", portProbeStart, portProbeEnd)
}

// gracefulShutdown stops the HTTP server with a fresh context and timeout.
// Uses context.Background() intentionally since the run context is already
// canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// writePortFile records the bound port for CLI commands. Best-effort.
func (s *Server) writePortFile(addr net.Addr) {
	if s.PortFile == "" {
		return
	}

	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return
	}
	if err := os.WriteFile(s.PortFile, []byte(strconv.Itoa(tcpAddr.Port)), 0644); err != nil {
		s.logger.Warn("failed to write port file", "path", s.PortFile, "error", err)
	}
}

// removePortFile deletes the port file on shutdown. Best-effort.
func (s *Server) removePortFile() {
	if s.PortFile == "" {
		return
	}
	if err := os.Remove(s.PortFile); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove port file", "path", s.PortFile, "error", err)
	}
}

// Handler returns the route mux, for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleHealth returns 200 OK if the server is alive
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleUpdateStatus returns the update checker's last result
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		s.sendJSONError(w, http.StatusNotFound, "update checker disabled")
		return
	}
	s.sendJSON(w, http.StatusOK, s.checker.Status())
}
