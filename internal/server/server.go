package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"fanren-sync/internal/archive"
)

// BuildInfo identifies the running binary in logs and health output.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config carries everything the server needs. Construct it once at startup
// and pass it in; there is no ambient global configuration.
type Config struct {
	Addr   string // e.g. ":8000"
	Secret string // shared secret expected as the first path segment
	Store  *archive.Store
	Backup *BackupManager // nil when the mirror is disabled
	Build  BuildInfo
}

type Server struct {
	cfg        Config
	store      *archive.Store
	backup     *BackupManager
	metrics    *Metrics
	httpServer *http.Server
}

func New(cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		store:   cfg.Store,
		backup:  cfg.Backup,
		metrics: NewMetrics(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	// Wrap middleware: requestID -> logging -> security headers -> mux
	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
