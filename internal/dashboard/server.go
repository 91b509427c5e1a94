package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tkingovr/toolbridge/internal/audit"
	"github.com/tkingovr/toolbridge/internal/policy"
)

// Server is the web dashboard HTTP server: ledger, cost totals and the active
// policy.
type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	auditStore audit.Store
	engine     policy.Engine
	addr       string
}

// NewServer creates a new dashboard server. engine may be nil when no policy
// is configured.
func NewServer(addr string, store audit.Store, engine policy.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		auditStore: store,
		engine:     engine,
		addr:       addr,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /", s.handleOverview)
	s.mux.HandleFunc("GET /ledger", s.handleLedger)
	s.mux.HandleFunc("GET /ledger/stream", s.handleLedgerStream)
	s.mux.HandleFunc("GET /policy", s.handlePolicy)
	s.mux.HandleFunc("GET /api/v1/stats", s.handleAPIStats)
	s.mux.HandleFunc("GET /api/v1/records", s.handleAPIRecords)
	s.mux.HandleFunc("POST /api/v1/check", s.handleAPICheck)
}

// ListenAndServe starts the dashboard HTTP server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Info("starting dashboard", "addr", s.addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler returns the HTTP handler for embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}
