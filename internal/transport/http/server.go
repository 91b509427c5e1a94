// Package http serves the router as JSON-RPC over HTTP POST.
package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/jsonrpc"
)

// Handler answers one parsed request.
type Handler interface {
	Handle(ctx context.Context, req api.Request) api.Response
}

// MaxBodySize bounds a request body.
const MaxBodySize = 10 * 1024 * 1024

// Server is an http.Handler that accepts one JSON-RPC request per POST.
// Notifications are answered with 202 Accepted and no body.
type Server struct {
	handler Handler
	logger  *slog.Logger
}

// NewServer creates a new HTTP JSON-RPC server.
func NewServer(h Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{handler: h, logger: logger}
}

// ServeHTTP handles incoming HTTP requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	r.Body.Close()
	if err != nil {
		s.logger.Error("reading request body", "error", err)
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}
	if len(body) > MaxBodySize {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	req, err := jsonrpc.Parse(body)
	if err != nil {
		s.logger.Warn("rejecting malformed request", "error", err)
		s.writeResponse(w, jsonrpc.ErrorResponse(err))
		return
	}

	resp := s.handler.Handle(r.Context(), *req)
	if req.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeResponse(w, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp api.Response) {
	data, err := jsonrpc.Marshal(resp)
	if err != nil {
		s.logger.Error("encoding response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // JSON-RPC errors use 200 status
	w.Write(data)
}

// ListenAndServe starts the HTTP server and stops it when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Info("starting HTTP server", "listen", addr)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
