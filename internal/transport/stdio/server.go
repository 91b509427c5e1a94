// Package stdio serves the router over newline-delimited JSON-RPC on a
// reader/writer pair, typically the process stdin and stdout.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/jsonrpc"
)

// Handler answers one parsed request.
type Handler interface {
	Handle(ctx context.Context, req api.Request) api.Response
}

// MaxMessageSize bounds a single JSON-RPC line.
const MaxMessageSize = 10 * 1024 * 1024

// Server reads requests line by line and writes one response line per
// request. Requests are handled concurrently; responses are written in
// completion order. Notifications are dispatched but never answered.
type Server struct {
	handler Handler
	logger  *slog.Logger

	mu  sync.Mutex // serializes writes
	out io.Writer
}

// NewServer creates a stdio server writing responses to out.
func NewServer(h Handler, out io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{handler: h, out: out, logger: logger}
}

// Serve reads from in until EOF or ctx is cancelled, then waits for
// in-flight requests to finish. Cancellation returns ctx.Err() without
// waiting for in to produce another line.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readLines(ctx, in, lines)
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var line []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line = <-lines:
		}

		req, err := jsonrpc.Parse(line)
		if err != nil {
			s.logger.Warn("rejecting malformed request", "error", err)
			if werr := s.write(jsonrpc.ErrorResponse(err)); werr != nil {
				return werr
			}
			continue
		}

		wg.Add(1)
		go func(req *api.Request) {
			defer wg.Done()
			resp := s.handler.Handle(ctx, *req)
			if req.IsNotification() {
				s.logger.Debug("notification handled", "method", req.Method)
				return
			}
			if err := s.write(resp); err != nil {
				s.logger.Error("writing response", "method", req.Method, "error", err)
			}
		}(req)
	}
}

// readLines sends each non-empty line of in to lines until EOF, a read
// error, or ctx is done.
func (s *Server) readLines(ctx context.Context, in io.Reader, lines chan<- []byte) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), MaxMessageSize)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case lines <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (s *Server) write(resp api.Response) error {
	data, err := jsonrpc.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
