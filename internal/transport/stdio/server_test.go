package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/jsonrpc"
)

type echoHandler struct {
	mu      sync.Mutex
	methods []string
}

func (h *echoHandler) Handle(_ context.Context, req api.Request) api.Response {
	h.mu.Lock()
	h.methods = append(h.methods, req.Method)
	h.mu.Unlock()
	return jsonrpc.NewResult(req.ID, map[string]string{"method": req.Method})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T) []api.Response {
	t.Helper()
	var out []api.Response
	sc := bufio.NewScanner(strings.NewReader(b.buf.String()))
	for sc.Scan() {
		var resp api.Response
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response line %q: %v", sc.Text(), err)
		}
		out = append(out, resp)
	}
	return out
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_RequestsAndNotifications(t *testing.T) {
	h := &echoHandler{}
	out := &syncBuffer{}
	srv := NewServer(h, out, newTestLogger())

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":"two","method":"tools/list"}`,
	}, "\n")
	if err := srv.Serve(context.Background(), strings.NewReader(in)); err != nil {
		t.Fatal(err)
	}

	resps := out.lines(t)
	if len(resps) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(resps))
	}
	ids := []string{string(resps[0].ID), string(resps[1].ID)}
	sort.Strings(ids)
	if ids[0] != `"two"` || ids[1] != `1` {
		t.Errorf("unexpected ids %v", ids)
	}

	if len(h.methods) != 3 {
		t.Errorf("expected notification to be dispatched too, got %v", h.methods)
	}
}

func TestServer_MalformedRequests(t *testing.T) {
	h := &echoHandler{}
	out := &syncBuffer{}
	srv := NewServer(h, out, newTestLogger())

	in := strings.Join([]string{
		`not json`,
		`{"jsonrpc":"1.0","id":1,"method":"x"}`,
		`{"jsonrpc":"2.0","id":"empty","method":""}`,
	}, "\n")
	if err := srv.Serve(context.Background(), strings.NewReader(in)); err != nil {
		t.Fatal(err)
	}

	resps := out.lines(t)
	if len(resps) != 3 {
		t.Fatalf("expected 3 error responses, got %d", len(resps))
	}
	want := []struct {
		code int
		id   string
	}{
		{jsonrpc.CodeParseError, "null"},
		{jsonrpc.CodeInvalidRequest, "1"},
		{jsonrpc.CodeInvalidRequest, `"empty"`},
	}
	for i, w := range want {
		r := resps[i]
		if r.Error == nil || r.Error.Code != w.code {
			t.Errorf("response %d: expected code %d, got %+v", i, w.code, r)
		}
		if string(r.ID) != w.id {
			t.Errorf("response %d: expected id %s, got %s", i, w.id, r.ID)
		}
	}
	if len(h.methods) != 0 {
		t.Error("malformed requests must not be dispatched")
	}
}

func TestServer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := NewServer(&echoHandler{}, &syncBuffer{}, newTestLogger())
	err := srv.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`+"\n"))
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestServer_CancelWhileIdle(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(&echoHandler{}, &syncBuffer{}, newTestLogger())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, pr) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel with no pending input")
	}
}
