package stdio_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/capability"
	"github.com/tkingovr/toolbridge/internal/router"
	"github.com/tkingovr/toolbridge/internal/transport/stdio"
)

// TestInterop_SDKClient drives the stdio server with the reference MCP client.
func TestInterop_SDKClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tools := router.StaticTools{{
		Name:        "echo",
		Description: "Echo the arguments",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}}
	call := func(_ context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
		var in map[string]any
		_ = json.Unmarshal(args, &in)
		if in["fail"] == true {
			return nil, errors.New("asked to fail")
		}
		return args, nil
	}
	r := router.New(
		capability.NewBuilder().WithTools(false).Build(),
		api.Implementation{Name: "toolbridge-test", Version: "1.0.0"},
		tools, call, router.WithLogger(logger),
	)

	clientToServerR, clientToServerW := io.Pipe()
	serverToClientR, serverToClientW := io.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := stdio.NewServer(r, serverToClientW, logger).Serve(ctx, clientToServerR)
		serverToClientW.Close()
		done <- err
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "interop", Version: "test"}, nil)
	session, err := client.Connect(ctx, &mcpsdk.IOTransport{Reader: serverToClientR, Writer: clientToServerW}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if got := session.InitializeResult().ServerInfo.Name; got != "toolbridge-test" {
		t.Errorf("expected server name toolbridge-test, got %q", got)
	}

	list, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("tools/list: %v", err)
	}
	if len(list.Tools) != 1 || list.Tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", list.Tools)
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: "echo", Arguments: map[string]any{"x": 1}})
	if err != nil {
		t.Fatalf("tools/call: %v", err)
	}
	if res.IsError || len(res.Content) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok || text.Text != `{"x":1}` {
		t.Errorf("unexpected content: %#v", res.Content[0])
	}

	res, err = session.CallTool(ctx, &mcpsdk.CallToolParams{Name: "echo", Arguments: map[string]any{"fail": true}})
	if err != nil {
		t.Fatalf("tools/call: %v", err)
	}
	if !res.IsError {
		t.Error("expected isError for a failing tool")
	}

	if err := session.Close(); err != nil {
		t.Logf("close: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after the client closed")
	}
}
