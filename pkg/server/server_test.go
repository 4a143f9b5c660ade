package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/NERVsystems/osmnode/pkg/osm"
)

type stubFetcher struct {
	body string
	err  error
}

func (f stubFetcher) FetchNodeXML(ctx context.Context, nodeID int64) (string, error) {
	return f.body, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(f osm.Fetcher) *Server {
	svc := osm.NewService(f)
	svc.SetLogger(quietLogger())
	return NewServer(svc, quietLogger())
}

const kioskXML = `<osm version="0.6"><node id="42" lat="1.5" lon="2.5"><tag k="name" v="Kiosk"/><tag k="addr:postcode" v="10115"/></node></osm>`

func TestNewServer_RegistersTools(t *testing.T) {
	s := newTestServer(stubFetcher{})

	want := []string{"get_version", "get_osm_node", "parse_osm_node_xml"}
	if diff := cmp.Diff(want, s.ToolNames()); diff != "" {
		t.Errorf("tool names mismatch (-want +got):\n%s", diff)
	}
	if s.GetMCPServer() == nil {
		t.Fatal("expected underlying MCP server")
	}
}

// callTool sends a tools/call message straight to the MCP server
func callTool(t *testing.T, s *Server, name string, args map[string]any) (text string, isError bool) {
	t.Helper()

	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp := s.GetMCPServer().HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
	if decoded.Error != nil {
		t.Fatalf("json-rpc error: %s", decoded.Error.Message)
	}
	if len(decoded.Result.Content) == 0 {
		t.Fatalf("empty result: %s", raw)
	}
	return decoded.Result.Content[0].Text, decoded.Result.IsError
}

func TestServer_GetOSMNode(t *testing.T) {
	s := newTestServer(stubFetcher{body: kioskXML})

	text, isError := callTool(t, s, "get_osm_node", map[string]any{"node_id": 42})
	if isError {
		t.Fatalf("unexpected tool error: %s", text)
	}

	var node osm.Node
	if err := json.Unmarshal([]byte(text), &node); err != nil {
		t.Fatal(err)
	}
	if node.NodeID != 42 || node.Name == nil || *node.Name != "Kiosk" {
		t.Errorf("unexpected node: %s", text)
	}
	if node.PostalCode == nil || *node.PostalCode != 10115 {
		t.Errorf("unexpected postal code: %v", node.PostalCode)
	}
}

func TestServer_GetOSMNodeFallback(t *testing.T) {
	s := newTestServer(stubFetcher{err: &osm.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}})

	text, isError := callTool(t, s, "get_osm_node", map[string]any{"node_id": osm.SentinelNodeID})
	if isError {
		t.Fatalf("sentinel id should fall back, got %s", text)
	}
	if !strings.Contains(text, "Heidelberg") {
		t.Errorf("expected fixture record, got %s", text)
	}

	text, isError = callTool(t, s, "get_osm_node", map[string]any{"node_id": 12})
	if !isError || !strings.Contains(text, "NODE_NOT_FOUND") {
		t.Errorf("expected NODE_NOT_FOUND, got %s", text)
	}
}

func TestServer_ParseOSMNodeXML(t *testing.T) {
	s := newTestServer(stubFetcher{})

	text, isError := callTool(t, s, "parse_osm_node_xml", map[string]any{"xml": kioskXML, "node_id": 99})
	if !isError || !strings.Contains(text, "NODE_NOT_FOUND") {
		t.Errorf("expected unmatched id to fail, got %s", text)
	}

	text, isError = callTool(t, s, "parse_osm_node_xml", map[string]any{"xml": kioskXML})
	if isError || !strings.Contains(text, `"name":"Kiosk"`) {
		t.Errorf("unexpected result %s", text)
	}
}

func TestServer_ServeStdio(t *testing.T) {
	s := newTestServer(stubFetcher{})

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, inR, outW)
		outW.Close()
	}()

	initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}` + "\n"
	if _, err := io.WriteString(inW, initialize); err != nil {
		t.Fatal(err)
	}

	scanner := bufio.NewScanner(outR)
	if !scanner.Scan() {
		t.Fatalf("no initialize response: %v", scanner.Err())
	}

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("decoding %s: %v", scanner.Text(), err)
	}
	if resp.ID != 1 || resp.Result.ServerInfo.Name != ServerName {
		t.Errorf("unexpected initialize response: %s", scanner.Text())
	}

	if err := s.Serve(ctx, strings.NewReader(""), io.Discard); err == nil {
		t.Error("expected second Serve to be rejected while running")
	}

	inW.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Serve did not return after stdin closed")
	}
}
