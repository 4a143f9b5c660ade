package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/NERVsystems/osmnode/pkg/core"
	"github.com/NERVsystems/osmnode/pkg/osm"
)

type fakeLookup struct {
	fetched  []int64
	parsedID *int64
	parsed   string
	node     *osm.Node
	err      error
}

func (f *fakeLookup) FetchNode(ctx context.Context, nodeID int64) (*osm.Node, error) {
	f.fetched = append(f.fetched, nodeID)
	return f.node, f.err
}

func (f *fakeLookup) ParseNodeFromXML(nodeID *int64, xmlText string) (*osm.Node, error) {
	f.parsedID = nodeID
	f.parsed = xmlText
	return f.node, f.err
}

const oneNodeXML = `<osm version="0.6"><node id="42" lat="1.5" lon="2.5"><tag k="name" v="Kiosk"/></node></osm>`

func TestHandleGetOSMNode(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantID    int64
		wantError string
	}{
		{"json number", map[string]any{"node_id": float64(5589879349)}, 5589879349, ""},
		{"integer", map[string]any{"node_id": 42}, 42, ""},
		{"numeric string", map[string]any{"node_id": "42"}, 42, ""},
		{"missing", map[string]any{}, 0, string(core.ErrMissingParameter)},
		{"fraction", map[string]any{"node_id": 1.5}, 0, string(core.ErrInvalidParameter)},
		{"negative", map[string]any{"node_id": -3}, 0, string(core.ErrInvalidParameter)},
		{"not a number", map[string]any{"node_id": "abc"}, 0, string(core.ErrInvalidInput)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &fakeLookup{node: osm.SentinelNode()}
			result, err := HandleGetOSMNode(lookup)(context.Background(), newToolRequest("get_osm_node", tt.args))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if tt.wantError != "" {
				AssertErrorResult(t, result, "Expected error result")
				var mcpErr core.MCPError
				if err := ParseResultJSON(result, &mcpErr); err != nil {
					t.Fatalf("error result is not JSON: %v", err)
				}
				if mcpErr.Code != tt.wantError {
					t.Errorf("code = %s, want %s", mcpErr.Code, tt.wantError)
				}
				if len(lookup.fetched) != 0 {
					t.Errorf("lookup should not be called, got %v", lookup.fetched)
				}
				return
			}

			AssertSuccessResult(t, result, "Expected success")
			if len(lookup.fetched) != 1 || lookup.fetched[0] != tt.wantID {
				t.Fatalf("fetched %v, want [%d]", lookup.fetched, tt.wantID)
			}

			var node osm.Node
			if err := ParseResultJSON(result, &node); err != nil {
				t.Fatal(err)
			}
			if node.Name == nil || *node.Name != "Rada Coffee & Rösterei" {
				t.Errorf("unexpected name %v", node.Name)
			}
		})
	}
}

func TestHandleGetOSMNode_NotFound(t *testing.T) {
	lookup := &fakeLookup{err: &osm.NodeNotFoundError{ID: 7, Cause: osm.CauseFetch, Err: errors.New("boom")}}

	result, err := HandleGetOSMNode(lookup)(context.Background(), newToolRequest("get_osm_node", map[string]any{"node_id": 7}))
	if err != nil {
		t.Fatal(err)
	}
	AssertErrorResult(t, result, "Expected not found to be an error result")

	var mcpErr core.MCPError
	if err := ParseResultJSON(result, &mcpErr); err != nil {
		t.Fatal(err)
	}
	if mcpErr.Code != string(core.ErrNodeNotFound) {
		t.Errorf("code = %s", mcpErr.Code)
	}
	if mcpErr.NodeID == nil || *mcpErr.NodeID != 7 {
		t.Errorf("node id = %v", mcpErr.NodeID)
	}
}

func TestHandleParseOSMNodeXML(t *testing.T) {
	t.Run("without id", func(t *testing.T) {
		lookup := &fakeLookup{node: &osm.Node{NodeID: 42, Tags: map[string]string{}}}
		result, err := HandleParseOSMNodeXML(lookup)(context.Background(),
			newToolRequest("parse_osm_node_xml", map[string]any{"xml": oneNodeXML}))
		if err != nil {
			t.Fatal(err)
		}
		AssertSuccessResult(t, result, "Expected success")
		if lookup.parsedID != nil {
			t.Errorf("expected nil id, got %d", *lookup.parsedID)
		}
		if lookup.parsed != oneNodeXML {
			t.Errorf("document not passed through")
		}
	})

	t.Run("with id", func(t *testing.T) {
		lookup := &fakeLookup{node: &osm.Node{NodeID: 42, Tags: map[string]string{}}}
		_, err := HandleParseOSMNodeXML(lookup)(context.Background(),
			newToolRequest("parse_osm_node_xml", map[string]any{"xml": oneNodeXML, "node_id": 42}))
		if err != nil {
			t.Fatal(err)
		}
		if lookup.parsedID == nil || *lookup.parsedID != 42 {
			t.Errorf("expected id 42, got %v", lookup.parsedID)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		lookup := &fakeLookup{}
		result, _ := HandleParseOSMNodeXML(lookup)(context.Background(),
			newToolRequest("parse_osm_node_xml", map[string]any{"xml": "  "}))
		AssertErrorResult(t, result, "Expected missing xml to fail")
	})

	t.Run("pipeline error", func(t *testing.T) {
		lookup := &fakeLookup{err: &osm.NodeNotFoundError{ID: -1, Cause: osm.CauseNoNodes}}
		result, _ := HandleParseOSMNodeXML(lookup)(context.Background(),
			newToolRequest("parse_osm_node_xml", map[string]any{"xml": "<osm/>"}))
		AssertErrorResult(t, result, "Expected no nodes to fail")
	})
}

func TestHandleParseOSMNodeXML_RealService(t *testing.T) {
	svc := osm.NewService(nil)
	result, err := HandleParseOSMNodeXML(svc)(context.Background(),
		newToolRequest("parse_osm_node_xml", map[string]any{"xml": oneNodeXML}))
	if err != nil {
		t.Fatal(err)
	}
	AssertSuccessResult(t, result, "Expected success")

	var got map[string]json.RawMessage
	if err := ParseResultJSON(result, &got); err != nil {
		t.Fatal(err)
	}
	if string(got["node_id"]) != "42" || string(got["name"]) != `"Kiosk"` || string(got["lat"]) != "1.5" {
		t.Errorf("unexpected node JSON: %s", resultText(result))
	}
}
