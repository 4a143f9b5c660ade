// Package tools provides the osmnode MCP tool implementations.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmnode/pkg/core"
	"github.com/NERVsystems/osmnode/pkg/osm"
)

// NodeLookup is the part of osm.Service the node tools depend on
type NodeLookup interface {
	FetchNode(ctx context.Context, nodeID int64) (*osm.Node, error)
	ParseNodeFromXML(nodeID *int64, xmlText string) (*osm.Node, error)
}

// GetOSMNodeInput is the argument shape of get_osm_node
type GetOSMNodeInput struct {
	NodeID *json.Number `json:"node_id"`
}

// ParseOSMNodeXMLInput is the argument shape of parse_osm_node_xml
type ParseOSMNodeXMLInput struct {
	XML    string       `json:"xml"`
	NodeID *json.Number `json:"node_id,omitempty"`
}

// GetOSMNodeTool returns the tool definition for fetching a node by id
func GetOSMNodeTool() mcp.Tool {
	return mcp.NewTool("get_osm_node",
		mcp.WithDescription("Fetch an OpenStreetMap node by id and return its name, coordinates, address and contact tags"),
		mcp.WithNumber("node_id",
			mcp.Required(),
			mcp.Description("The numeric OSM node id, e.g. 5589879349"),
		),
	)
}

// ParseOSMNodeXMLTool returns the tool definition for parsing an OSM API 0.6 document
func ParseOSMNodeXMLTool() mcp.Tool {
	return mcp.NewTool("parse_osm_node_xml",
		mcp.WithDescription("Parse an OSM API 0.6 XML document and return the normalized node"),
		mcp.WithString("xml",
			mcp.Required(),
			mcp.Description("The raw XML document containing one or more <node> elements"),
		),
		mcp.WithNumber("node_id",
			mcp.Description("Id of the node to extract. The first node is used when omitted"),
		),
	)
}

// HandleGetOSMNode returns a handler that fetches a node through lookup
func HandleGetOSMNode(lookup NodeLookup) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", "get_osm_node")

		input, errResult, err := InputParser[GetOSMNodeInput](req)
		if err != nil {
			logger.Error("failed to parse input", "error", err)
			return errResult, nil
		}
		if input.NodeID == nil {
			return core.NewValidationError(core.ErrMissingParameter, "node_id is required").ToMCPResult(), nil
		}

		nodeID, mcpErr := parseNodeID("node_id", *input.NodeID)
		if mcpErr != nil {
			return mcpErr.ToMCPResult(), nil
		}

		node, err := lookup.FetchNode(ctx, nodeID)
		if err != nil {
			logger.Info("node lookup failed", "node_id", nodeID, "error", err)
			return core.FromNodeError(err).ToMCPResult(), nil
		}

		return nodeResult(node, logger), nil
	}
}

// HandleParseOSMNodeXML returns a handler that parses a caller-supplied document
func HandleParseOSMNodeXML(lookup NodeLookup) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", "parse_osm_node_xml")

		input, errResult, err := InputParser[ParseOSMNodeXMLInput](req)
		if err != nil {
			logger.Error("failed to parse input", "error", err)
			return errResult, nil
		}
		if strings.TrimSpace(input.XML) == "" {
			return core.NewValidationError(core.ErrMissingParameter, "xml is required").ToMCPResult(), nil
		}

		var nodeID *int64
		if input.NodeID != nil {
			id, mcpErr := parseNodeID("node_id", *input.NodeID)
			if mcpErr != nil {
				return mcpErr.ToMCPResult(), nil
			}
			nodeID = &id
		}

		node, err := lookup.ParseNodeFromXML(nodeID, input.XML)
		if err != nil {
			return core.FromNodeError(err).ToMCPResult(), nil
		}

		return nodeResult(node, logger), nil
	}
}

func nodeResult(node *osm.Node, logger *slog.Logger) *mcp.CallToolResult {
	data, err := json.Marshal(node)
	if err != nil {
		logger.Error("failed to marshal node", "error", err)
		return core.NewError(core.ErrInternalError, "Failed to serialize node").ToMCPResult()
	}
	return mcp.NewToolResultText(string(data))
}
