package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmnode/pkg/core"
	"github.com/NERVsystems/osmnode/pkg/version"
)

// GetVersionTool returns a tool definition for retrieving version information
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version and build information of the osmnode service"),
	)
}

// HandleGetVersion implements version information retrieval
func HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(version.Info())
	if err != nil {
		return core.NewError(core.ErrInternalError, "Failed to retrieve version information").ToMCPResult(), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
