package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmnode/pkg/core"
)

// InputParser decodes request arguments into a strongly typed struct
func InputParser[T any](req mcp.CallToolRequest) (T, *mcp.CallToolResult, error) {
	var input T

	inputJSON, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("Invalid input format: %v", err)).ToMCPResult(), err
	}

	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return input, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("Failed to parse input: %v", err)).ToMCPResult(), err
	}

	return input, nil, nil
}

// parseNodeID converts a JSON number (or numeric string) into a node id.
// Fractions, exponents and negative values are rejected.
func parseNodeID(param string, n json.Number) (int64, *core.MCPError) {
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || id < 0 {
		return 0, core.NewValidationError(core.ErrInvalidParameter,
			fmt.Sprintf("%s must be a non-negative integer, got %q", param, n.String()))
	}
	return id, nil
}
