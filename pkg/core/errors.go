// Package core provides shared utilities for the osmnode MCP tools.
package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmnode/pkg/osm"
)

// ErrorCode defines standard error codes for MCP tools
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Data errors
	ErrNodeNotFound  ErrorCode = "NODE_NOT_FOUND"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// MCPError represents a detailed error structure for MCP tool responses
type MCPError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	NodeID   *int64 `json:"node_id,omitempty"`
	Guidance string `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithNodeID attaches the requested node id
func (e *MCPError) WithNodeID(id int64) *MCPError {
	e.NodeID = &id
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}
	return mcp.NewToolResultError(string(errorJSON))
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// FromNodeError converts an osm lookup error into a tool error. The caller
// contract is single-kinded, so every cause maps to NODE_NOT_FOUND.
func FromNodeError(err error) *MCPError {
	var nf *osm.NodeNotFoundError
	if errors.As(err, &nf) {
		return NewError(ErrNodeNotFound, fmt.Sprintf("OSM node %d not found", nf.ID)).
			WithNodeID(nf.ID).
			WithGuidance("Check that the id refers to an existing node; the OSM API may also be unreachable.")
	}
	return NewError(ErrInternalError, err.Error())
}
