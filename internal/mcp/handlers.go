package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc *ops.Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *ops.Service) *Handlers {
	return &Handlers{svc: svc}
}

// Request types for each tool

// SearchRequest represents the arguments for search.
type SearchRequest struct {
	Query     string `json:"query"`
	LaunchBar bool   `json:"launchbar,omitempty"`
}

// GroupRequest represents the arguments for group.
type GroupRequest struct {
	UUID      string `json:"uuid"`
	LaunchBar bool   `json:"launchbar,omitempty"`
}

// PickRequest represents the arguments for pick.
type PickRequest struct {
	UUID       string `json:"uuid"`
	SmartGroup bool   `json:"smart_group,omitempty"`
}

// OpenRequest represents the arguments for open.
type OpenRequest struct {
	UUID       string `json:"uuid"`
	SmartGroup bool   `json:"smart_group,omitempty"`
	Reveal     bool   `json:"reveal,omitempty"`
}

// CacheClearRequest represents the arguments for cache_clear.
type CacheClearRequest struct {
	Query   *string `json:"query,omitempty"`
	Content bool    `json:"content,omitempty"`
}

// Handler implementations

// HandleSearch handles the search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.Search(ctx, ops.SearchInput{
		Query:     input.Query,
		LaunchBar: input.LaunchBar,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGroup handles the group tool call.
func (h *Handlers) HandleGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.Group(ctx, ops.GroupInput{
		UUID:      input.UUID,
		LaunchBar: input.LaunchBar,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePick handles the pick tool call.
func (h *Handlers) HandlePick(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PickRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.Pick(ctx, ops.PickInput{
		UUID:       input.UUID,
		SmartGroup: input.SmartGroup,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleOpen handles the open tool call.
func (h *Handlers) HandleOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OpenRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.Open(ctx, ops.OpenInput{
		UUID:       input.UUID,
		SmartGroup: input.SmartGroup,
		Reveal:     input.Reveal,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCacheStats handles the cache_stats tool call.
func (h *Handlers) HandleCacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.svc.CacheStats(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCacheClear handles the cache_clear tool call.
func (h *Handlers) HandleCacheClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CacheClearRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.CacheClear(ctx, ops.CacheClearInput{
		Query:   input.Query,
		Content: input.Content,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to prevent leaking paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if dtErr, ok := errors.As(err); ok {
		msg := dtErr.Message
		if err != error(dtErr) {
			// keep the wrapping context
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    dtErr.Code,
			"message": msg,
			"status":  dtErr.Status,
		}
		if dtErr.Code != errors.ErrInternal && dtErr.Details != nil {
			errorObj["details"] = dtErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
