package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/dtbar/internal/backend"
	"github.com/hpungsan/dtbar/internal/config"
	"github.com/hpungsan/dtbar/internal/db"
	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/ops"
	"github.com/hpungsan/dtbar/internal/record"
)

// stubClient serves a fixed document list.
type stubClient struct {
	docs   []record.Record
	opened []string
}

func (c *stubClient) Search(_ context.Context, req backend.Request) ([]record.Record, error) {
	var hits []record.Record
	for _, d := range c.docs {
		if strings.Contains(d.Name, req.Query) {
			hits = append(hits, d)
		}
	}
	return hits, nil
}

func (c *stubClient) BatchSearch(ctx context.Context, reqs []backend.Request) ([][]record.Record, error) {
	return nil, errors.NewBackend("batch search", fmt.Errorf("DEVONthink is not running"))
}

func (c *stubClient) Fetch(_ context.Context, uuid string) (record.Record, error) {
	for _, d := range c.docs {
		if d.UUID == uuid {
			return d, nil
		}
	}
	return record.Record{}, errors.NewFetch(uuid, fmt.Errorf("not found"))
}

func (c *stubClient) GroupChildren(_ context.Context, uuid string) ([]record.Record, error) {
	if uuid != "G" {
		return nil, errors.NewBackend("group children", fmt.Errorf("no group %s", uuid))
	}
	return c.docs[:1], nil
}

func (c *stubClient) Open(_ context.Context, url string, _ bool) error {
	c.opened = append(c.opened, url)
	return nil
}

// testSetup creates a service over a temporary database and a stub client.
func testSetup(t *testing.T) (*ops.Service, *config.Config, *stubClient) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	client := &stubClient{docs: []record.Record{
		{UUID: "A", Score: 0.9, ModifiedAt: modified, Payload: record.Payload{Name: "report alpha", Type: "PDF document", Path: "/a.pdf"}},
		{UUID: "B", Score: 0.5, ModifiedAt: modified, Payload: record.Payload{Name: "report beta", Type: "PDF document", Path: "/b.pdf"}},
	}}

	cfg := config.DefaultConfig()
	cfg.ResourcesPath = t.TempDir()
	svc, err := ops.NewService(database, cfg, client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, cfg, client
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleSearch(t *testing.T) {
	svc, _, _ := testSetup(t)
	h := NewHandlers(svc)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		result, err := h.HandleSearch(ctx, makeRequest(map[string]any{"query": "report"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := parseOutput(t, result)
		if output["mode"] != "full" {
			t.Errorf("mode = %v, want full", output["mode"])
		}
		if output["count"] != float64(2) {
			t.Errorf("count = %v, want 2", output["count"])
		}
		results := output["results"].([]any)
		first := results[0].(map[string]any)
		if first["uuid"] != "A" {
			t.Errorf("first uuid = %v, want A", first["uuid"])
		}
	})

	t.Run("launchbar items", func(t *testing.T) {
		result, err := h.HandleSearch(ctx, makeRequest(map[string]any{"query": "alpha", "launchbar": true}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := parseOutput(t, result)
		items := output["items"].([]any)
		if len(items) != 1 {
			t.Fatalf("len(items) = %d, want 1", len(items))
		}
		if items[0].(map[string]any)["title"] != "report alpha" {
			t.Errorf("title = %v", items[0].(map[string]any)["title"])
		}
	})

	t.Run("backend failure on revalidation", func(t *testing.T) {
		result, err := h.HandleSearch(ctx, makeRequest(map[string]any{"query": "report"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertErrorCode(t, result, string(errors.ErrBackend))
	})

	t.Run("missing query", func(t *testing.T) {
		result, err := h.HandleSearch(ctx, makeRequest(map[string]any{}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertErrorCode(t, result, string(errors.ErrInvalidRequest))
	})

	t.Run("wrong argument type", func(t *testing.T) {
		result, err := h.HandleSearch(ctx, makeRequest(map[string]any{"query": 42}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertErrorCode(t, result, string(errors.ErrInvalidRequest))
	})
}

func TestHandleSearch_UnknownArgument(t *testing.T) {
	svc, _, _ := testSetup(t)
	h := NewHandlers(svc)

	result, err := h.HandleSearch(context.Background(), makeRequest(map[string]any{"query": "report", "limit": 5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestHandleGroup(t *testing.T) {
	svc, _, _ := testSetup(t)
	h := NewHandlers(svc)
	ctx := context.Background()

	result, err := h.HandleGroup(ctx, makeRequest(map[string]any{"uuid": "G"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["count"] != float64(1) {
		t.Errorf("count = %v, want 1", output["count"])
	}

	result, err = h.HandleGroup(ctx, makeRequest(map[string]any{"uuid": "nope"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrBackend))
}

func TestHandlePickAndOpen(t *testing.T) {
	svc, _, client := testSetup(t)
	h := NewHandlers(svc)
	ctx := context.Background()

	result, err := h.HandlePick(ctx, makeRequest(map[string]any{"uuid": "A"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["count"] != float64(1) {
		t.Errorf("count = %v, want 1", output["count"])
	}
	if output["reference_url"] != "x-devonthink-item://A" {
		t.Errorf("reference_url = %v", output["reference_url"])
	}

	result, err = h.HandleOpen(ctx, makeRequest(map[string]any{"uuid": "S", "smart_group": true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parseOutput(t, result)
	if len(client.opened) != 1 || client.opened[0] != "x-devonthink-smartgroup//S" {
		t.Errorf("opened = %v", client.opened)
	}

	result, err = h.HandlePick(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestHandleCacheStatsAndClear(t *testing.T) {
	svc, _, _ := testSetup(t)
	h := NewHandlers(svc)
	ctx := context.Background()

	if _, err := h.HandleSearch(ctx, makeRequest(map[string]any{"query": "report"})); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	result, err := h.HandleCacheStats(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["content_entries"] != float64(2) {
		t.Errorf("content_entries = %v, want 2", output["content_entries"])
	}
	if output["query_entries"] != float64(1) {
		t.Errorf("query_entries = %v, want 1", output["query_entries"])
	}

	result, err = h.HandleCacheClear(ctx, makeRequest(map[string]any{"query": "unknown"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrNotFound))

	result, err = h.HandleCacheClear(ctx, makeRequest(map[string]any{"query": "report", "content": true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output = parseOutput(t, result)
	if output["queries_removed"] != float64(1) || output["content_removed"] != float64(2) {
		t.Errorf("clear output = %v", output)
	}

	// The snapshot is gone, so the next search is a full sync again
	result, err = h.HandleSearch(ctx, makeRequest(map[string]any{"query": "report"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parseOutput(t, result)["mode"] != "full" {
		t.Error("expected full sync after clear")
	}
}

func TestServerRegistration(t *testing.T) {
	svc, cfg, _ := testSetup(t)

	s := NewServer(svc, cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"devonthink_search",
		"devonthink_group",
		"devonthink_pick",
		"devonthink_open",
		"devonthink_cache_stats",
		"devonthink_cache_clear",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	svc, cfg, _ := testSetup(t)

	cfg.DisabledTools = []string{"devonthink_cache_clear", "devonthink_open", "devonthink_open"}
	tools := NewServer(svc, cfg, "test").ListTools()

	if len(tools) != 4 {
		t.Errorf("registered tool count = %d, want 4", len(tools))
	}
	for _, name := range []string{"devonthink_cache_clear", "devonthink_open"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	svc, cfg, _ := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	tools := NewServer(svc, cfg, "test").ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"devonthink_pick", "devonthink_cache_clear"}, 0},
		{"one unknown", []string{"devonthink_pick", "devonthink_delete"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 6 {
		t.Errorf("AllToolNames() returned %d names, want 6", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	err := errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied"))
	err.Details = map[string]any{"path": "/tmp/secret.db"}
	r := errorResult(err)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", errors.NewFetch("U1", fmt.Errorf("gone")))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrFetch) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrFetch)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "resolve:") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("abc")))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != "INTERNAL" {
		t.Errorf("code=%v, want INTERNAL", errObj["code"])
	}
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message=%v", errObj["message"])
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result, got success")
		return
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
