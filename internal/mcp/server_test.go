package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screendex/screendex/internal/database"
)

func setupTestServer(t *testing.T) (*Server, *database.Database) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewServerWithDatabase(db), db
}

// callRequest builds a tool invocation the way the MCP transport would.
func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultJSON decodes the text payload of a tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool results are text content")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func insertServerFixture(t *testing.T, db *database.Database) int64 {
	t.Helper()
	ctx := context.Background()
	frameID, err := db.InsertFrame(ctx, database.NewFrame{
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		AppName:    "chrome",
		WindowName: "Dashboard - Chrome",
		DeviceName: "monitor-1",
	})
	require.NoError(t, err)
	_, err = db.InsertOcrText(ctx, frameID, database.NewOcrText{
		Text:       "production deploy finished successfully",
		Confidence: 0.95,
	})
	require.NoError(t, err)
	return frameID
}

func TestNewServerWithDatabase(t *testing.T) {
	srv, _ := setupTestServer(t)

	assert.NotNil(t, srv.mcp, "MCP server should be initialized")
	assert.NotNil(t, srv.db, "database should be wired")
	assert.NotNil(t, srv.searcher, "searcher should be wired")
}

func TestNewServerCreatesDirectory(t *testing.T) {
	srv, err := NewServer(t.TempDir())
	require.NoError(t, err)
	defer srv.Close()

	assert.NotNil(t, srv.db)
}

func TestHandleSearchFrames(t *testing.T) {
	srv, db := setupTestServer(t)
	frameID := insertServerFixture(t, db)

	result, err := srv.handleSearchFrames(context.Background(), callRequest("search_frames", map[string]interface{}{
		"query": "deploy",
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.EqualValues(t, 1, payload["total"])

	results := payload["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.EqualValues(t, frameID, first["frame_id"])
	assert.Equal(t, "chrome", first["app_name"])
	assert.Positive(t, first["score"].(float64))
}

func TestHandleSearchFramesFilters(t *testing.T) {
	srv, db := setupTestServer(t)
	insertServerFixture(t, db)

	result, err := srv.handleSearchFrames(context.Background(), callRequest("search_frames", map[string]interface{}{
		"query":    "deploy",
		"app_name": "firefox",
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.EqualValues(t, 0, payload["total"])
}

func TestHandleSearchFramesValidation(t *testing.T) {
	srv, _ := setupTestServer(t)
	ctx := context.Background()

	_, err := srv.handleSearchFrames(ctx, callRequest("search_frames", map[string]interface{}{}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)

	_, err = srv.handleSearchFrames(ctx, callRequest("search_frames", map[string]interface{}{
		"query":      "deploy",
		"start_time": "not-a-timestamp",
	}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleRecentFrames(t *testing.T) {
	srv, db := setupTestServer(t)
	frameID := insertServerFixture(t, db)

	result, err := srv.handleRecentFrames(context.Background(), callRequest("recent_frames", map[string]interface{}{
		"start_time": "2026-03-01T00:00:00Z",
		"end_time":   "2026-03-02T00:00:00Z",
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.EqualValues(t, 1, payload["total"])
	frames := payload["frames"].([]interface{})
	require.Len(t, frames, 1)
	assert.EqualValues(t, frameID, frames[0].(map[string]interface{})["frame_id"])
}

func TestHandleRecentFramesRequiresStart(t *testing.T) {
	srv, _ := setupTestServer(t)

	_, err := srv.handleRecentFrames(context.Background(), callRequest("recent_frames", map[string]interface{}{}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleGetStatistics(t *testing.T) {
	srv, db := setupTestServer(t)
	insertServerFixture(t, db)

	result, err := srv.handleGetStatistics(context.Background(), callRequest("get_statistics", nil))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.EqualValues(t, 1, payload["frame_count"])
	assert.EqualValues(t, 1, payload["ocr_count"])
	assert.Contains(t, payload, "oldest_frame")
}

func TestHandleTagFrame(t *testing.T) {
	srv, db := setupTestServer(t)
	frameID := insertServerFixture(t, db)
	ctx := context.Background()

	result, err := srv.handleTagFrame(ctx, callRequest("tag_frame", map[string]interface{}{
		"frame_id": float64(frameID),
		"tag":      "release",
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, "release", payload["tag"])

	// Tagging again reuses the existing tag and stays idempotent.
	_, err = srv.handleTagFrame(ctx, callRequest("tag_frame", map[string]interface{}{
		"frame_id": float64(frameID),
		"tag":      "release",
	}))
	require.NoError(t, err)

	tags, err := db.GetTagsForFrame(ctx, frameID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "release", tags[0].Name)
}

func TestHandleTagFrameMissingFrame(t *testing.T) {
	srv, _ := setupTestServer(t)

	_, err := srv.handleTagFrame(context.Background(), callRequest("tag_frame", map[string]interface{}{
		"frame_id": float64(9999),
		"tag":      "ghost",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeNotFound, mcpErr.Code)
}
