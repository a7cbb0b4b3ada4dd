package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/screendex/screendex/internal/database"
	"github.com/screendex/screendex/internal/search"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound      = -32001 // Referenced entity does not exist
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleSearchFrames handles the search_frames tool invocation
func (s *Server) handleSearchFrames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}

	filter := &database.FrameFilter{
		AppName:    getStringDefault(args, "app_name", ""),
		DeviceName: getStringDefault(args, "device_name", ""),
	}
	for key, dest := range map[string]**time.Time{
		"start_time": &filter.TimeStart,
		"end_time":   &filter.TimeEnd,
	} {
		if raw := getStringDefault(args, key, ""); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, newMCPError(ErrorCodeInvalidParams, "invalid timestamp", map[string]interface{}{
					"param":  key,
					"reason": err.Error(),
				})
			}
			*dest = &t
		}
	}

	resp, err := s.searcher.Search(ctx, search.Request{
		Query:  query,
		Filter: filter,
		Page: database.Pagination{
			Limit:  getIntDefault(args, "limit", 20),
			Offset: getIntDefault(args, "offset", 0),
		},
	})
	if err != nil {
		return nil, toolError("search failed", err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"frame_id":  r.FrameID,
			"timestamp": r.Timestamp.Format(time.RFC3339),
			"app_name":  r.AppName,
			"window":    r.WindowName,
			"device":    r.DeviceName,
			"text":      r.Text,
			"score":     r.Score,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results":     results,
		"total":       resp.Total,
		"duration_ms": resp.Duration.Milliseconds(),
	})), nil
}

// handleRecentFrames handles the recent_frames tool invocation
func (s *Server) handleRecentFrames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	startRaw := getStringDefault(args, "start_time", "")
	if startRaw == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "start_time parameter is required", map[string]interface{}{
			"param": "start_time",
		})
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid start_time", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	end := time.Now()
	if endRaw := getStringDefault(args, "end_time", ""); endRaw != "" {
		end, err = time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid end_time", map[string]interface{}{
				"reason": err.Error(),
			})
		}
	}

	var filter *database.FrameFilter
	if app := getStringDefault(args, "app_name", ""); app != "" {
		filter = &database.FrameFilter{AppName: app}
	}
	page := database.Pagination{
		Limit:  getIntDefault(args, "limit", 50),
		Offset: getIntDefault(args, "offset", 0),
	}

	frames, err := s.db.GetFramesInRange(ctx, start, end, filter, page)
	if err != nil {
		return nil, toolError("failed to list frames", err)
	}
	total, err := s.db.CountFramesInRange(ctx, start, end, filter)
	if err != nil {
		return nil, toolError("failed to count frames", err)
	}

	out := make([]map[string]interface{}, 0, len(frames))
	for _, f := range frames {
		out = append(out, map[string]interface{}{
			"frame_id":  f.ID,
			"timestamp": f.Timestamp.Format(time.RFC3339),
			"app_name":  f.AppName,
			"window":    f.WindowName,
			"device":    f.DeviceName,
			"monitor":   f.MonitorIndex,
			"focused":   f.Focused,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"frames": out,
		"total":  total,
	})), nil
}

// handleGetStatistics handles the get_statistics tool invocation
func (s *Server) handleGetStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.db.Statistics(ctx)
	if err != nil {
		return nil, toolError("failed to collect statistics", err)
	}

	response := map[string]interface{}{
		"frame_count": stats.FrameCount,
		"ocr_count":   stats.OcrCount,
		"tag_count":   stats.TagCount,
		"chunk_count": stats.ChunkCount,
		"size_mb":     fmt.Sprintf("%.2f", stats.SizeMB),
	}
	if stats.OldestFrame != nil {
		response["oldest_frame"] = stats.OldestFrame.Format(time.RFC3339)
	}
	if stats.NewestFrame != nil {
		response["newest_frame"] = stats.NewestFrame.Format(time.RFC3339)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleTagFrame handles the tag_frame tool invocation
func (s *Server) handleTagFrame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	frameID := int64(getIntDefault(args, "frame_id", 0))
	name := getStringDefault(args, "tag", "")
	if frameID <= 0 || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "frame_id and tag are required", nil)
	}

	tag, err := s.db.GetTagByName(ctx, name)
	if errors.Is(err, database.ErrNotFound) {
		id, cerr := s.db.CreateTag(ctx, name, "", "")
		if cerr != nil {
			return nil, toolError("failed to create tag", cerr)
		}
		tag = &database.Tag{ID: id, Name: name}
	} else if err != nil {
		return nil, toolError("failed to look up tag", err)
	}

	if err := s.db.AddTagToFrame(ctx, frameID, tag.ID); err != nil {
		return nil, toolError("failed to tag frame", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"frame_id": frameID,
		"tag_id":   tag.ID,
		"tag":      tag.Name,
	})), nil
}

// Helper functions

// toolError maps core error types onto MCP error codes.
func toolError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, database.ErrNotFound):
		code = ErrorCodeNotFound
	case errors.Is(err, database.ErrInvalidParameter):
		code = ErrorCodeInvalidParams
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
