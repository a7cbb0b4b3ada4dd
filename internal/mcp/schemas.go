package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchFramesTool returns the tool definition for search_frames
func searchFramesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_frames",
		Description: "Full-text search over OCR'd screen content, ranked by relevance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query; terms are stemmed and ANDed",
				},
				"app_name": map[string]interface{}{
					"type":        "string",
					"description": "Only match frames captured from this application",
				},
				"device_name": map[string]interface{}{
					"type":        "string",
					"description": "Only match frames captured on this device",
				},
				"start_time": map[string]interface{}{
					"type":        "string",
					"description": "Inclusive lower time bound (RFC 3339)",
				},
				"end_time": map[string]interface{}{
					"type":        "string",
					"description": "Inclusive upper time bound (RFC 3339)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-1000)",
					"default":     20,
					"minimum":     1,
					"maximum":     1000,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to skip",
					"default":     0,
					"minimum":     0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// recentFramesTool returns the tool definition for recent_frames
func recentFramesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recent_frames",
		Description: "List captured frames in a time range, oldest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"start_time": map[string]interface{}{
					"type":        "string",
					"description": "Inclusive lower time bound (RFC 3339)",
				},
				"end_time": map[string]interface{}{
					"type":        "string",
					"description": "Inclusive upper time bound (RFC 3339); defaults to now",
				},
				"app_name": map[string]interface{}{
					"type":        "string",
					"description": "Only list frames captured from this application",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of frames to return (1-1000)",
					"default":     50,
					"minimum":     1,
					"maximum":     1000,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of frames to skip",
					"default":     0,
					"minimum":     0,
				},
			},
			Required: []string{"start_time"},
		},
	}
}

// getStatisticsTool returns the tool definition for get_statistics
func getStatisticsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_statistics",
		Description: "Report aggregate counts and the captured time range",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// tagFrameTool returns the tool definition for tag_frame
func tagFrameTool() mcp.Tool {
	return mcp.Tool{
		Name:        "tag_frame",
		Description: "Attach a named tag to a captured frame, creating the tag if needed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"frame_id": map[string]interface{}{
					"type":        "integer",
					"description": "Frame to tag",
				},
				"tag": map[string]interface{}{
					"type":        "string",
					"description": "Tag name; created on first use",
				},
			},
			Required: []string{"frame_id", "tag"},
		},
	}
}
