package database

import "time"

// NewVideoChunk holds the fields for inserting a recorded segment.
type NewVideoChunk struct {
	DeviceName string
	FilePath   string
	StartTime  time.Time
	EndTime    time.Time
	Width      int
	Height     int
	FPS        float64
}

// VideoChunk represents a contiguous recorded segment. Chunks are written once
// when the capture pipeline closes a segment and removed only by retention.
type VideoChunk struct {
	ID         int64
	DeviceName string
	FilePath   string
	StartTime  time.Time
	EndTime    time.Time
	DurationMS int64
	Width      int
	Height     int
	FPS        float64
}

// NewFrame holds the fields for inserting a captured still.
type NewFrame struct {
	ChunkID      *int64 // nil when the frame is not part of a chunk
	Timestamp    time.Time
	MonitorIndex int
	DeviceName   string
	FilePath     string
	WindowName   string
	AppName      string
	BrowserURL   string
	Width        int
	Height       int
	Focused      bool
}

// Frame represents one captured screenshot with its window context.
type Frame struct {
	ID           int64
	ChunkID      *int64
	Timestamp    time.Time
	MonitorIndex int
	DeviceName   string
	FilePath     string
	WindowName   string
	AppName      string
	BrowserURL   string
	Width        int
	Height       int
	Focused      bool
}

// NewOcrText holds the fields for inserting one recognized text span.
type NewOcrText struct {
	Text       string
	TextJSON   string // optional structured recognition result
	X          int
	Y          int
	Width      int
	Height     int
	Confidence float64 // must be in [0, 1]
}

// OcrText represents one recognized text span within a frame. Rows are
// exclusively owned by their frame and mirrored into the full-text index.
type OcrText struct {
	ID         int64
	FrameID    int64
	Text       string
	TextJSON   string
	X          int
	Y          int
	Width      int
	Height     int
	Confidence float64
}

// Tag is a user-defined label with a lifecycle independent of frames.
type Tag struct {
	ID          int64
	Name        string
	Description string
	Color       string
}

// FrameFilter narrows frame-producing queries. All supplied predicates are
// combined with AND; zero values mean "no constraint".
type FrameFilter struct {
	TimeStart    *time.Time // inclusive
	TimeEnd      *time.Time // inclusive
	AppName      string     // exact match
	DeviceName   string     // exact match
	BrowserURL   string     // exact match
	MonitorIndex *int
	TagIDs       []int64 // frame must carry at least one of these tags
}

// Pagination is limit/offset result windowing.
type Pagination struct {
	Limit  int
	Offset int
}

// MaxPageSize bounds a single page to keep memory and latency predictable.
const MaxPageSize = 1000

// normalize validates the page and clamps the limit to MaxPageSize.
func (p Pagination) normalize() (Pagination, error) {
	if p.Limit < 1 {
		return p, ErrInvalidParameter
	}
	if p.Offset < 0 {
		return p, ErrInvalidParameter
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p, nil
}

// SearchResult is one ranked full-text match joined back to its frame.
type SearchResult struct {
	FrameID      int64
	OcrID        int64
	Timestamp    time.Time
	MonitorIndex int
	DeviceName   string
	AppName      string
	WindowName   string
	BrowserURL   string
	FilePath     string
	Text         string
	// Score is the BM25 relevance, normalized so higher is better and any
	// match scores positive.
	Score float64
}

// Statistics is an aggregate health snapshot of the store.
type Statistics struct {
	FrameCount  int64
	OcrCount    int64
	TagCount    int64
	ChunkCount  int64
	OldestFrame *time.Time
	NewestFrame *time.Time
	SizeMB      float64
}
