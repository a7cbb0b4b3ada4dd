// Package search coordinates ranked queries over the capture store, adding
// request validation and an optional bounded result cache in front of the
// database's raw search operations.
package search

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/screendex/screendex/internal/database"
)

const (
	// DefaultLimit is used when a request leaves Pagination zero-valued.
	DefaultLimit = 50
	// cacheEntries bounds the LRU; old queries evict automatically.
	cacheEntries = 1000
	// DefaultCacheTTL bounds how stale a cached response may be.
	DefaultCacheTTL = 30 * time.Second
)

// Request describes one search invocation.
type Request struct {
	Query    string
	Filter   *database.FrameFilter
	Page     database.Pagination
	UseCache bool          // opt-in: cached responses may trail recent writes
	CacheTTL time.Duration // zero means DefaultCacheTTL
}

// Response carries results plus execution metadata.
type Response struct {
	Results  []database.SearchResult
	Total    int
	Duration time.Duration
	CacheHit bool
}

// cacheEntry is a cached response with its expiry.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher executes text and keyword searches against one Database.
type Searcher struct {
	db    *database.Database
	cache *lru.Cache[[32]byte, *cacheEntry]
}

// NewSearcher creates a Searcher backed by db.
func NewSearcher(db *database.Database) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheEntries)
	if err != nil {
		// Only reachable with an invalid size constant.
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{db: db, cache: cache}
}

// Search runs a ranked full-text query. The store remains the source of
// truth: caching is per-request opt-in and TTL-bounded.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: empty search query", database.ErrInvalidParameter)
	}
	if req.Page.Limit == 0 {
		req.Page.Limit = DefaultLimit
	}

	key := req.cacheKey()
	if req.UseCache {
		if cached, ok := s.cache.Get(key); ok && time.Now().Before(cached.expiresAt) {
			resp := *cached.response
			resp.CacheHit = true
			resp.Duration = time.Since(start)
			return &resp, nil
		}
	}

	results, err := s.db.SearchText(ctx, req.Query, req.Filter, req.Page)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Results:  results,
		Total:    len(results),
		Duration: time.Since(start),
	}

	if req.UseCache {
		ttl := req.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		s.cache.Add(key, &cacheEntry{response: resp, expiresAt: time.Now().Add(ttl)})
	}

	return resp, nil
}

// Keywords runs a literal, case-insensitive keyword search (OR semantics,
// no stemming). Never cached; it exists for exact matches.
func (s *Searcher) Keywords(ctx context.Context, keywords []string, page database.Pagination) ([]string, error) {
	if page.Limit == 0 {
		page.Limit = DefaultLimit
	}
	return s.db.SearchKeywords(ctx, keywords, page)
}

// cacheKey hashes the full request shape so distinct filters and pages
// never collide.
func (r Request) cacheKey() [32]byte {
	var b strings.Builder
	b.WriteString(r.Query)
	fmt.Fprintf(&b, "|%d|%d", r.Page.Limit, r.Page.Offset)
	if f := r.Filter; f != nil {
		if f.TimeStart != nil {
			fmt.Fprintf(&b, "|ts=%d", f.TimeStart.UnixNano())
		}
		if f.TimeEnd != nil {
			fmt.Fprintf(&b, "|te=%d", f.TimeEnd.UnixNano())
		}
		fmt.Fprintf(&b, "|app=%s|dev=%s|url=%s", f.AppName, f.DeviceName, f.BrowserURL)
		if f.MonitorIndex != nil {
			fmt.Fprintf(&b, "|mon=%d", *f.MonitorIndex)
		}
		for _, id := range f.TagIDs {
			fmt.Fprintf(&b, "|tag=%d", id)
		}
	}
	return sha256.Sum256([]byte(b.String()))
}
