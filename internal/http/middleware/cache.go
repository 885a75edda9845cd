// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the response cache that fronts the paginated listing
// endpoint. Eligible requests (GET under the listing path) are served from an
// in-memory TTL cache of previously written response bodies; everything else
// passes through untouched in both directions.
//
// Behavior:
//   - Hit: the stored bytes are written verbatim with the original content
//     type on a fresh response envelope. Headers from the original response
//     are not replayed; only headers set by earlier middleware apply.
//   - Miss: the downstream handler runs with its writer wrapped so the body
//     is buffered as it streams out. A 200 response is then stored under the
//     request's path+query key. Buffering means the cache only ever holds
//     fully materialized bytes, never a live stream handle, so a later hit
//     cannot observe a truncated or consumed body.
//
// Bounds: entries expire a fixed TTL after insertion (reads do not refresh
// the clock), and a capacity cap evicts the least-recently-used entry when
// full.
//
// Concurrency: the underlying cache is safe for concurrent use, but there is
// no per-key mutual exclusion. Two simultaneous misses for one key may both
// run the downstream handler and both store; last write wins. That costs
// duplicate work, not correctness, since the payloads are read-identical.
//
// Mutations never touch the cache: a PUT does not invalidate listing entries,
// so a cached page can be up to one TTL stale after an update.
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// defaultCacheTTL is how long a stored response stays servable.
	defaultCacheTTL = 300 * time.Second
	// defaultCacheCapacity bounds the number of stored responses.
	defaultCacheCapacity = 1000
	// defaultListingSegment marks requests eligible for caching.
	defaultListingSegment = "/players"
)

var (
	// cacheHits counts eligible requests served from the cache.
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "response_cache_hits_total",
		Help: "Total number of listing responses served from the cache.",
	})

	// cacheMisses counts eligible requests that reached the downstream handler.
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "response_cache_misses_total",
		Help: "Total number of listing requests that missed the cache.",
	})

	// cacheEvictions counts removed entries by reason (expired, capacity, deleted).
	cacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "response_cache_evictions_total",
		Help: "Total number of cache entries evicted, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheEvictions)
}

// cachedEntry is one stored response: the materialized body bytes and the
// content type they were produced with.
type cachedEntry struct {
	body        []byte
	contentType string
}

// CacheOptions configures NewResponseCache. Zero values select the defaults
// (300s TTL, 1000 entries, "/players" listing segment).
type CacheOptions struct {
	TTL         time.Duration
	MaxEntries  uint64
	PathSegment string
}

// ResponseCache is the shared response cache installed in front of the
// listing endpoint. Construct with NewResponseCache and install via Handler.
type ResponseCache struct {
	store   *ttlcache.Cache[string, cachedEntry]
	segment string
}

// NewResponseCache builds a ResponseCache and starts its background expiry
// sweep. Call Stop when tearing the server down.
func NewResponseCache(opts CacheOptions) *ResponseCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	capacity := opts.MaxEntries
	if capacity == 0 {
		capacity = defaultCacheCapacity
	}
	segment := opts.PathSegment
	if segment == "" {
		segment = defaultListingSegment
	}

	store := ttlcache.New[string, cachedEntry](
		ttlcache.WithTTL[string, cachedEntry](ttl),
		ttlcache.WithCapacity[string, cachedEntry](capacity),
		// TTL runs from insertion; a read must not keep an entry alive.
		ttlcache.WithDisableTouchOnHit[string, cachedEntry](),
	)
	store.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[string, cachedEntry]) {
		cacheEvictions.WithLabelValues(evictionReason(reason)).Inc()
	})
	go store.Start()

	return &ResponseCache{store: store, segment: segment}
}

// Stop terminates the background expiry sweep.
func (rc *ResponseCache) Stop() { rc.store.Stop() }

// Len reports the current number of stored entries (expired ones included
// until the next sweep).
func (rc *ResponseCache) Len() int { return rc.store.Len() }

// Handler returns the Gin middleware. Install it after compression so the
// stored bytes are the uncompressed payload.
func (rc *ResponseCache) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rc.eligible(c.Request) {
			c.Next()
			return
		}

		key := cacheKey(c.Request)
		if item := rc.store.Get(key); item != nil {
			entry := item.Value()
			cacheHits.Inc()
			c.Data(http.StatusOK, entry.contentType, entry.body)
			c.Abort()
			return
		}
		cacheMisses.Inc()

		cw := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = cw
		c.Next()

		if cw.Status() != http.StatusOK {
			return
		}
		rc.store.Set(key, cachedEntry{
			body:        append([]byte(nil), cw.buf.Bytes()...),
			contentType: cw.Header().Get("Content-Type"),
		}, ttlcache.DefaultTTL)
	}
}

// eligible reports whether the request may be served from or stored in the
// cache: read-only method, path containing the listing segment.
func (rc *ResponseCache) eligible(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.URL.Path, rc.segment)
}

// cacheKey is the request path plus its raw query. Keying on the query string
// keeps distinct pages of the listing from colliding on one entry.
func cacheKey(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

// evictionReason maps ttlcache reasons onto bounded metric labels.
func evictionReason(r ttlcache.EvictionReason) string {
	switch r {
	case ttlcache.EvictionReasonExpired:
		return "expired"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity"
	default:
		return "deleted"
	}
}

// captureWriter tees every write into a buffer while passing it through to
// the real response writer.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
