package middleware

// This in-memory cache is used for simplicity purpose. It can be replaced with Redis.
// golang-lru evicts the least recently accessed items.

import (
	"bytes"
	"net/http"

	lru "github.com/hashicorp/golang-lru"
)

type cachedResponse struct {
	contentType string
	body        []byte
}

// Cache stores successful GET responses keyed by request URI.
type Cache struct {
	lru *lru.Cache
}

// NewCache sets up an in-memory LRU cache holding up to size responses.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Middleware serves cached responses and stores new 200 responses.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := generateCacheKey(r)
		if v, ok := c.lru.Get(key); ok {
			resp := v.(cachedResponse)
			w.Header().Set("Content-Type", resp.contentType)
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			w.Write(resp.body)
			return
		}

		rec := newResponseRecorder(w)
		rec.buffer = &bytes.Buffer{}
		w.Header().Set("X-Cache", "MISS")
		next.ServeHTTP(rec, r)

		if rec.status == http.StatusOK {
			c.lru.Add(key, cachedResponse{
				contentType: w.Header().Get("Content-Type"),
				body:        rec.buffer.Bytes(),
			})
		}
	})
}

// Contains reports whether a response for r is cached.
func (c *Cache) Contains(r *http.Request) bool {
	return c.lru.Contains(generateCacheKey(r))
}

// Purge drops every cached response.
func (c *Cache) Purge() {
	c.lru.Purge()
}

func generateCacheKey(r *http.Request) string {
	return r.Method + ":" + r.URL.RequestURI()
}
