package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/meterclient/internal/clock"
	"github.com/tejusbharadwaj/meterclient/internal/models"
)

const cacheKeyPrefix = "resp/"

// ResponseCache stores compressed API responses in BadgerDB.
type ResponseCache struct {
	db      *badger.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	ttl     time.Duration
}

type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// OpenResponseCache opens a cache rooted at dir. An empty dir keeps the
// cache in memory. A zero ttl keeps entries forever.
func OpenResponseCache(dir string, ttl time.Duration) (*ResponseCache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open response cache: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &ResponseCache{db: db, encoder: encoder, decoder: decoder, ttl: ttl}, nil
}

// Get returns the cached response for key, if any.
func (c *ResponseCache) Get(key string) (*Response, bool, error) {
	var compressed []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	raw, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompression failed: %w", err)
	}
	var cr cachedResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return &Response{StatusCode: cr.StatusCode, Header: http.Header{}, Body: cr.Body}, true, nil
}

// Put stores resp under key. The body must be valid JSON.
func (c *ResponseCache) Put(key string, resp *Response) error {
	raw, err := json.Marshal(cachedResponse{StatusCode: resp.StatusCode, Body: resp.Body})
	if err != nil {
		return fmt.Errorf("failed to encode cached response: %w", err)
	}
	compressed := c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(cacheKeyPrefix+key), compressed)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (c *ResponseCache) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return c.db.Close()
}

// CachingTransport serves closed historical measurement windows from a
// ResponseCache. Only GET requests whose datumBis lies before today are
// cached, and only successful responses carrying at least one sample are
// stored: readings are published late, so an empty answer may not be final.
type CachingTransport struct {
	next   Transport
	cache  *ResponseCache
	clock  clock.Clock
	logger logrus.FieldLogger
}

func NewCachingTransport(next Transport, cache *ResponseCache, c clock.Clock, logger logrus.FieldLogger) *CachingTransport {
	return &CachingTransport{next: next, cache: cache, clock: c, logger: logger}
}

func (t *CachingTransport) Do(ctx context.Context, req Request) (*Response, error) {
	if !t.cacheable(req) {
		return t.next.Do(ctx, req)
	}

	key := cacheKey(req)
	if resp, ok, err := t.cache.Get(key); err != nil {
		t.logger.WithError(err).Warn("Response cache read failed")
	} else if ok {
		t.logger.WithFields(logrus.Fields{
			"url":   req.URL,
			"range": req.Query.Get("datumVon") + ".." + req.Query.Get("datumBis"),
		}).Debug("Serving measurements from response cache")
		return resp, nil
	}

	resp, err := t.next.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.OK() && hasSamples(resp.Body) {
		if err := t.cache.Put(key, resp); err != nil {
			t.logger.WithError(err).Warn("Response cache write failed")
		}
	}
	return resp, nil
}

func hasSamples(body []byte) bool {
	meters, _, err := models.ParseSeries(body)
	if err != nil {
		return false
	}
	for _, m := range meters {
		if m.SampleCount() > 0 {
			return true
		}
	}
	return false
}

func (t *CachingTransport) cacheable(req Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	end := req.Query.Get("datumBis")
	if end == "" {
		return false
	}
	endDate, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return false
	}
	return endDate.Before(models.Midnight(t.clock.Now()))
}

// cacheKey covers method, URL and query. Headers are excluded.
func cacheKey(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Method))
	h.Write([]byte{'\n'})
	h.Write([]byte(req.URL))
	h.Write([]byte{'\n'})
	h.Write([]byte(req.Query.Encode()))
	return hex.EncodeToString(h.Sum(nil))
}

var _ Transport = (*CachingTransport)(nil)
