package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/JonMunkholm/csvkit/internal/csv"
)

// CacheConfig sizes the parse cache.
type CacheConfig struct {
	NumCounters int64
	MaxCost     int64 // total bytes of cached input text
	BufferItems int64
}

// Cache keeps recently parsed tables keyed by dialect and input text.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	c *ristretto.Cache
}

// NewCache builds a ristretto-backed cache.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 {
		return nil, errors.New("cache: NumCounters and MaxCost must be positive")
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// CacheKey identifies a parse of text under cfg.
func CacheKey(text string, cfg csv.Config) string {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(cfg.Delimiter))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cfg.Quote))
	h.Write(buf[:])
	h.Write([]byte{boolByte(cfg.HasHeader), boolByte(cfg.NumericCoercion)})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Get returns a private copy of a cached table.
func (c *Cache) Get(key string) (*csv.Table, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.c.Get(key)
	if !ok {
		return nil, false
	}
	t, _ := v.(*csv.Table)
	if t == nil {
		c.c.Del(key)
		return nil, false
	}
	return t.Clone(), true
}

// Set stores a copy of t. cost is the size of the input it was parsed from.
// Admission is asynchronous and may be refused.
func (c *Cache) Set(key string, t *csv.Table, cost int64) bool {
	if c == nil || t == nil {
		return false
	}
	if cost < 1 {
		cost = 1
	}
	return c.c.Set(key, t.Clone(), cost)
}

// Wait blocks until pending Sets are applied.
func (c *Cache) Wait() {
	if c != nil {
		c.c.Wait()
	}
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Enabled bool   `json:"enabled"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{Enabled: true, Hits: c.c.Metrics.Hits(), Misses: c.c.Metrics.Misses()}
}

// Close releases the cache.
func (c *Cache) Close() {
	if c != nil {
		c.c.Close()
	}
}
