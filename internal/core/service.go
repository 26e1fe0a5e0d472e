package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvkit/internal/config"
	"github.com/JonMunkholm/csvkit/internal/csv"
	"github.com/JonMunkholm/csvkit/internal/ingest"
	"github.com/JonMunkholm/csvkit/internal/logging"
	"github.com/JonMunkholm/csvkit/internal/store"
)

// ErrStoreDisabled is returned by dataset operations when the service runs
// without a database.
var ErrStoreDisabled = errors.New("dataset storage disabled")

// DatasetStore persists datasets. *store.Store implements it.
type DatasetStore interface {
	Save(ctx context.Context, d store.Dataset) (store.Dataset, error)
	Get(ctx context.Context, id uuid.UUID) (store.Dataset, error)
	List(ctx context.Context, limit int) ([]store.Dataset, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service runs codec operations under the configured limits.
type Service struct {
	dialect      csv.Config
	maxInputSize int64

	limiter *Limiter
	cache   *Cache
	store   DatasetStore
}

// NewService builds a Service from cfg. ds may be nil, which disables the
// dataset operations.
func NewService(cfg *config.Config, ds DatasetStore) (*Service, error) {
	dialect, err := cfg.Codec.Dialect()
	if err != nil {
		return nil, fmt.Errorf("codec config: %w", err)
	}

	var cache *Cache
	if cfg.Cache.Enabled {
		cache, err = NewCache(CacheConfig{
			NumCounters: cfg.Cache.NumCounters,
			MaxCost:     cfg.Cache.MaxCost,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Service{
		dialect:      dialect,
		maxInputSize: cfg.Limits.MaxInputSize,
		limiter:      NewLimiter(cfg.Limits.MaxConcurrent, cfg.Limits.MaxWaitTime),
		cache:        cache,
		store:        ds,
	}, nil
}

// Dialect returns the server's default codec configuration.
func (s *Service) Dialect() csv.Config {
	return s.dialect
}

// MaxInputSize returns the largest accepted input in bytes.
func (s *Service) MaxInputSize() int64 {
	return s.maxInputSize
}

// Limiter exposes the concurrency limiter for health checks and shutdown.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// CacheStats reports parse cache counters.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// StoreEnabled reports whether dataset operations are available.
func (s *Service) StoreEnabled() bool {
	return s.store != nil
}

// Close releases the cache.
func (s *Service) Close() {
	s.cache.Close()
}

// Parse decodes text under cfg. Results are cached by dialect and text, and
// every caller receives its own copy.
func (s *Service) Parse(ctx context.Context, text string, cfg csv.Config) (*csv.Table, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)

	key := CacheKey(text, cfg)
	if t, ok := s.cache.Get(key); ok {
		logger.Debug("parse cache hit", "records", t.Len())
		return t, nil
	}

	start := time.Now()
	var t *csv.Table
	err := s.limiter.Do(ctx, func() error {
		var err error
		t, err = csv.Parse(text, cfg)
		return err
	})
	if err != nil {
		logger.Info("parse rejected", "bytes", len(text), "error", err)
		return nil, err
	}

	s.cache.Set(key, t, int64(len(text)))
	logger.Info("parsed csv",
		"records", t.Len(),
		"width", t.Width(),
		"bytes", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return t, nil
}

// ParseReader reads r with the configured size limit and parses it.
func (s *Service) ParseReader(ctx context.Context, r io.Reader, cfg csv.Config) (*csv.Table, error) {
	text, _, err := ingest.ReadText(r, s.maxInputSize)
	if err != nil {
		return nil, err
	}
	return s.Parse(ctx, text, cfg)
}

// Serialize encodes t under cfg.
func (s *Service) Serialize(ctx context.Context, t *csv.Table, cfg csv.Config) (string, error) {
	var out string
	err := s.limiter.Do(ctx, func() error {
		var err error
		out, err = csv.Serialize(t, cfg)
		return err
	})
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Debug("serialized csv", "records", t.Len(), "bytes", len(out))
	return out, nil
}

// Project turns every data record into a name-to-value mapping.
func (s *Service) Project(ctx context.Context, t *csv.Table) ([]map[string]string, error) {
	rows, err := t.Rows()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		out[i] = row.Map()
	}
	return out, nil
}

// SaveDataset validates text by parsing it and stores its canonical form.
func (s *Service) SaveDataset(ctx context.Context, name, text string, cfg csv.Config) (store.Dataset, error) {
	if s.store == nil {
		return store.Dataset{}, ErrStoreDisabled
	}

	cfg = cfg.WithDefaults()
	t, err := s.Parse(ctx, text, cfg)
	if err != nil {
		return store.Dataset{}, err
	}

	// Stored bodies always use "\n" so they re-parse byte for byte.
	canonical := cfg
	canonical.CRLF = false
	body, err := csv.Serialize(t, canonical)
	if err != nil {
		return store.Dataset{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "untitled"
	}

	d, err := s.store.Save(ctx, store.Dataset{
		Name:      name,
		Delimiter: cfg.Delimiter,
		Quote:     cfg.Quote,
		HasHeader: cfg.HasHeader,
		Body:      body,
		Records:   t.Len(),
	})
	if err != nil {
		return store.Dataset{}, err
	}

	logging.WithFields(ctx, "dataset_id", d.ID).Info("dataset saved", "name", d.Name, "records", d.Records)
	return d, nil
}

// LoadDataset fetches a dataset and parses its body.
func (s *Service) LoadDataset(ctx context.Context, id uuid.UUID) (store.Dataset, *csv.Table, error) {
	if s.store == nil {
		return store.Dataset{}, nil, ErrStoreDisabled
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		return store.Dataset{}, nil, err
	}
	t, err := s.Parse(ctx, d.Body, d.Dialect())
	if err != nil {
		return store.Dataset{}, nil, fmt.Errorf("dataset %s: %w", id, err)
	}
	return d, t, nil
}

// ListDatasets returns stored datasets, newest first.
func (s *Service) ListDatasets(ctx context.Context, limit int) ([]store.Dataset, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.List(ctx, limit)
}

// DeleteDataset removes a dataset.
func (s *Service) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	if s.store == nil {
		return ErrStoreDisabled
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logging.WithFields(ctx, "dataset_id", id).Info("dataset deleted")
	return nil
}
