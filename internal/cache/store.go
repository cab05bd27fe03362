package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "greenbudget",
	Subsystem: "cache",
	Name:      "lookups_total",
	Help:      "Read model cache lookups by result.",
}, []string{"result"})

// Store reads read models through a cache.
//
// Concurrent misses of the same key are collapsed into one load.
type Store struct {
	cache Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewStore(c Cache, ttl time.Duration) *Store {
	if c == nil {
		c = Nop{}
	}
	return &Store{cache: c, ttl: ttl}
}

// Cache returns the underlying cache.
func (s *Store) Cache() Cache {
	return s.cache
}

// Invalidate drops keys from the cache.
func (s *Store) Invalidate(ctx context.Context, keys []string) {
	Invalidate(ctx, s.cache, keys)
}

// Fetch returns the cached value for key or loads, caches and returns it.
//
// Every caller receives its own decoded copy of the value.
func Fetch[T any](ctx context.Context, s *Store, key string, load func(context.Context) (T, error)) (T, error) {
	var value T

	data, err := s.cache.Get(ctx, key)
	if err == nil {
		if err = json.Unmarshal(data, &value); err == nil {
			lookups.WithLabelValues("hit").Inc()
			return value, nil
		}
		log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
	} else if !errors.Is(err, ErrMiss) {
		log.Error().Err(err).Str("key", key).Msg("reading from cache")
	}

	lookups.WithLabelValues("miss").Inc()

	shared, err, _ := s.group.Do(key, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(loaded)
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			log.Error().Err(err).Str("key", key).Msg("writing to cache")
		}
		return data, nil
	})
	if err != nil {
		return value, err
	}

	err = json.Unmarshal(shared.([]byte), &value)
	return value, err
}
