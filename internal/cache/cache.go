// Package cache stores serialized read models and evicts them after writes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrMiss = errors.New("cache miss")

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Cache is a string to blob store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// New creates the cache for a backend name.
//
// An empty badger path keeps the data in memory.
func New(backend, redisAddr, badgerPath string) (Cache, error) {
	switch backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendBadger:
		return NewBadger(badgerPath)
	case BackendRedis:
		return NewRedis(context.Background(), redisAddr)
	}

	return nil, fmt.Errorf("cache backend %q is not supported", backend)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) {
	return nil, ErrMiss
}

func (Nop) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (Nop) Delete(context.Context, ...string) error {
	return nil
}

func (Nop) Close() error {
	return nil
}
