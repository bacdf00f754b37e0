package store

import (
	"context"
	"time"
)

// Observer receives one call per backend operation.
type Observer interface {
	ObserveStoreOp(op string, elapsed time.Duration, err error)
}

// Instrumented reports latency and outcome of every call on the wrapped store.
type Instrumented struct {
	inner ObjectStore
	obs   Observer
}

func NewInstrumented(inner ObjectStore, obs Observer) *Instrumented {
	return &Instrumented{inner: inner, obs: obs}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	if s.obs != nil {
		s.obs.ObserveStoreOp(op, time.Since(start), err)
	}
}

func (s *Instrumented) EnsureBucket(ctx context.Context) error {
	start := time.Now()
	err := s.inner.EnsureBucket(ctx)
	s.observe("ensure_bucket", start, err)
	return err
}

func (s *Instrumented) BucketExists(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := s.inner.BucketExists(ctx)
	s.observe("bucket_exists", start, err)
	return ok, err
}

func (s *Instrumented) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	err := s.inner.PutObject(ctx, key, data, contentType)
	s.observe("put_object", start, err)
	return err
}

func (s *Instrumented) GetObject(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.inner.GetObject(ctx, key)
	s.observe("get_object", start, err)
	return data, err
}

func (s *Instrumented) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.inner.ListKeys(ctx, prefix)
	s.observe("list_keys", start, err)
	return keys, err
}

func (s *Instrumented) ListCommonPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	start := time.Now()
	prefixes, err := s.inner.ListCommonPrefixes(ctx, prefix, delimiter)
	s.observe("list_common_prefixes", start, err)
	return prefixes, err
}

func (s *Instrumented) Close() error {
	return s.inner.Close()
}
