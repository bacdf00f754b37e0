package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/PratikDhanave/session-event-api/internal/config"
)

var (
	ErrInvalidKey     = errors.New("invalid object key")
	ErrObjectNotFound = errors.New("object not found")
	ErrNotConfigured  = errors.New("not configured")
)

// ObjectStore is a single bucket of key-addressed blobs with prefix listing.
type ObjectStore interface {
	// EnsureBucket creates the bucket when it does not exist yet.
	EnsureBucket(ctx context.Context) error
	BucketExists(ctx context.Context) (bool, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	// ListKeys returns every key starting with prefix, sorted.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// ListCommonPrefixes groups keys under prefix by the first delimiter after it and
	// returns each distinct group, delimiter included, sorted.
	ListCommonPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error)
	Close() error
}

// NewFromConfig opens the backend selected by cfg.Storage.Backend for the given bucket.
func NewFromConfig(ctx context.Context, cfg config.Config, bucket string) (ObjectStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		return NewLocalClient(cfg.Storage.LocalRoot, bucket), nil
	case config.BackendPostgres:
		db, err := NewPostgresStore(cfg.Storage.DBURL, bucket)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return db, nil
	case config.BackendS3, "":
		c, err := NewS3Client(ctx, cfg.S3, bucket)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return nil
}

// commonPrefixes emulates delimiter listing for backends that only list flat keys.
func commonPrefixes(keys []string, prefix, delimiter string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		idx := strings.Index(rest, delimiter)
		if delimiter == "" || idx < 0 {
			continue
		}
		p := prefix + rest[:idx+len(delimiter)]
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
