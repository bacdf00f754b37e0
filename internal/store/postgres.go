package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore keeps objects as rows, one table shared by all buckets.
type PostgresStore struct {
	pool   *pgxpool.Pool
	bucket string
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL, bucket string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, bucket: bucket}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) EnsureBucket(ctx context.Context) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO buckets(name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, p.bucket)
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (p *PostgresStore) BucketExists(ctx context.Context) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM buckets WHERE name=$1)`, p.bucket).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("head bucket: %w", err)
	}
	return exists, nil
}

// PutObject overwrites an existing row for the same key, matching S3 PUT semantics.
func (p *PostgresStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO objects(bucket, object_key, content_type, body)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (bucket, object_key)
		DO UPDATE SET content_type=EXCLUDED.content_type, body=EXCLUDED.body, created_at=now()
	`, p.bucket, key, contentType, data)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	var body []byte
	err := p.pool.QueryRow(ctx,
		`SELECT body FROM objects WHERE bucket=$1 AND object_key=$2`, p.bucket, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get object %s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return body, nil
}

// ListKeys orders by byte value (COLLATE "C") so results agree with the other backends.
func (p *PostgresStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT object_key
		FROM objects
		WHERE bucket=$1
		  AND object_key LIKE $2 ESCAPE '\'
		ORDER BY object_key COLLATE "C"
	`, p.bucket, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (p *PostgresStore) ListCommonPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	keys, err := p.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return commonPrefixes(keys, prefix, delimiter), nil
}

// likePrefix escapes LIKE wildcards in prefix and appends the trailing match-all.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
