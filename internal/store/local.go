package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalClient keeps one directory per bucket under rootDir. Content types are not persisted.
type LocalClient struct {
	rootDir string
	bucket  string
}

func NewLocalClient(rootDir, bucket string) *LocalClient {
	return &LocalClient{rootDir: rootDir, bucket: bucket}
}

func (c *LocalClient) bucketDir() string {
	return filepath.Join(c.rootDir, c.bucket)
}

func (c *LocalClient) EnsureBucket(_ context.Context) error {
	if err := os.MkdirAll(c.bucketDir(), 0o755); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (c *LocalClient) BucketExists(_ context.Context) (bool, error) {
	info, err := os.Stat(c.bucketDir())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (c *LocalClient) PutObject(_ context.Context, key string, data []byte, _ string) error {
	fullPath, err := c.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (c *LocalClient) GetObject(_ context.Context, key string) ([]byte, error) {
	fullPath, err := c.objectPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get object %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return data, nil
}

func (c *LocalClient) ListKeys(_ context.Context, prefix string) ([]string, error) {
	root := c.bucketDir()
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := decodeKey(filepath.ToSlash(rel))
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (c *LocalClient) ListCommonPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	keys, err := c.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return commonPrefixes(keys, prefix, delimiter), nil
}

func (c *LocalClient) Close() error { return nil }

// objectPath maps a key to a file below the bucket directory. Segments a filesystem
// cannot hold as-is (empty, "." and "..") and any '%' or '\' are escaped, so every key
// maps to exactly one file inside the bucket.
func (c *LocalClient) objectPath(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return filepath.Join(c.bucketDir(), filepath.FromSlash(encodeKey(key))), nil
}

var (
	segmentEscaper   = strings.NewReplacer("%", "%25", `\`, "%5C")
	segmentUnescaper = strings.NewReplacer("%25", "%", "%5C", `\`, "%2E", ".")
)

const emptySegment = "%"

func encodeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		switch seg {
		case "":
			segs[i] = emptySegment
		case ".":
			segs[i] = "%2E"
		case "..":
			segs[i] = "%2E%2E"
		default:
			segs[i] = segmentEscaper.Replace(seg)
		}
	}
	return strings.Join(segs, "/")
}

func decodeKey(name string) string {
	segs := strings.Split(name, "/")
	for i, seg := range segs {
		if seg == emptySegment {
			segs[i] = ""
			continue
		}
		segs[i] = segmentUnescaper.Replace(seg)
	}
	return strings.Join(segs, "/")
}
