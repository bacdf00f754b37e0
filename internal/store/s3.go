package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/PratikDhanave/session-event-api/internal/config"
)

const defaultListPageTimeout = 30 * time.Second

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type listObjectsV2Paginator interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Client talks to any S3-compatible service. Path-style addressing is forced so
// MinIO-style endpoints work without per-bucket DNS.
type S3Client struct {
	api                       s3API
	bucket                    string
	region                    string
	listPageTimeout           time.Duration
	newListObjectsV2Paginator func(s3.ListObjectsV2APIClient, *s3.ListObjectsV2Input) listObjectsV2Paginator
}

func NewS3Client(ctx context.Context, cfg config.S3Config, bucket string) (*S3Client, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("s3 region is required")
	}
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("s3 endpoint %q must be a valid http(s) URL", cfg.Endpoint)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("s3 endpoint %q must use http or https", cfg.Endpoint)
		}
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Client{
		api:             client,
		bucket:          bucket,
		region:          cfg.Region,
		listPageTimeout: defaultListPageTimeout,
		newListObjectsV2Paginator: func(api s3.ListObjectsV2APIClient, input *s3.ListObjectsV2Input) listObjectsV2Paginator {
			return s3.NewListObjectsV2Paginator(api, input)
		},
	}, nil
}

func (c *S3Client) BucketExists(ctx context.Context) (bool, error) {
	if c.api == nil {
		return false, fmt.Errorf("s3 api client is %w", ErrNotConfigured)
	}
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head bucket: %w", err)
}

func (c *S3Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.BucketExists(ctx)
	if exists {
		return nil
	}
	if errors.Is(err, ErrNotConfigured) {
		return err
	}

	// A failed HEAD (permissions, odd gateways) still gets a create attempt.
	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}
	if _, createErr := c.api.CreateBucket(ctx, input); createErr != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(createErr, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket: %w", createErr)
	}
	return nil
}

func (c *S3Client) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if c.api == nil {
		return fmt.Errorf("s3 api client is %w", ErrNotConfigured)
	}
	if err := checkKey(key); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := c.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (c *S3Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	if c.api == nil {
		return nil, fmt.Errorf("s3 api client is %w", ErrNotConfigured)
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("get object %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

func (c *S3Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := c.eachPage(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output) {
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			keys = append(keys, *obj.Key)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

func (c *S3Client) ListCommonPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	seen := make(map[string]struct{})
	prefixes := make([]string, 0)
	err := c.eachPage(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	}, func(page *s3.ListObjectsV2Output) {
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			if _, ok := seen[*cp.Prefix]; ok {
				continue
			}
			seen[*cp.Prefix] = struct{}{}
			prefixes = append(prefixes, *cp.Prefix)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(prefixes)
	return prefixes, nil
}

func (c *S3Client) Close() error { return nil }

func (c *S3Client) eachPage(ctx context.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output)) error {
	if c.api == nil {
		return fmt.Errorf("s3 api client is %w", ErrNotConfigured)
	}
	if c.newListObjectsV2Paginator == nil {
		return fmt.Errorf("s3 paginator factory is %w", ErrNotConfigured)
	}
	p := c.newListObjectsV2Paginator(c.api, input)
	if p == nil {
		return fmt.Errorf("s3 paginator is %w", ErrNotConfigured)
	}

	for p.HasMorePages() {
		page, err := c.nextPage(ctx, p)
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		if page != nil {
			fn(page)
		}
	}
	return nil
}

func (c *S3Client) nextPage(ctx context.Context, p listObjectsV2Paginator) (*s3.ListObjectsV2Output, error) {
	if c.listPageTimeout <= 0 {
		return p.NextPage(ctx)
	}
	pageCtx, cancel := context.WithTimeout(ctx, c.listPageTimeout)
	defer cancel()
	return p.NextPage(pageCtx)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
