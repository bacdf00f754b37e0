package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// BucketName is the single bucket every event object lives in. It is not configurable.
const BucketName = "app-events"

// Storage backends understood by store.NewFromConfig.
const (
	BackendS3       = "s3"
	BackendLocal    = "local"
	BackendPostgres = "postgres"
)

// ErrInvalidConfig is returned (wrapped) for any value that fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains runtime configuration required by the service.
type Config struct {
	Addr    string        `koanf:"addr"`
	Log     LogConfig     `koanf:"log"`
	Storage StorageConfig `koanf:"storage"`
	S3      S3Config      `koanf:"s3"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

type StorageConfig struct {
	Backend   string `koanf:"backend"`
	LocalRoot string `koanf:"local_root"`
	DBURL     string `koanf:"db_url"`
}

// S3Config points at any S3-compatible endpoint. The defaults target a local MinIO.
type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

// envKeys maps the environment variables the service reads to config paths.
var envKeys = map[string]string{
	"ADDR":            "addr",
	"LOG_LEVEL":       "log.level",
	"LOG_PRETTY":      "log.pretty",
	"STORAGE_BACKEND": "storage.backend",
	"LOCAL_ROOT":      "storage.local_root",
	"DB_URL":          "storage.db_url",
	"S3_ENDPOINT":     "s3.endpoint",
	"S3_REGION":       "s3.region",
	"S3_ACCESS_KEY":   "s3.access_key",
	"S3_SECRET_KEY":   "s3.secret_key",
}

// Default returns the development configuration: MinIO on localhost with its stock credentials.
func Default() Config {
	return Config{
		Addr: ":8000",
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Backend:   BackendS3,
			LocalRoot: "./data",
		},
		S3: S3Config{
			Endpoint:  "http://localhost:9000",
			Region:    "us-east-1",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
		},
	}
}

// Load layers defaults, an optional YAML file named by CONFIG_FILE, then environment variables.
func Load() (Config, error) {
	k := koanf.New(".")

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", func(s string) string {
		return envKeys[s]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Storage.DBURL = strings.TrimSpace(c.Storage.DBURL)
	c.S3.Endpoint = strings.TrimRight(strings.TrimSpace(c.S3.Endpoint), "/")
	c.S3.Region = strings.TrimSpace(c.S3.Region)
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}

	switch c.Storage.Backend {
	case BackendS3:
		if c.S3.Region == "" {
			return fmt.Errorf("%w: s3 region is required", ErrInvalidConfig)
		}
	case BackendLocal:
		if strings.TrimSpace(c.Storage.LocalRoot) == "" {
			return fmt.Errorf("%w: LOCAL_ROOT required for local backend", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.Storage.DBURL == "" {
			return fmt.Errorf("%w: DB_URL required for postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: storage backend must be s3, local, or postgres", ErrInvalidConfig)
	}
	return nil
}
