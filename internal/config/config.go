package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TransportStdio     = "stdio"
	TransportWebsocket = "websocket"
)

// Config is the full worker configuration.
type Config struct {
	Env       string          `yaml:"env"`
	Transport TransportConfig `yaml:"transport"`
	Reactor   ReactorConfig   `yaml:"reactor"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Index     IndexConfig     `yaml:"index"`
}

type TransportConfig struct {
	// Mode is "stdio" or "websocket".
	Mode  string `yaml:"mode"`
	URL   string `yaml:"url"`
	Codec string `yaml:"codec"`
	// AnnounceReady defaults to true for websocket, false for stdio.
	AnnounceReady *bool `yaml:"announce_ready"`
}

type ReactorConfig struct {
	BatchSize     int `yaml:"batch_size"`
	MaxBatchBytes int `yaml:"max_batch_bytes"`
}

type ExecutorConfig struct {
	MaxInstances int `yaml:"max_instances"`
	Threads      int `yaml:"threads"`
}

type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format"`
}

type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type IndexConfig struct {
	DatabaseURL string `yaml:"database_url"`
	Table       string `yaml:"table"`
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		Env: "production",
		Transport: TransportConfig{
			Mode:  TransportStdio,
			Codec: "json",
		},
		Reactor: ReactorConfig{
			BatchSize:     20,
			MaxBatchBytes: 4 << 20,
		},
		Executor: ExecutorConfig{
			MaxInstances: 64,
			Threads:      4,
		},
		Log: LogConfig{Format: "json"},
		Storage: StorageConfig{
			Region: "us-east-1",
			UseSSL: true,
		},
		Index: IndexConfig{Table: "assets"},
	}
}

// Load reads .env, then the YAML file at path (missing file means defaults), then
// environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env != "" {
		cfg.Env = env
	}
	if strings.EqualFold(cfg.Env, "local") {
		cfg.applyLocal()
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Transport.Mode = firstNonEmpty(strings.TrimSpace(os.Getenv("WORKER_TRANSPORT")), c.Transport.Mode)
	c.Transport.URL = firstNonEmpty(strings.TrimSpace(os.Getenv("WORKER_CONTROLLER_URL")), c.Transport.URL)
	c.Transport.Codec = firstNonEmpty(strings.TrimSpace(os.Getenv("WORKER_CODEC")), c.Transport.Codec)

	c.Reactor.BatchSize = envInt("WORKER_BATCH_SIZE", c.Reactor.BatchSize)
	c.Reactor.MaxBatchBytes = envInt("WORKER_MAX_BATCH_BYTES", c.Reactor.MaxBatchBytes)
	c.Executor.MaxInstances = envInt("WORKER_MAX_INSTANCES", c.Executor.MaxInstances)
	c.Executor.Threads = envInt("WORKER_THREADS", c.Executor.Threads)
	c.Log.Verbose = envBool("WORKER_VERBOSE", c.Log.Verbose)

	c.Storage.Endpoint = firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_S3_ENDPOINT")), c.Storage.Endpoint)
	c.Storage.Region = firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_S3_REGION")), c.Storage.Region)
	c.Storage.AccessKey = firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER")), c.Storage.AccessKey)
	c.Storage.SecretKey = firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD")), c.Storage.SecretKey)
	c.Storage.UseSSL = envBool("STORAGE_S3_USE_SSL", c.Storage.UseSSL)

	c.Index.DatabaseURL = firstNonEmpty(strings.TrimSpace(os.Getenv("DATABASE_URL")), c.Index.DatabaseURL)
	c.Index.Table = firstNonEmpty(strings.TrimSpace(os.Getenv("INDEX_TABLE")), c.Index.Table)
}

// AnnounceReady reports whether the worker sends ready on startup.
func (c *Config) AnnounceReady() bool {
	if c.Transport.AnnounceReady != nil {
		return *c.Transport.AnnounceReady
	}
	return c.Transport.Mode == TransportWebsocket
}

// Validate normalizes the transport mode and rejects unusable settings.
func (c *Config) Validate() error {
	c.Transport.Mode = strings.ToLower(strings.TrimSpace(c.Transport.Mode))
	switch c.Transport.Mode {
	case TransportStdio:
	case TransportWebsocket:
		if strings.TrimSpace(c.Transport.URL) == "" {
			return fmt.Errorf("config: websocket transport requires a controller url")
		}
	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport.Mode)
	}
	if c.Reactor.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive, got %d", c.Reactor.BatchSize)
	}
	if c.Reactor.MaxBatchBytes < 0 {
		return fmt.Errorf("config: max batch bytes must not be negative")
	}
	if c.Executor.Threads <= 0 || c.Executor.MaxInstances <= 0 {
		return fmt.Errorf("config: executor threads and max instances must be positive")
	}
	return nil
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
