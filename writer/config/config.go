package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v2"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"

	envPrefix = "QRYN_AI_"
)

type HTTPSettings struct {
	Host        string            `yaml:"host"`
	Port        int               `yaml:"port" validate:"min=1,max=65535"`
	MaxBodySize datasize.ByteSize `yaml:"max_body_size" validate:"gt=0"`
}

type LogSettings struct {
	Level         string `yaml:"level"`
	Json          bool   `yaml:"json"`
	Stdout        bool   `yaml:"stdout"`
	Path          string `yaml:"path"`
	Name          string `yaml:"name"`
	RotationHours int    `yaml:"rotation_hours" validate:"min=0"`
	MaxAgeDays    int    `yaml:"max_age_days" validate:"min=0"`
}

type MergeSettings struct {
	TTL          time.Duration `yaml:"ttl" validate:"gt=0"`
	KeyPrefix    string        `yaml:"key_prefix" validate:"required"`
	Store        string        `yaml:"store" validate:"oneof=redis memory"`
	TrackExpired bool          `yaml:"track_expired"`
}

type RedisSettings struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size" validate:"min=0"`
	TxRetries    uint          `yaml:"tx_retries" validate:"min=1"`
	TxRetryDelay time.Duration `yaml:"tx_retry_delay" validate:"min=0"`
}

type MemorySettings struct {
	MaxBytes datasize.ByteSize `yaml:"max_bytes" validate:"gt=0"`
}

type IngestSettings struct {
	Workers        int           `yaml:"workers" validate:"min=1"`
	SinkRetries    uint          `yaml:"sink_retries" validate:"min=1"`
	SinkRetryDelay time.Duration `yaml:"sink_retry_delay" validate:"min=0"`
}

type QrynAIConfig struct {
	HTTP   HTTPSettings   `yaml:"http"`
	Log    LogSettings    `yaml:"log"`
	Merge  MergeSettings  `yaml:"merge"`
	Redis  RedisSettings  `yaml:"redis"`
	Memory MemorySettings `yaml:"memory"`
	Ingest IngestSettings `yaml:"ingest"`
}

// Setting is the process wide configuration, replaced by main on startup.
var Setting = Default()

func Default() *QrynAIConfig {
	return &QrynAIConfig{
		HTTP: HTTPSettings{
			Host:        "0.0.0.0",
			Port:        3215,
			MaxBodySize: 10 * datasize.MB,
		},
		Log: LogSettings{
			Level:         "error",
			Stdout:        true,
			Path:          "/var/log/qryn-ai",
			Name:          "qryn-ai.log",
			RotationHours: 24,
			MaxAgeDays:    7,
		},
		Merge: MergeSettings{
			TTL:       60 * time.Second,
			KeyPrefix: "otel_merge",
			Store:     StoreRedis,
		},
		Redis: RedisSettings{
			URL:          "redis://localhost:6379/0",
			TxRetries:    10,
			TxRetryDelay: 5 * time.Millisecond,
		},
		Memory: MemorySettings{
			MaxBytes: 64 * datasize.MB,
		},
		Ingest: IngestSettings{
			Workers:        8,
			SinkRetries:    3,
			SinkRetryDelay: 100 * time.Millisecond,
		},
	}
}

// Load reads the YAML file at path over the defaults (an empty path skips the
// file), applies the QRYN_AI_* environment and validates the result.
func Load(path string) (*QrynAIConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config "+path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *QrynAIConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.Merge.Store == StoreRedis && c.Redis.URL == "" {
		return errors.New("invalid config: redis.url is required for the redis store")
	}
	return nil
}

type envBinding struct {
	name string
	set  func(v string) error
}

func (c *QrynAIConfig) bindings() []envBinding {
	return []envBinding{
		{"HTTP_HOST", setString(&c.HTTP.Host)},
		{"HTTP_PORT", setInt(&c.HTTP.Port)},
		{"HTTP_MAX_BODY_SIZE", setSize(&c.HTTP.MaxBodySize)},
		{"LOG_LEVEL", setString(&c.Log.Level)},
		{"LOG_JSON", setBool(&c.Log.Json)},
		{"LOG_STDOUT", setBool(&c.Log.Stdout)},
		{"LOG_PATH", setString(&c.Log.Path)},
		{"LOG_NAME", setString(&c.Log.Name)},
		{"MERGE_TTL", setDuration(&c.Merge.TTL)},
		{"MERGE_KEY_PREFIX", setString(&c.Merge.KeyPrefix)},
		{"MERGE_STORE", setString(&c.Merge.Store)},
		{"MERGE_TRACK_EXPIRED", setBool(&c.Merge.TrackExpired)},
		{"REDIS_URL", setString(&c.Redis.URL)},
		{"REDIS_POOL_SIZE", setInt(&c.Redis.PoolSize)},
		{"MEMORY_MAX_BYTES", setSize(&c.Memory.MaxBytes)},
		{"INGEST_WORKERS", setInt(&c.Ingest.Workers)},
	}
}

func (c *QrynAIConfig) applyEnv(lookup func(string) (string, bool)) error {
	for _, b := range c.bindings() {
		v, ok := lookup(envPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(v); err != nil {
			return errors.Wrap(err, fmt.Sprintf("invalid %s%s", envPrefix, b.name))
		}
	}
	return nil
}

func setString(p *string) func(string) error {
	return func(v string) error {
		*p = v
		return nil
	}
}

func setInt(p *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = i
		return nil
	}
}

func setBool(p *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p = b
		return nil
	}
}

func setDuration(p *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
		return nil
	}
}

func setSize(p *datasize.ByteSize) func(string) error {
	return func(v string) error {
		return p.UnmarshalText([]byte(v))
	}
}
