package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

// Config holds all application configuration.
type Config struct {
	Queue        QueueConfig   `yaml:"queue"`
	SharedMemory ShmConfig     `yaml:"shared_memory"`
	Logging      LogConfig     `yaml:"logging"`
	Metrics      MetricsConfig `yaml:"metrics"`
}

// QueueConfig holds message queue settings.
type QueueConfig struct {
	Name         string `envconfig:"MEMIPC_QUEUE_NAME" default:"/memipc" yaml:"name"`
	ReplyName    string `envconfig:"MEMIPC_REPLY_QUEUE" yaml:"reply_name"`
	MaxItemSize  int    `envconfig:"MEMIPC_MAX_ITEM_SIZE" default:"65536" yaml:"max_item_size"`
	MaxQueueSize int    `envconfig:"MEMIPC_MAX_QUEUE_SIZE" default:"1024" yaml:"max_queue_size"`
	Perm         uint32 `envconfig:"MEMIPC_QUEUE_PERM" default:"0644" yaml:"perm"`
	RaiseRlimit  bool   `envconfig:"MEMIPC_RAISE_RLIMIT" default:"true" yaml:"raise_rlimit"`
}

// ShmConfig holds shared-memory journal settings. An empty Name disables
// the journal.
type ShmConfig struct {
	Dir  string `envconfig:"MEMIPC_SHM_DIR" default:"/dev/shm" yaml:"dir"`
	Name string `envconfig:"MEMIPC_SHM_NAME" yaml:"name"`
	Size int64  `envconfig:"MEMIPC_SHM_SIZE" default:"1048576" yaml:"size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
	File        string `envconfig:"LOG_FILE" yaml:"file"`
	Rotate      bool   `envconfig:"LOG_ROTATE" default:"false" yaml:"rotate"`
	MaxSizeMB   int    `envconfig:"LOG_MAX_SIZE_MB" default:"100" yaml:"max_size_mb"`
	MaxBackups  int    `envconfig:"LOG_MAX_BACKUPS" default:"3" yaml:"max_backups"`
	MaxAgeDays  int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28" yaml:"max_age_days"`
	Compress    bool   `envconfig:"LOG_COMPRESS" default:"false" yaml:"compress"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Addr    string `envconfig:"METRICS_ADDR" default:":9464" yaml:"addr"`
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"false" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads the environment and then overlays the YAML file at path.
// Keys missing from the file keep their environment or default values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Queue: QueueConfig{
			Name:         "/memipc",
			MaxItemSize:  65536,
			MaxQueueSize: 1024,
			Perm:         0o644,
			RaiseRlimit:  true,
		},
		SharedMemory: ShmConfig{
			Dir:  "/dev/shm",
			Size: 1 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			MaxSizeMB:   100,
			MaxBackups:  3,
			MaxAgeDays:  28,
		},
		Metrics: MetricsConfig{
			Addr:    ":9464",
			Enabled: false,
		},
	}
}

// Validate checks that the configuration can be used to open channels.
func (c *Config) Validate() error {
	var errs []error
	if c.Queue.Name == "" {
		errs = append(errs, errors.New("queue name is required"))
	}
	if c.Queue.MaxItemSize <= 0 {
		errs = append(errs, fmt.Errorf("max item size must be positive, got %d", c.Queue.MaxItemSize))
	}
	if c.Queue.MaxQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("max queue size must be positive, got %d", c.Queue.MaxQueueSize))
	}
	if c.Queue.Perm > 0o777 {
		errs = append(errs, fmt.Errorf("queue permission %#o is not a permission mask", c.Queue.Perm))
	}
	if c.Queue.ReplyName != "" && c.Queue.ReplyName == c.Queue.Name {
		errs = append(errs, errors.New("reply queue must differ from the request queue"))
	}
	if c.SharedMemory.Name != "" && c.SharedMemory.Size <= 0 {
		errs = append(errs, fmt.Errorf("shared memory size must be positive, got %d", c.SharedMemory.Size))
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	return errors.Join(errs...)
}
