package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"cobble/pkg/db"
	"cobble/pkg/wal"
)

// EnvPrefix is the environment variable prefix, e.g. COBBLE_CAPACITY.
const EnvPrefix = "COBBLE"

// Config holds the settings of an embedded database.
type Config struct {
	// Dir is the storage directory.
	Dir string `mapstructure:"dir"`
	// Capacity is the number of records buffered before a flush.
	Capacity int `mapstructure:"capacity"`
	// Sync fsyncs the memtable log after every write.
	Sync bool `mapstructure:"sync"`
	// DirectIO loads files with direct I/O reads.
	DirectIO bool `mapstructure:"direct_io"`
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

var ErrInvalid = errors.New("config: invalid configuration")

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Dir:      "data",
		Capacity: db.DefaultCapacity,
		Sync:     true,
		LogLevel: "info",
	}
}

// Load reads the configuration from defaults, the optional file at path and
// environment variables with the given prefix, in increasing precedence. An
// empty path skips the file; a missing file is an error.
func Load(prefix, path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("dir", def.Dir)
	v.SetDefault("capacity", def.Capacity)
	v.SetDefault("sync", def.Sync)
	v.SetDefault("direct_io", def.DirectIO)
	v.SetDefault("log_level", def.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("%w: dir is required", ErrInvalid)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalid, c.Capacity)
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Logger builds a production zap logger at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}

// Options converts the configuration to database options. The logger is
// only built when logger is nil.
func (c Config) Options(logger *zap.Logger) ([]db.Option, error) {
	if logger == nil {
		var err error
		if logger, err = c.Logger(); err != nil {
			return nil, err
		}
	}

	sync := wal.SyncNone
	if c.Sync {
		sync = wal.SyncAlways
	}

	return []db.Option{
		db.WithCapacity(c.Capacity),
		db.WithSyncMode(sync),
		db.WithDirectIO(c.DirectIO),
		db.WithLogger(logger),
	}, nil
}
