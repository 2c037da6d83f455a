// Package config loads process configuration from defaults, an optional
// YAML file and LUFTSCAN_ environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LUFTSCAN_SERVER_ADDR.
const EnvPrefix = "LUFTSCAN"

// DevSigningKey is used when no signing key is configured. Serving with it
// logs a warning.
const DevSigningKey = "dev-secret-key-change-in-production"

type Config struct {
	Server   Server   `mapstructure:"server"`
	Scan     Scan     `mapstructure:"scan"`
	Log      Log      `mapstructure:"log"`
	Database Database `mapstructure:"database"`
	Redis    Redis    `mapstructure:"redis"`
	Kafka    Kafka    `mapstructure:"kafka"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	JWTSigningKey   string        `mapstructure:"jwt_signing_key"`
	RequireAuth     bool          `mapstructure:"require_auth"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	MaxSamples      int           `mapstructure:"max_samples"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// ScanRateLimit caps POST /scans per client per ScanRateWindow.
	// Zero disables the limit.
	ScanRateLimit  int           `mapstructure:"scan_rate_limit"`
	ScanRateWindow time.Duration `mapstructure:"scan_rate_window"`
}

// Scan holds evaluator defaults. Zero workers means GOMAXPROCS.
type Scan struct {
	Workers      int `mapstructure:"workers"`
	BatchSize    int `mapstructure:"batch_size"`
	PersistBatch int `mapstructure:"persist_batch"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Database selects the scan store: memory, postgres or sqlite.
type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Redis configures the sensitivity cache. An empty URL disables it.
type Redis struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// Kafka configures row streaming. No brokers disables it.
type Kafka struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Partitions        int32    `mapstructure:"partitions"`
	ReplicationFactor int16    `mapstructure:"replication_factor"`
}

// Enabled reports whether a Redis URL is set.
func (r Redis) Enabled() bool { return r.URL != "" }

// Enabled reports whether any broker is set.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_signing_key", DevSigningKey)
	v.SetDefault("server.require_auth", false)
	v.SetDefault("server.token_ttl", 24*time.Hour)
	v.SetDefault("server.max_samples", 100_000)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.scan_rate_limit", 30)
	v.SetDefault("server.scan_rate_window", time.Minute)

	v.SetDefault("scan.workers", 0)
	v.SetDefault("scan.batch_size", 0)
	v.SetDefault("scan.persist_batch", 500)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.cache_ttl", time.Hour)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "luftscan.rows")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication_factor", 1)
}

// Load reads configuration. path may be empty, in which case LUFTSCAN_CONFIG
// names the file, and no file at all is fine.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Scan.Workers < 0 || c.Scan.BatchSize < 0 || c.Scan.PersistBatch < 1 {
		return fmt.Errorf("scan workers and batch size must be non-negative and persist batch positive")
	}
	if c.Server.MaxSamples < 0 {
		return fmt.Errorf("server.max_samples must be non-negative")
	}
	if c.Server.ScanRateLimit < 0 || (c.Server.ScanRateLimit > 0 && c.Server.ScanRateWindow <= 0) {
		return fmt.Errorf("server.scan_rate_limit must be non-negative with a positive window")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}
	return nil
}
