package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverBadger = "badger"
	DriverRedis  = "redis"
)

const defaultAllowedOrigins = "http://localhost:3000,http://127.0.0.1:3000"

// Config holds application configuration
type Config struct {
	// サーバー設定
	ServerPort      string        `env:"SERVER_PORT,default=8080"`
	Env             string        `env:"ENV,default=development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	// CORS設定 (カンマ区切り)
	RawAllowedOrigins string `env:"ALLOWED_ORIGINS"`
	AllowedOrigins    []string

	// ログ設定
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=false"`

	// ストア設定
	StoreDriver  string        `env:"STORE_DRIVER,default=memory"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT,default=5s"`

	// MariaDB接続設定
	DBHost     string `env:"DB_HOST,default=localhost"`
	DBPort     string `env:"DB_PORT,default=3306"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`

	// Badger (空ならインメモリ)
	BadgerPath string `env:"BADGER_PATH"`

	// Redis接続設定
	RedisAddress  string `env:"REDIS_ADDRESS,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	RedisPrefix   string `env:"REDIS_PREFIX,default=batepapo:"`

	// 在室管理
	SweepInterval time.Duration `env:"SWEEP_INTERVAL,default=15s"`
	StaleAfter    time.Duration `env:"STALE_AFTER,default=10s"`
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	raw := cfg.RawAllowedOrigins
	if strings.TrimSpace(raw) == "" {
		raw = defaultAllowedOrigins
	}
	cfg.AllowedOrigins = splitOrigins(raw)
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Warnings lists settings that are valid but probably unintended.
func (c Config) Warnings() []string {
	var warnings []string
	// 掃除間隔がしきい値の2倍を超えると離脱検知が大きく遅れる
	if c.SweepInterval > 2*c.StaleAfter {
		warnings = append(warnings, fmt.Sprintf(
			"SWEEP_INTERVAL (%s) exceeds twice STALE_AFTER (%s); departures will be detected late",
			c.SweepInterval, c.StaleAfter))
	}
	if c.StoreDriver == DriverMemory && c.Env == "production" {
		warnings = append(warnings, "memory store selected in production; chat history is lost on restart")
	}
	return warnings
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverMemory, DriverMySQL, DriverBadger, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be one of memory, mysql, badger, redis; got %q", c.StoreDriver))
	}
	if c.StoreDriver == DriverMySQL && c.DBName == "" {
		errs = append(errs, errors.New("DB_NAME is required for the mysql driver"))
	}
	for name, d := range map[string]time.Duration{
		"SWEEP_INTERVAL":   c.SweepInterval,
		"STALE_AFTER":      c.StaleAfter,
		"STORE_TIMEOUT":    c.StoreTimeout,
		"SHUTDOWN_TIMEOUT": c.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
