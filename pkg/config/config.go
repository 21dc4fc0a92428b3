package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is empty because every field names its variable explicitly.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Engine       EngineConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKLINE_APP_ENV" required:"true"`
	MetricsPort  string `envconfig:"STOCKLINE_METRICS_PORT" default:"9464"`
	LogLevel     string `envconfig:"STOCKLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKLINE_DB_DSN"`
	Driver string `envconfig:"STOCKLINE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOCKLINE_DB_HOST"`
	Port     int    `envconfig:"STOCKLINE_DB_PORT" default:"5432"`
	User     string `envconfig:"STOCKLINE_DB_USER"`
	Password string `envconfig:"STOCKLINE_DB_PASSWORD"`
	Name     string `envconfig:"STOCKLINE_DB_NAME"`
	SSLMode  string `envconfig:"STOCKLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// LockTimeout bounds how long a statement may wait for a row lock before
	// the engine classifies the failure as transient contention.
	LockTimeout time.Duration `envconfig:"STOCKLINE_DB_LOCK_TIMEOUT" default:"3s"`
}

// ensureDSN builds a postgres DSN from discrete parts when one is not provided.
func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" || d.Driver != "postgres" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name parts are required")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	// URL is optional: with no redis configured the availability cache is
	// simply disabled and every query reads the ledger directly.
	URL          string        `envconfig:"STOCKLINE_REDIS_URL"`
	Address      string        `envconfig:"STOCKLINE_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type EngineConfig struct {
	// MaxApplyAttempts bounds how many times one movement submission is
	// attempted when the storage layer reports transient contention.
	MaxApplyAttempts     int           `envconfig:"STOCKLINE_ENGINE_MAX_APPLY_ATTEMPTS" default:"3"`
	RetryBaseBackoff     time.Duration `envconfig:"STOCKLINE_ENGINE_RETRY_BASE_BACKOFF" default:"25ms"`
	AvailabilityCacheTTL time.Duration `envconfig:"STOCKLINE_ENGINE_AVAILABILITY_CACHE_TTL" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOCKLINE_AUTO_MIGRATE" default:"false"`
}
