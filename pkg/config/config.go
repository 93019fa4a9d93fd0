package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	OrdersAPI    OrdersAPIConfig
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
	if err := cfg.Cart.validate(cfg.Redis); err != nil {
		return nil, err
	}
	if _, err := cfg.Checkout.ParsedTaxRate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"CARTSYNC_APP_ENV" required:"true"`
	Port         string   `envconfig:"CARTSYNC_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"CARTSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CARTSYNC_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"CARTSYNC_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"CARTSYNC_DB_DSN"`
	Driver     string `envconfig:"CARTSYNC_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"CARTSYNC_DB_SQLITE_PATH" default:"cartsync.db"`

	MaxOpenConns    int           `envconfig:"CARTSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARTSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARTSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTSYNC_REDIS_URL"`
	Address      string        `envconfig:"CARTSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"CARTSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARTSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARTSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type CartConfig struct {
	Backend       string        `envconfig:"CARTSYNC_CART_BACKEND" default:"redis"`
	TTL           time.Duration `envconfig:"CARTSYNC_CART_TTL" default:"720h"`
	OrderCacheTTL time.Duration `envconfig:"CARTSYNC_ORDER_CACHE_TTL" default:"30s"`

	IdleEvictAfter time.Duration `envconfig:"CARTSYNC_CART_IDLE_EVICT_AFTER" default:"30m"`
	EvictInterval  time.Duration `envconfig:"CARTSYNC_CART_EVICT_INTERVAL" default:"5m"`
	PurgeInterval  time.Duration `envconfig:"CARTSYNC_CART_PURGE_INTERVAL" default:"1h"`
}

func (c CartConfig) validate(redis RedisConfig) error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case CartBackendRedis:
		if !redis.Enabled() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvCartBackend, EnvRedisURL, EnvRedisAddr)
		}
	case CartBackendSQL, CartBackendMemory:
	default:
		return fmt.Errorf("invalid %s %q", EnvCartBackend, c.Backend)
	}
	return nil
}

// NormalizedBackend returns the lower-cased backend name.
func (c CartConfig) NormalizedBackend() string {
	return strings.ToLower(strings.TrimSpace(c.Backend))
}

type CheckoutConfig struct {
	TaxRate  string `envconfig:"CARTSYNC_TAX_RATE" default:"0.1"`
	Currency string `envconfig:"CARTSYNC_CURRENCY" default:"IDR"`
}

// ParsedTaxRate parses the configured tax rate; valid rates lie in [0,1].
func (c CheckoutConfig) ParsedTaxRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.TaxRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 1, got %s", EnvTaxRate, raw)
	}
	return rate, nil
}

type OrdersAPIConfig struct {
	BaseURL string        `envconfig:"CARTSYNC_ORDERS_API_URL" required:"true"`
	APIKey  string        `envconfig:"CARTSYNC_ORDERS_API_KEY"`
	Timeout time.Duration `envconfig:"CARTSYNC_ORDERS_API_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"CARTSYNC_AUTO_MIGRATE" default:"false"`
	MetricsEnabled bool `envconfig:"CARTSYNC_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.IsSQLite() {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverPostgres) {
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, db.Driver)
	}
	if db.DSN == "" {
		return fmt.Errorf("%s is required for the postgres driver", EnvDBDSN)
	}
	return nil
}
