// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"

	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
	RateLimitGCRA   = "gcra"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	License   LicenseConfig   `koanf:"license"`
	Payment   PaymentConfig   `koanf:"payment"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	TrustProxyHeaders bool          `koanf:"trust_proxy_headers"`
}

type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type AuthConfig struct {
	SessionTTL          time.Duration `koanf:"session_ttl"`
	CaptchaEnabled      bool          `koanf:"captcha_enabled"`
	CaptchaSecret       string        `koanf:"captcha_secret"`
	CaptchaVerifyURL    string        `koanf:"captcha_verify_url"`
	CheckEmailDomain    bool          `koanf:"check_email_domain"`
	DomainLookupTimeout time.Duration `koanf:"domain_lookup_timeout"`
}

type LicenseConfig struct {
	Prefix   string `koanf:"prefix"`
	MaxBatch int    `koanf:"max_batch"`
}

type PaymentConfig struct {
	Plans       map[string]int `koanf:"plans"`
	DefaultPlan string         `koanf:"default_plan"`
	VerifyDelay time.Duration  `koanf:"verify_delay"`
}

type RateLimitConfig struct {
	Backend         string        `koanf:"backend"`
	Window          time.Duration `koanf:"window"`
	Auth            int           `koanf:"auth"`
	Payment         int           `koanf:"payment"`
	Keys            int           `koanf:"keys"`
	Default         int           `koanf:"default"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func load(configPath string) (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load() //nolint:errcheck // missing .env is the normal case

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		_, statErr := os.Stat(configPath)
		switch {
		case statErr == nil:
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		case !errors.Is(statErr, fs.ErrNotExist):
			return nil, fmt.Errorf("stat config file: %w", statErr)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Skyline",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":                "0.0.0.0",
		"server.port":                8080,
		"server.read_timeout":        "30s",
		"server.write_timeout":       "30s",
		"server.idle_timeout":        "120s",
		"server.shutdown_timeout":    "15s",
		"server.trust_proxy_headers": true,

		"database.driver":             DriverPostgres,
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       false,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"auth.session_ttl":           "720h",
		"auth.captcha_enabled":       false,
		"auth.captcha_verify_url":    "https://www.google.com/recaptcha/api/siteverify",
		"auth.check_email_domain":    true,
		"auth.domain_lookup_timeout": "3s",

		"license.prefix":    "skyline",
		"license.max_batch": 50,

		"payment.plans.1_month":  30,
		"payment.plans.3_months": 90,
		"payment.plans.forever":  3650,
		"payment.default_plan":   "1_month",
		"payment.verify_delay":   "0s",

		"rate_limit.backend":          RateLimitMemory,
		"rate_limit.window":           "60s",
		"rate_limit.auth":             20,
		"rate_limit.payment":          20,
		"rate_limit.keys":             30,
		"rate_limit.default":          120,
		"rate_limit.cleanup_interval": "5m",

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "skyline",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_DRIVER":             "database.driver",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"TRUST_PROXY_HEADERS":         "server.trust_proxy_headers",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"SESSION_TTL":                 "auth.session_ttl",
	"CAPTCHA_ENABLED":             "auth.captcha_enabled",
	"CAPTCHA_SECRET":              "auth.captcha_secret",
	"RECAPTCHA_SECRET_KEY":        "auth.captcha_secret",
	"CHECK_EMAIL_DOMAIN":          "auth.check_email_domain",
	"LICENSE_PREFIX":              "license.prefix",
	"PAYMENT_VERIFY_DELAY":        "payment.verify_delay",
	"RATE_LIMIT_BACKEND":          "rate_limit.backend",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_AUTH":             "rate_limit.auth",
	"RATE_LIMIT_PAYMENT":          "rate_limit.payment",
	"RATE_LIMIT_KEYS":             "rate_limit.keys",
	"RATE_LIMIT_DEFAULT":          "rate_limit.default",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

//nolint:gocyclo // flat list of independent checks
func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Database.Driver != DriverPostgres && c.Database.Driver != DriverSQLite {
		return fmt.Errorf(
			"database.driver must be %q or %q, got %q",
			DriverPostgres, DriverSQLite, c.Database.Driver,
		)
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory:
	case RateLimitRedis, RateLimitGCRA:
		if c.Redis.URL == "" {
			return fmt.Errorf(
				"REDIS_URL is required for rate_limit.backend %q",
				c.RateLimit.Backend,
			)
		}
	default:
		return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
	}

	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}

	if c.RateLimit.Auth <= 0 || c.RateLimit.Payment <= 0 ||
		c.RateLimit.Keys <= 0 || c.RateLimit.Default <= 0 {
		return fmt.Errorf("rate_limit ceilings must be positive")
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}

	if c.Auth.CaptchaEnabled && c.Auth.CaptchaSecret == "" {
		return fmt.Errorf("CAPTCHA_SECRET is required when captcha is enabled")
	}

	if c.License.Prefix == "" {
		return fmt.Errorf("license.prefix must not be empty")
	}

	if c.License.MaxBatch < 1 {
		return fmt.Errorf("license.max_batch must be at least 1")
	}

	if _, ok := c.Payment.Plans[c.Payment.DefaultPlan]; !ok {
		return fmt.Errorf(
			"payment.default_plan %q is not a configured plan",
			c.Payment.DefaultPlan,
		)
	}

	for id, days := range c.Payment.Plans {
		if days < 1 {
			return fmt.Errorf("payment plan %q must grant at least 1 day", id)
		}
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
