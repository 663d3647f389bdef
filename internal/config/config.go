package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const insecureSecret = "insecure_dev_key"

// Config holds process settings resolved from the environment and an optional .env file.
type Config struct {
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	ServiceName string `mapstructure:"service_name"`

	DBDriver string `mapstructure:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn"`
	DBHost   string `mapstructure:"db_host"`
	DBPort   string `mapstructure:"db_port"`
	DBUser   string `mapstructure:"db_user"`
	DBPass   string `mapstructure:"db_pass"`
	DBName   string `mapstructure:"db_name"`

	SecretKey                string `mapstructure:"secret_key"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`

	AMQPURL         string `mapstructure:"amqp_url"`
	AuditExchange   string `mapstructure:"audit_exchange"`
	AuditRoutingKey string `mapstructure:"audit_routing_key"`

	OTLPEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`

	RedisAddr              string `mapstructure:"redis_addr"`
	RedisPassword          string `mapstructure:"redis_password"`
	LoginRateLimit         int    `mapstructure:"login_rate_limit"`
	LoginRateWindowSeconds int    `mapstructure:"login_rate_window_seconds"`

	TrustedProxiesRaw string `mapstructure:"trusted_proxies"`
	GRPCHealthAddr    string `mapstructure:"grpc_health_addr"`
	LogDevelopment    bool   `mapstructure:"log_development"`
	DebugRoutes       bool   `mapstructure:"debug_routes"`

	// Derived
	AccessTokenTTL  time.Duration
	LoginRateWindow time.Duration
	TrustedProxies  []string
}

var defaults = map[string]any{
	"port":                        "8000",
	"environment":                 "development",
	"service_name":                "messaging-service",
	"db_driver":                   "postgres",
	"db_dsn":                      "",
	"db_host":                     "localhost",
	"db_port":                     "5432",
	"db_user":                     "postgres",
	"db_pass":                     "postgres",
	"db_name":                     "messaging",
	"secret_key":                  insecureSecret,
	"access_token_expire_minutes": 30,
	"amqp_url":                    "",
	"audit_exchange":              "audit",
	"audit_routing_key":           "audit.messaging",
	"otel_exporter_otlp_endpoint": "",
	"redis_addr":                  "",
	"redis_password":              "",
	"login_rate_limit":            10,
	"login_rate_window_seconds":   60,
	"trusted_proxies":             "",
	"grpc_health_addr":            "",
	"log_development":             false,
	"debug_routes":                false,
}

// Load reads envFile when it exists, then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.AccessTokenExpireMinutes <= 0 {
		cfg.AccessTokenExpireMinutes = 30
	}
	if cfg.LoginRateWindowSeconds <= 0 {
		cfg.LoginRateWindowSeconds = 60
	}
	cfg.AccessTokenTTL = time.Duration(cfg.AccessTokenExpireMinutes) * time.Minute
	cfg.LoginRateWindow = time.Duration(cfg.LoginRateWindowSeconds) * time.Second
	cfg.TrustedProxies = splitList(cfg.TrustedProxiesRaw)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.IsProduction() && c.SecretKey == insecureSecret {
		return errors.New("SECRET_KEY must be set in production")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DSN returns DB_DSN or builds one from the individual DB_* settings.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	if c.DBDriver == "sqlite3" {
		return c.DBName + ".db"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
