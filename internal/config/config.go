package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string
	Addr        string
	ServiceName string
	LogLevel    string

	PostgresDSN string
	RedisAddr   string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	JWTSecret        string
	JWTRefreshSecret string
	JWTExpiresIn     time.Duration
	JWTRefreshIn     time.Duration

	CommissionRate decimal.Decimal

	RateLimitWindow time.Duration
	RateLimitMax    int
	AllowedOrigins  []string
	// TrustProxy honours X-Forwarded-For and friends. Enable it only behind
	// a proxy that overwrites them.
	TrustProxy bool

	PaystackSecretKey   string
	PaystackCallbackURL string

	OTLPEndpoint string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("SERVICE_NAME", "suresend")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "suresend")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("KAFKA_TOPIC", "suresend.events")
	v.SetDefault("KAFKA_GROUP_ID", "suresend-audit")
	v.SetDefault("JWT_EXPIRES_IN", "24h")
	v.SetDefault("JWT_REFRESH_EXPIRES_IN", "7d")
	v.SetDefault("PLATFORM_COMMISSION_RATE", "0.02")
	v.SetDefault("RATE_LIMIT_WINDOW_MS", 900000)
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 100)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("PAYSTACK_CALLBACK_BASE_URL", "https://paystack.com/pay")
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment and defaults", "error", err)
	}
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:                 v.GetString("APP_ENV"),
		Addr:                ":" + v.GetString("PORT"),
		ServiceName:         v.GetString("SERVICE_NAME"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		PostgresDSN:         v.GetString("POSTGRES_DSN"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		KafkaBrokers:        splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:          v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:        v.GetString("KAFKA_GROUP_ID"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		JWTRefreshSecret:    v.GetString("JWT_REFRESH_SECRET"),
		RateLimitWindow:     time.Duration(v.GetInt64("RATE_LIMIT_WINDOW_MS")) * time.Millisecond,
		RateLimitMax:        v.GetInt("RATE_LIMIT_MAX_REQUESTS"),
		AllowedOrigins:      splitList(v.GetString("ALLOWED_ORIGINS")),
		TrustProxy:          v.GetBool("TRUST_PROXY"),
		PaystackSecretKey:   v.GetString("PAYSTACK_SECRET_KEY"),
		PaystackCallbackURL: strings.TrimRight(v.GetString("PAYSTACK_CALLBACK_BASE_URL"), "/"),
		OTLPEndpoint:        v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
			v.GetString("DB_HOST"), v.GetString("DB_PORT"), v.GetString("DB_NAME"),
			v.GetString("DB_USER"), v.GetString("DB_PASSWORD"), v.GetString("DB_SSLMODE"))
	}

	var err error
	if cfg.JWTExpiresIn, err = ParseDuration(v.GetString("JWT_EXPIRES_IN")); err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}
	if cfg.JWTRefreshIn, err = ParseDuration(v.GetString("JWT_REFRESH_EXPIRES_IN")); err != nil {
		return nil, fmt.Errorf("JWT_REFRESH_EXPIRES_IN: %w", err)
	}
	if cfg.CommissionRate, err = decimal.NewFromString(v.GetString("PLATFORM_COMMISSION_RATE")); err != nil {
		return nil, fmt.Errorf("PLATFORM_COMMISSION_RATE: %w", err)
	}
	if cfg.CommissionRate.IsNegative() || cfg.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("PLATFORM_COMMISSION_RATE must be in [0, 1), got %s", cfg.CommissionRate)
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET are required in production")
		}
		slog.Warn("JWT secrets not set, using development defaults")
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "dev-access-secret"
		}
		if cfg.JWTRefreshSecret == "" {
			cfg.JWTRefreshSecret = "dev-refresh-secret"
		}
	}

	slog.Info("config loaded", "env", cfg.Env, "addr", cfg.Addr, "redis_addr", cfg.RedisAddr, "kafka_brokers", cfg.KafkaBrokers)
	return cfg, nil
}

// ParseDuration accepts Go durations plus a day suffix, e.g. "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
