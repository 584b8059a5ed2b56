package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName            = "NanoLink"
	defaultAppEnv             = "development"
	defaultPort               = "3001"
	defaultLogLevel           = "info"
	defaultEventsExchange     = "nanolink_events"
	defaultTokenTTL           = 7 * 24 * time.Hour
	defaultDemoOTP            = "1234"
	defaultOTPTTL             = 10 * time.Minute
	defaultOTPRatePerMinute   = 5
	defaultAdminPhone         = "+254700000000"
	defaultSettlementDelay    = 10 * time.Second
	defaultSettlementPoll     = time.Second
	defaultSettlementVisible  = 30 * time.Second
	defaultRecoverySchedule   = "@every 1m"
	defaultRecoveryStaleAfter = 5 * time.Minute
	defaultIdempotencyTTL     = 24 * time.Hour
	defaultShutdownDelay      = 10 * time.Second
)

// Config captures application runtime configuration loaded from the environment
// and an optional .env file.
type Config struct {
	AppName        string `mapstructure:"APP_NAME"`
	AppEnv         string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	DemoOTP            string        `mapstructure:"DEMO_OTP"`
	OTPTTL             time.Duration `mapstructure:"OTP_TTL"`
	OTPRateLimitPerMin int           `mapstructure:"OTP_RATE_LIMIT_PER_MINUTE"`
	AdminPhone         string        `mapstructure:"ADMIN_PHONE"`

	SettlementDelay        time.Duration `mapstructure:"SETTLEMENT_DELAY"`
	SettlementPollInterval time.Duration `mapstructure:"SETTLEMENT_POLL_INTERVAL"`
	SettlementVisibility   time.Duration `mapstructure:"SETTLEMENT_VISIBILITY_TIMEOUT"`
	RecoverySchedule       string        `mapstructure:"RECOVERY_SCHEDULE"`
	RecoveryStaleAfter     time.Duration `mapstructure:"RECOVERY_STALE_AFTER"`

	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	ShutdownPeriod time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	v := viper.GetViper()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	v.SetDefault("TOKEN_TTL", defaultTokenTTL)
	v.SetDefault("DEMO_OTP", defaultDemoOTP)
	v.SetDefault("OTP_TTL", defaultOTPTTL)
	v.SetDefault("OTP_RATE_LIMIT_PER_MINUTE", defaultOTPRatePerMinute)
	v.SetDefault("ADMIN_PHONE", defaultAdminPhone)
	v.SetDefault("SETTLEMENT_DELAY", defaultSettlementDelay)
	v.SetDefault("SETTLEMENT_POLL_INTERVAL", defaultSettlementPoll)
	v.SetDefault("SETTLEMENT_VISIBILITY_TIMEOUT", defaultSettlementVisible)
	v.SetDefault("RECOVERY_SCHEDULE", defaultRecoverySchedule)
	v.SetDefault("RECOVERY_STALE_AFTER", defaultRecoveryStaleAfter)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)

	// Keys without defaults must be bound explicitly to show up in Unmarshal.
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "RABBITMQ_URL", "JWT_SECRET"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.RabbitMQURL = strings.TrimSpace(cfg.RabbitMQURL)

	if cfg.OTPRateLimitPerMin <= 0 {
		cfg.OTPRateLimitPerMin = defaultOTPRatePerMinute
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("invalid TOKEN_TTL: must be positive")
	}
	if cfg.SettlementPollInterval <= 0 {
		cfg.SettlementPollInterval = defaultSettlementPoll
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "dev-secret-change-me"
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local/development environment where
// in-memory fallbacks are acceptable.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether demo conveniences (such as echoing OTPs) must be disabled.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
