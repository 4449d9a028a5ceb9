package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultAppName        = "NagarikaMitra"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultSessionTTL     = 7 * 24 * time.Hour
	defaultOTPCooldown    = 30 * time.Second
	defaultOTPCodeTTL     = 5 * time.Minute
	defaultOTPTicketTTL   = 10 * time.Minute
	defaultRestoreTimeout = 5 * time.Second
	defaultLocationLoad   = 10 * time.Second
	defaultSMSBaseURL     = "https://www.smslocal.com/dev/bulkV2"
	defaultConnectTimeout = 5 * time.Second
	devJWTSecret          = "dev-secret-change-me"
)

// Config captures application runtime configuration loaded from the environment.
type Config struct {
	AppName        string        `mapstructure:"APP_NAME"`
	AppEnv         string        `mapstructure:"APP_ENV"`
	Port           string        `mapstructure:"PORT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	ShutdownPeriod time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	ConnectTimeout time.Duration `mapstructure:"CONNECT_TIMEOUT"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	RedisPoolSize  int           `mapstructure:"REDIS_POOL_SIZE"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`

	// OTPCooldown gates the resend action after each successful dispatch.
	OTPCooldown           time.Duration `mapstructure:"OTP_COOLDOWN"`
	OTPCodeTTL            time.Duration `mapstructure:"OTP_CODE_TTL"`
	OTPMaxAttempts        int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	OTPTicketTTL          time.Duration `mapstructure:"OTP_TICKET_TTL"`
	OTPSendLimitPerMinute int           `mapstructure:"OTP_SEND_LIMIT_PER_MINUTE"`
	// OTPDevMode logs codes instead of sending SMS. Refused in production.
	OTPDevMode bool `mapstructure:"OTP_DEV_MODE"`

	SMSAPIKey  string `mapstructure:"SMS_API_KEY"`
	SMSBaseURL string `mapstructure:"SMS_BASE_URL"`
	SMSSender  string `mapstructure:"SMS_SENDER"`

	RestoreTimeout      time.Duration `mapstructure:"SESSION_RESTORE_TIMEOUT"`
	LocationLoadTimeout time.Duration `mapstructure:"LOCATION_LOAD_TIMEOUT"`
}

// Load reads .env (if present) and the environment into a Config instance.
// Environment variables override values from .env.
func Load() (Config, error) {
	_ = godotenv.Load() // missing .env is fine

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)
	v.SetDefault("CONNECT_TIMEOUT", defaultConnectTimeout)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", defaultSessionTTL)
	v.SetDefault("OTP_COOLDOWN", defaultOTPCooldown)
	v.SetDefault("OTP_CODE_TTL", defaultOTPCodeTTL)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_TICKET_TTL", defaultOTPTicketTTL)
	v.SetDefault("OTP_SEND_LIMIT_PER_MINUTE", 3)
	v.SetDefault("OTP_DEV_MODE", false)
	v.SetDefault("SMS_API_KEY", "")
	v.SetDefault("SMS_BASE_URL", defaultSMSBaseURL)
	v.SetDefault("SMS_SENDER", "")
	v.SetDefault("SESSION_RESTORE_TIMEOUT", defaultRestoreTimeout)
	v.SetDefault("LOCATION_LOAD_TIMEOUT", defaultLocationLoad)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OTPCooldown <= 0 {
		return errors.New("OTP_COOLDOWN must be positive")
	}
	if c.OTPMaxAttempts <= 0 {
		return errors.New("OTP_MAX_ATTEMPTS must be positive")
	}
	if c.DBMaxConns <= 0 || c.RedisPoolSize <= 0 {
		return errors.New("DB_MAX_CONNS and REDIS_POOL_SIZE must be positive")
	}
	if c.RestoreTimeout <= 0 {
		return errors.New("SESSION_RESTORE_TIMEOUT must be positive")
	}

	if c.IsDev() {
		if c.JWTSecret == "" {
			c.JWTSecret = devJWTSecret
		}
		return nil
	}

	if c.OTPDevMode {
		return fmt.Errorf("OTP_DEV_MODE must not be enabled when APP_ENV=%s", c.AppEnv)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.SMSAPIKey == "" {
		return errors.New("SMS_API_KEY must be set")
	}
	return nil
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
