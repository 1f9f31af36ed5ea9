package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const envProduction = "production"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Postgres     PostgresConfig     `envPrefix:"POSTGRES_"`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	Logger       LoggerConfig       `envPrefix:"LOG_"`
	Auth         AuthConfig         `envPrefix:"AUTH_"`
	Cookie       CookieConfig       `envPrefix:"JWT_COOKIE_"`
	Notification NotificationConfig `envPrefix:"NOTIFY_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"NAME" envDefault:"inkmarket-service"`
	Env                   string `env:"ENV" envDefault:"development"`
	Host                  string `env:"HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"PORT" envDefault:"8080"`
	Version               string `env:"VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"DSN"`
	MaxConns       int32  `env:"MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	MigrationsDir  string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	ConnMaxIdleSec int32  `env:"CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
	Dev   bool   `env:"DEV" envDefault:"false"`
}

// AuthConfig defines authentication parameters. Session signing material is
// selected per environment, see SessionSecret and SessionTTL.
type AuthConfig struct {
	JWTSecret               string        `env:"JWT_SECRET" envDefault:"dev-secret"`
	JWTExpiresIn            time.Duration `env:"JWT_EXPIRES_IN" envDefault:"2160h"`
	JWTSecretProd           string        `env:"JWT_SECRET_PROD"`
	JWTExpiresInProd        time.Duration `env:"JWT_EXPIRES_IN_PROD" envDefault:"1h"`
	BcryptCost              int           `env:"BCRYPT_COST" envDefault:"12"`
	PasswordResetTTLMinutes int           `env:"PASSWORD_RESET_TTL_MINUTES" envDefault:"10"`
	EmailChangeTTLMinutes   int           `env:"EMAIL_CHANGE_TTL_MINUTES" envDefault:"10"`
	ReactivationTTLMinutes  int           `env:"REACTIVATION_TTL_MINUTES" envDefault:"60"`
}

// CookieConfig sizes the session cookie. Non-production cookies live for
// days, production cookies for hours.
type CookieConfig struct {
	ExpiresInDays      int `env:"EXPIRES_IN_DAYS" envDefault:"90"`
	ExpiresInHoursProd int `env:"EXPIRES_IN_HOURS_PROD" envDefault:"1"`
}

// Lifetime returns the session cookie lifetime for the given environment.
func (c CookieConfig) Lifetime(production bool) time.Duration {
	if production {
		if c.ExpiresInHoursProd <= 0 {
			return time.Hour
		}
		return time.Duration(c.ExpiresInHoursProd) * time.Hour
	}
	if c.ExpiresInDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(c.ExpiresInDays) * 24 * time.Hour
}

// NotificationConfig holds outbound mail settings. An empty SMTPHost routes
// mail to the log sink.
type NotificationConfig struct {
	EmailFrom     string `env:"EMAIL_FROM" envDefault:"noreply@inkmarket.local"`
	EmailFromName string `env:"EMAIL_FROM_NAME" envDefault:"Inkmarket"`
	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string `env:"SMTP_USER"`
	SMTPPass      string `env:"SMTP_PASS"`
	SMTPUseTLS    bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	FrontendURL   string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	Workers       int    `env:"WORKERS" envDefault:"2"`
	QueueSize     int    `env:"QUEUE_SIZE" envDefault:"128"`
}

// RateLimitConfig bounds how often token request steps may be triggered per
// address.
type RateLimitConfig struct {
	TokenRequests int           `env:"TOKEN_REQUESTS" envDefault:"3"`
	Window        time.Duration `env:"WINDOW" envDefault:"10m"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.App.IsProduction() && strings.TrimSpace(cfg.Auth.JWTSecretProd) == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET_PROD is required when APP_ENV=%s", envProduction)
	}
	return &cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs with production settings.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(a.Env), envProduction)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SessionSecret returns the signing secret for the given environment.
func (a AuthConfig) SessionSecret(production bool) string {
	if production {
		return a.JWTSecretProd
	}
	return a.JWTSecret
}

// SessionTTL returns the session lifetime for the given environment.
func (a AuthConfig) SessionTTL(production bool) time.Duration {
	if production {
		return a.JWTExpiresInProd
	}
	return a.JWTExpiresIn
}

func minutes(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Minute
}

// PasswordResetTTL returns the reset token lifetime.
func (a AuthConfig) PasswordResetTTL() time.Duration {
	return minutes(a.PasswordResetTTLMinutes, 10*time.Minute)
}

// EmailChangeTTL returns the email change token lifetime.
func (a AuthConfig) EmailChangeTTL() time.Duration {
	return minutes(a.EmailChangeTTLMinutes, 10*time.Minute)
}

// ReactivationTTL returns the reactivation token lifetime.
func (a AuthConfig) ReactivationTTL() time.Duration {
	return minutes(a.ReactivationTTLMinutes, time.Hour)
}
