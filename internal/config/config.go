package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env          string `env:"ENV" env-required:"true"`
	LogLevel     string `env:"LOG_LEVEL" env-default:"info" env-description:"logging level, debug, info, etc."`
	HttpServer   HttpServer
	Database     Database
	Limiter      Limiter
	Auth         AuthConfig
	Verification VerificationConfig
	Registry     RegistryConfig
	SMTP         SMTPConfig
	Email        EmailConfig
	Cache        Cache
	Janitor      JanitorConfig
}

type HttpServer struct {
	Port           string        `env:"HTTP_PORT" env-default:"8080"`
	Timeout        time.Duration `env:"HTTP_TIMEOUT" env-default:"4s"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	SwaggerEnabled bool          `env:"HTTP_SWAGGER_ENABLED" env-default:"false"`
	CORSOrigins    []string      `env:"HTTP_CORS_ORIGINS" env-default:"http://localhost:3000" env-description:"comma-separated allowed origins"`
}

type Database struct {
	Net                string        `env:"DB_NET" env-default:"tcp"`
	Server             string        `env:"DB_SERVER" env-required:"true"`
	DBName             string        `env:"DB_NAME" env-required:"true"`
	User               string        `env:"DB_USER" env-required:"true"`
	Password           string        `env:"DB_PASSWORD" env-required:"true"`
	TimeZone           string        `env:"DB_TIMEZONE"`
	Timeout            time.Duration `env:"DB_TIMEOUT" env-default:"2s"`
	MaxIdleConnections int           `env:"DB_MAX_IDLE_CONNECTIONS" env-default:"40"`
	MaxOpenConnections int           `env:"DB_MAX_OPEN_CONNECTIONS" env-default:"40"`
}

type Limiter struct {
	RPS   int           `env:"LIMITER_RPS" env-default:"10"`
	Burst int           `env:"LIMITER_BURST" env-default:"20"`
	TTL   time.Duration `env:"LIMITER_TTL" env-default:"10m"`
}

type AuthConfig struct {
	JWT                    JWTConfig
	CodeSalt               string `env:"AUTH_CODE_SALT" env-required:"true"`
	VerificationCodeLength int    `env:"AUTH_VERIFICATION_CODE_LENGTH" env-default:"6"`
}

type JWTConfig struct {
	AttendeeTokenTTL time.Duration `env:"JWT_ATTENDEE_TOKEN_TTL" env-default:"8760h"`
	SigningKey       string        `env:"JWT_SIGNING_KEY" env-required:"true"`
}

// VerificationConfig controls the one-time code lifecycle. Failed attempts
// never extend CodeTTL; MaxAttempts exhaustion revokes the code early.
type VerificationConfig struct {
	CodeTTL          time.Duration `env:"VERIFICATION_CODE_TTL" env-default:"10m"`
	MaxAttempts      int           `env:"VERIFICATION_MAX_ATTEMPTS" env-default:"5"`
	MarkerTTL        time.Duration `env:"VERIFICATION_MARKER_TTL" env-default:"30m"`
	RedirectTokenTTL time.Duration `env:"VERIFICATION_REDIRECT_TOKEN_TTL" env-default:"15m"`
	RedirectTokenLen int           `env:"VERIFICATION_REDIRECT_TOKEN_LEN" env-default:"32"`
	RateWindow       time.Duration `env:"VERIFICATION_RATE_WINDOW" env-default:"1h"`
	RateMax          int           `env:"VERIFICATION_RATE_MAX" env-default:"5"`
}

// RegistryConfig points at the external distributor registry used to enrich
// verified identities. Disabled means codes still validate but profiles stay
// empty.
type RegistryConfig struct {
	Enabled bool          `env:"REGISTRY_ENABLED" env-default:"false"`
	BaseURL string        `env:"REGISTRY_BASE_URL"`
	APIKey  string        `env:"REGISTRY_API_KEY"`
	Timeout time.Duration `env:"REGISTRY_TIMEOUT" env-default:"5s"`
}

type SMTPConfig struct {
	Host string `env:"SMTP_HOST" env-required:"true"`
	Port int    `env:"SMTP_PORT" env-required:"true"`
	From string `env:"SMTP_FROM" env-required:"true"`
	Pass string `env:"SMTP_PASS" env-required:"true"`
}

type EmailConfig struct {
	Enabled   bool `env:"EMAIL_ENABLED" env-default:"false"`
	Templates EmailTemplates
}

type EmailTemplates struct {
	VerificationCode string `env:"EMAIL_TEMPLATE_VERIFICATION_CODE" env-required:"true"`
}

type Cache struct {
	Type  string `env:"REDIS_TYPE" env-required:"true" env-description:"specifies provider, one of redis/redisCluster"`
	Redis struct {
		Address  string `env:"REDIS_ADDR" env-default:"" env-description:"redis host:port single instance"`
		Password string `env:"REDIS_PASSWORD" env-default:"" env-description:"redis password if exists"`
		PoolSize int    `env:"REDIS_POOL_SIZE" env-default:"70" env-description:"max tcp connections pool size"`
	}
	RedisCluster struct {
		Addresses []string `env:"REDIS_CLUSTER_ADDRS" env-default:"" env-description:"redis cluster nodes"`
		Password  string   `env:"REDIS_PASSWORD" env-default:"" env-description:"redis password if exists"`
		PoolSize  int      `env:"REDIS_POOL_SIZE" env-default:"70" env-description:"max tcp connections pool size"`
	}
}

// JanitorConfig drives the scheduled cleanup of the verification audit log.
type JanitorConfig struct {
	Enabled      bool          `env:"JANITOR_ENABLED" env-default:"true"`
	Schedule     string        `env:"JANITOR_SCHEDULE" env-default:"0 4 * * *" env-description:"cron spec, server local time"`
	LogRetention time.Duration `env:"JANITOR_LOG_RETENTION" env-default:"720h"`
}

// DevCodeEnabled reports whether generated codes may be echoed in API
// responses. Never true in production.
func (c *Config) DevCodeEnabled() bool {
	return c.Env != "prod"
}

func MustLoad() *Config {
	// Ignore missing .env; real deployments configure the environment
	// directly.
	_ = godotenv.Load()

	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("cannot read config from environment: %s", err)
	}

	return &cfg
}
