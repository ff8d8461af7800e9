package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Service  *ServiceConfig
	Postgres *PostgresConfig
	Redis    *RedisConfig
	Auth     *AuthConfig
	Logger   *LoggerConfig
	Tracer   *TracerConfig
	Chat     *ChatConfig
}

type ServiceConfig struct {
	Name            string
	Env             string
	Addr            string
	ShutdownTimeout time.Duration
	SeedUsers       []string
}

// PostgresConfig with an empty DSN selects the in-memory stores.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// RedisConfig with an empty URL disables the cross-instance relay.
type RedisConfig struct {
	URL          string
	Channel      string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

type LoggerConfig struct {
	Level     string
	Format    string
	AddSource bool
}

type TracerConfig struct {
	Endpoint string
}

type ChatConfig struct {
	HistoryLimit      int
	NotificationLimit int
	SendBuffer        int
	MaxMessageBytes   int
}

var ErrMissingSecret = errors.New("JWT_SECRET is not set")

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	// .env is optional; real deployments inject env vars directly.
	_ = godotenv.Load(files...)

	cfg := &Config{
		Service: &ServiceConfig{
			Name:            getEnv("SERVICE_NAME", "go-social"),
			Env:             getEnv("SERVICE_ENV", "development"),
			Addr:            getEnv("SERVICE_ADDR", ":8080"),
			ShutdownTimeout: getEnvDuration("SERVICE_SHUTDOWN_TIMEOUT", 10*time.Second),
			SeedUsers:       getEnvList("SEED_USERS"),
		},
		Postgres: &PostgresConfig{
			DSN:             getEnv("DB_DSN", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvDuration("DB_CONN_LIFETIME", 5*time.Minute),
			PingTimeout:     getEnvDuration("DB_PING_TIMEOUT", 5*time.Second),
		},
		Redis: &RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			Channel:      getEnv("REDIS_CHANNEL", "go-social:groups"),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			PingTimeout:  getEnvDuration("REDIS_PING_TIMEOUT", 2*time.Second),
		},
		Auth: &AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "go-social"),
			TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Logger: &LoggerConfig{
			Level:     getEnv("LOG_LEVEL", "info"),
			Format:    getEnv("LOG_FORMAT", "json"),
			AddSource: getEnvBool("LOG_ADD_SOURCE", true),
		},
		Tracer: &TracerConfig{
			Endpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
		},
		Chat: &ChatConfig{
			HistoryLimit:      getEnvInt("CHAT_HISTORY_LIMIT", 20),
			NotificationLimit: getEnvInt("NOTIFICATION_CATCHUP_LIMIT", 4),
			SendBuffer:        getEnvInt("WS_SEND_BUFFER", 256),
			MaxMessageBytes:   getEnvInt("CHAT_MAX_MESSAGE_BYTES", 4096),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	return cfg, nil
}

func (c *Config) UseMemoryStore() bool { return c.Postgres.DSN == "" }

func (c *Config) RelayEnabled() bool { return c.Redis.URL != "" }
