package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	strutil "amlstat/pkg/platform/strings"
)

// Config is the full service configuration, built once in main.
type Config struct {
	Server     Server
	Logging    Logging
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	Compliance ComplianceConfig
	Bootstrap  BootstrapConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	ShutdownTimeout time.Duration
}

type Logging struct {
	Level string
	// JSON switches to the JSON handler; development uses text.
	JSON bool
}

// DatabaseConfig selects Postgres when URL is set, in-memory stores otherwise.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers            []string
	AuditTopic         string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration
	// Failed logins per email and client address before a lockout.
	LockoutAttempts int
	LockoutWindow   time.Duration
	LockoutDuration time.Duration
}

type ComplianceConfig struct {
	CacheTTL time.Duration
}

// BootstrapConfig seeds the first administrator on an empty system.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads an optional .env file and then builds the config from the environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	env := getEnv("AMLSTAT_ENV", "development")
	cfg := Config{
		Server: Server{
			Addr:            getEnv("AMLSTAT_ADDR", ":8080"),
			Environment:     env,
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: Logging{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  env != "development",
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			TxTimeout:       getDuration("SUBMISSION_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:         getEnv("KAFKA_AUDIT_TOPIC", "amlstat.audit"),
			OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			OutboxBatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
		},
		Auth: AuthConfig{
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     getEnv("JWT_ISSUER", "amlstat"),
			JWTAudience:   getEnv("JWT_AUDIENCE", "amlstat-api"),
			TokenTTL:      getDuration("TOKEN_TTL", 8*time.Hour),

			LockoutAttempts: getInt("LOGIN_LOCKOUT_ATTEMPTS", 5),
			LockoutWindow:   getDuration("LOGIN_LOCKOUT_WINDOW", 15*time.Minute),
			LockoutDuration: getDuration("LOGIN_LOCKOUT_DURATION", 15*time.Minute),
		},
		Compliance: ComplianceConfig{
			CacheTTL: getDuration("COMPLIANCE_CACHE_TTL", 5*time.Minute),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that must not reach production.
func (c Config) Validate() error {
	if c.Server.Environment == "production" && c.Auth.JWTSigningKey == devSigningKey {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	return strutil.SplitList(v, ",")
}
