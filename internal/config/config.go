package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Signald  SignaldConfig
	Relay    RelayConfig
	Sentry   SentryConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// SignaldConfig holds every timing knob for the signald socket protocol.
// Defaults mirror the daemon's observed behavior in production.
type SignaldConfig struct {
	SocketPath             string
	PoolSize               int
	ConnectionInterval     time.Duration // poll interval while waiting for the daemon socket
	MaxConnectionAttempts  int
	AcquireTimeout         time.Duration
	VerificationTimeout    time.Duration
	TrustRequestTimeout    time.Duration
	IdentityRequestTimeout time.Duration
	VersionTimeout         time.Duration
}

type RelayConfig struct {
	DefaultLanguage        string
	DefaultMessageExpiry   time.Duration
	MinResendInterval      time.Duration
	MaxResendInterval      time.Duration
	BroadcastBatchSize     int
	BroadcastBatchInterval time.Duration
	// WelcomeDelay is the pause between a command response and the expiry
	// timer update for newly added members. The delay guarantees the welcome
	// message lands before the timer change; signald gives no other ordering.
	WelcomeDelay       time.Duration
	SupportChannel     string
	SysadminNumbers    []string
	MonitorInterval    time.Duration
	MonitorThreshold   int
	MaintainerWebhook  string
}

type SentryConfig struct {
	DSN string
	Env string
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Signald: SignaldConfig{
			SocketPath:             getEnv("SIGNALD_SOCKET_PATH", "/var/run/signald/signald.sock"),
			PoolSize:               getEnvInt("SIGNALD_POOL_SIZE", 4),
			ConnectionInterval:     getEnvDuration("SIGNALD_CONNECTION_INTERVAL_MS", 1000),
			MaxConnectionAttempts:  getEnvInt("SIGNALD_MAX_CONNECTION_ATTEMPTS", 30),
			AcquireTimeout:         getEnvDuration("SIGNALD_ACQUIRE_TIMEOUT_MS", 5000),
			VerificationTimeout:    getEnvDuration("SIGNALD_VERIFICATION_TIMEOUT_MS", 30000),
			TrustRequestTimeout:    getEnvDuration("SIGNALD_TRUST_TIMEOUT_MS", 10000),
			IdentityRequestTimeout: getEnvDuration("SIGNALD_IDENTITY_TIMEOUT_MS", 10000),
			VersionTimeout:         getEnvDuration("SIGNALD_VERSION_TIMEOUT_MS", 5000),
		},
		Relay: RelayConfig{
			DefaultLanguage:        getEnv("DEFAULT_LANGUAGE", "EN"),
			DefaultMessageExpiry:   time.Duration(getEnvInt("DEFAULT_MESSAGE_EXPIRY_SECONDS", 60*60*24*7)) * time.Second,
			MinResendInterval:      getEnvDuration("MIN_RESEND_INTERVAL_MS", 2000),
			MaxResendInterval:      getEnvDuration("MAX_RESEND_INTERVAL_MS", 256000),
			BroadcastBatchSize:     getEnvInt("BROADCAST_BATCH_SIZE", 50),
			BroadcastBatchInterval: getEnvDuration("BROADCAST_BATCH_INTERVAL_MS", 2000),
			WelcomeDelay:           getEnvDuration("WELCOME_DELAY_MS", 3000),
			SupportChannel:         getEnv("SUPPORT_CHANNEL_NUMBER", ""),
			SysadminNumbers:        getEnvList("SYSADMIN_NUMBERS"),
			MonitorInterval:        getEnvDuration("MONITOR_INTERVAL_MS", 60000),
			MonitorThreshold:       getEnvInt("MONITOR_FAILURE_THRESHOLD", 3),
			MaintainerWebhook:      getEnv("MAINTAINER_WEBHOOK_URL", ""),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
			Env: getEnv("SENTRY_ENV", "production"),
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

func validate(cfg *Config) {
	if cfg.Signald.PoolSize <= 0 {
		panic("SIGNALD_POOL_SIZE must be > 0")
	}
	if cfg.Signald.MaxConnectionAttempts <= 0 {
		panic("SIGNALD_MAX_CONNECTION_ATTEMPTS must be > 0")
	}
	if cfg.Relay.MinResendInterval <= 0 {
		panic("MIN_RESEND_INTERVAL_MS must be > 0")
	}
	if cfg.Relay.MaxResendInterval < cfg.Relay.MinResendInterval {
		panic("MAX_RESEND_INTERVAL_MS must be >= MIN_RESEND_INTERVAL_MS")
	}
	if cfg.Relay.BroadcastBatchSize <= 0 {
		panic("BROADCAST_BATCH_SIZE must be > 0")
	}
	if cfg.Relay.MonitorThreshold <= 0 {
		panic("MONITOR_FAILURE_THRESHOLD must be > 0")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}

func getEnvDuration(key string, defMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defMillis)) * time.Millisecond
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
