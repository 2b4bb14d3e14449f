package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CacheBackend names the session cache implementation to use.
type CacheBackend string

const (
	CacheBackendMemory CacheBackend = "memory" // in-process map (default)
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendSQLite CacheBackend = "sqlite" // shares the users database file
)

type (
	Config struct {
		HTTP
		Database
		Cache
		Redis
		Auth
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Database struct {
		Path string
	}
	Cache struct {
		Backend CacheBackend
		// SweepSchedule is a cron expression for purging expired
		// entries from the memory backend. Redis and SQLite evict
		// on their own.
		SweepSchedule string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Auth struct {
		CookieName string
		// SessionSecret is the shared HMAC key for bearer tokens.
		SessionSecret  string
		SessionEnabled bool
		TokenEnabled   bool
		// RandomSessionIDs switches session identifiers from the
		// legacy username+id derivation to random UUIDs. Off by
		// default: enabling it changes observable behavior for
		// clients that inspect the cookie value.
		RandomSessionIDs bool
		BcryptCost       int
		SecureCookies    bool
		// Expire governs cache entry TTL, cookie max age, and token
		// expiry alike.
		Expire time.Duration
		// ExtraFields is the allow-list of deployment-defined fields
		// accepted alongside username/password at registration.
		ExtraFields []string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8199)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Session cache defaults
	v.SetDefault("cache_backend", string(CacheBackendMemory))
	v.SetDefault("cache_sweep_schedule", "@hourly")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	// Auth defaults
	v.SetDefault("cookie_name", DefaultCookieName)
	v.SetDefault("session_private_key", "")
	v.SetDefault("session_enabled", true)
	v.SetDefault("token_enabled", true)
	v.SetDefault("session_random_ids", false)
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("secure_cookies", false)
	v.SetDefault("expire", "8760h") // 1 year
	v.SetDefault("extra_fields", "")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Cache: Cache{
			Backend:       CacheBackend(v.GetString("CACHE_BACKEND")),
			SweepSchedule: v.GetString("CACHE_SWEEP_SCHEDULE"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Auth: Auth{
			CookieName:       v.GetString("COOKIE_NAME"),
			SessionSecret:    v.GetString("SESSION_PRIVATE_KEY"),
			SessionEnabled:   v.GetBool("SESSION_ENABLED"),
			TokenEnabled:     v.GetBool("TOKEN_ENABLED"),
			RandomSessionIDs: v.GetBool("SESSION_RANDOM_IDS"),
			BcryptCost:       v.GetInt("BCRYPT_COST"),
			SecureCookies:    v.GetBool("SECURE_COOKIES"),
			Expire:           v.GetDuration("EXPIRE"),
			ExtraFields:      splitFields(v.GetString("EXTRA_FIELDS")),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}

// splitFields parses the comma-separated EXTRA_FIELDS value.
func splitFields(raw string) []string {
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
