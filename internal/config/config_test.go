package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.EqualValues(t, 8199, cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, DefaultCookieName, cfg.Auth.CookieName)
	assert.True(t, cfg.Auth.SessionEnabled)
	assert.True(t, cfg.Auth.TokenEnabled)
	assert.False(t, cfg.Auth.RandomSessionIDs)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 8760*time.Hour, cfg.Auth.Expire)
	assert.Nil(t, cfg.Auth.ExtraFields)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("COOKIE_NAME", "sid")
	t.Setenv("EXPIRE", "24h")
	t.Setenv("SESSION_RANDOM_IDS", "true")
	t.Setenv("EXTRA_FIELDS", "name, team")

	cfg := NewConfig()

	assert.EqualValues(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "sid", cfg.Auth.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Auth.Expire)
	assert.True(t, cfg.Auth.RandomSessionIDs)
	assert.Equal(t, []string{"name", "team"}, cfg.Auth.ExtraFields)
}

func TestSplitFields(t *testing.T) {
	assert.Nil(t, splitFields(""))
	assert.Equal(t, []string{"name"}, splitFields("name"))
	assert.Equal(t, []string{"name", "team"}, splitFields(" name , team ,"))
}
