package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestPrecedence(t *testing.T) {
	src := Source{
		Setting: mapLookup(map[string]string{"port": "1111"}),
		Env:     mapLookup(map[string]string{"PORT": "2222", "CURRENCY_SYMBOL": "BASE"}),
		File:    map[string]string{"port": "3333", "currency_symbol": "FILE", "app_name": "Buddies Dev"},
	}
	cfg := LoadFrom(src)
	assert.Equal(t, "1111", cfg.Port)
	assert.Equal(t, "BASE", cfg.CurrencySymbol)
	assert.Equal(t, "Buddies Dev", cfg.Manifest.Name)
	assert.Equal(t, "A fun onchain app built on Base!", cfg.Manifest.Description)
}

func TestDefaults(t *testing.T) {
	cfg := LoadFrom(Source{})
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "ETH", cfg.CurrencySymbol)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.False(t, cfg.Discord.Enabled)
	assert.Len(t, cfg.Manifest.Tags, 5)
}

func TestGeneratedJWTSecret(t *testing.T) {
	a := LoadFrom(Source{})
	b := LoadFrom(Source{})
	assert.True(t, a.JWTSecretGenerated)
	assert.Len(t, a.JWTSecret, 64)
	assert.NotEqual(t, a.JWTSecret, b.JWTSecret)

	cfg := LoadFrom(Source{Env: mapLookup(map[string]string{"JWT_SECRET": "s3cret"})})
	assert.False(t, cfg.JWTSecretGenerated)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestBackendInference(t *testing.T) {
	cfg := LoadFrom(Source{Env: mapLookup(map[string]string{"REDIS_URL": "redis://x"})})
	assert.Equal(t, "redis", cfg.StoreBackend)

	cfg = LoadFrom(Source{Env: mapLookup(map[string]string{"MYSQL_DSN": "u@/db", "STORE_BACKEND": "memory"})})
	assert.Equal(t, "memory", cfg.StoreBackend)
}

func TestTypedValues(t *testing.T) {
	src := Source{Env: mapLookup(map[string]string{
		"POLL_INTERVAL":      "15",
		"HEAD_INTERVAL":      "500ms",
		"RATE_LIMIT":         "abc",
		"ENABLE_DISCORD":     "off",
		"DISCORD_TOKEN":      "t",
		"DISCORD_CHANNEL_ID": "c",
		"CORS_ORIGINS":       "https://a.example, https://b.example,",
		"CHAIN_ID":           "8453",
	})}
	cfg := LoadFrom(src)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Chain.HeadInterval)
	assert.Equal(t, 30, cfg.RateLimit)
	assert.False(t, cfg.Discord.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, int64(8453), cfg.Chain.ChainID)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\ncors_origins:\n  - https://a\n  - https://b\nenable_discord: true\n"), 0o600))

	m, err := readFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", m["port"])
	assert.Equal(t, "https://a,https://b", m["cors_origins"])
	assert.Equal(t, "true", m["enable_discord"])

	_, err = readFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseBoolDefault(t *testing.T) {
	assert.True(t, parseBoolDefault("YES", false))
	assert.False(t, parseBoolDefault("off", true))
	assert.True(t, parseBoolDefault("maybe", true))
}
