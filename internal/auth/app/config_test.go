package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", testSecret)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, testSecret, cfg.Auth.Secret)
	require.Equal(t, "farmportal-auth", cfg.Auth.Issuer)
	require.Equal(t, "Farmer Portal", cfg.Auth.TOTPIssuer)
	require.Equal(t, jwtx.AccessTokenTTL, cfg.Auth.AccessTTL)
	require.Equal(t, jwtx.RefreshTokenTTL, cfg.Auth.RefreshTTL)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "auth.db", cfg.Database.File)
	require.Equal(t, "sql", cfg.Revocation.Backend)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.False(t, cfg.Seed.Demo)
	require.Equal(t, 5, cfg.RateLimit.Login.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Login.Window)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", testSecret)
	t.Setenv("AUTH_ACCESS_TTL", "15m")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SEED_DEMO", "true")
	t.Setenv("RATELIMIT_LOGIN_BURST", "2")
	t.Setenv("REVOCATION_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "text", cfg.Log.Format)
	require.True(t, cfg.Seed.Demo)
	require.Equal(t, 2, cfg.RateLimit.Login.Burst)
	require.Equal(t, "redis", cfg.Revocation.Backend)
	require.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeFile(t, "auth.yaml", `
auth:
  secret: `+testSecret+`
  refresh_ttl: 48h
database:
  driver: postgres
  url: postgres://auth@db/auth
log:
  level: debug
ratelimit:
  probe:
    requests: 10
    window: 1s
    burst: 10
`)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 48*time.Hour, cfg.Auth.RefreshTTL)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "postgres://auth@db/auth", cfg.Database.URL)
	require.Equal(t, "warn", cfg.Log.Level, "environment wins over the file")
	require.Equal(t, 10, cfg.RateLimit.Probe.Requests)
	require.Equal(t, time.Second, cfg.RateLimit.Probe.Window)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"no secret", map[string]string{}},
		{"short secret", map[string]string{"AUTH_SECRET": "short"}},
		{"unknown driver", map[string]string{"AUTH_SECRET": testSecret, "DATABASE_DRIVER": "mysql"}},
		{"postgres without url", map[string]string{"AUTH_SECRET": testSecret, "DATABASE_DRIVER": "postgres"}},
		{"unknown revocation backend", map[string]string{"AUTH_SECRET": testSecret, "REVOCATION_BACKEND": "memcached"}},
		{"refresh shorter than access", map[string]string{"AUTH_SECRET": testSecret, "AUTH_REFRESH_TTL": "1m"}},
		{"bad log level", map[string]string{"AUTH_SECRET": testSecret, "LOG_LEVEL": "trace"}},
		{"zero rate limit", map[string]string{"AUTH_SECRET": testSecret, "RATELIMIT_TOKEN_REQUESTS": "0"}},
		{"bad port", map[string]string{"AUTH_SECRET": testSecret, "PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			require.Error(t, err)
		})
	}
}

func TestSigningSecret(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		cfg := Config{Auth: AuthConfig{Secret: testSecret}}
		secret, err := cfg.SigningSecret()
		require.NoError(t, err)
		require.Equal(t, []byte(testSecret), secret)
	})

	t.Run("from file", func(t *testing.T) {
		cfg := Config{Auth: AuthConfig{SecretFile: writeFile(t, "secret", testSecret+"\n")}}
		secret, err := cfg.SigningSecret()
		require.NoError(t, err)
		require.Equal(t, []byte(testSecret), secret)
	})

	t.Run("weak file", func(t *testing.T) {
		cfg := Config{Auth: AuthConfig{SecretFile: writeFile(t, "secret", "short")}}
		_, err := cfg.SigningSecret()
		require.ErrorIs(t, err, jwtx.ErrWeakSecret)
	})

	t.Run("none", func(t *testing.T) {
		_, err := (&Config{}).SigningSecret()
		require.ErrorIs(t, err, ErrNoSigningSecret)
	})
}
