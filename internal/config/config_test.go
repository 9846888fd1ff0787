package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithSecret(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "authenticated", cfg.Auth.Audience)
	assert.Equal(t, 10, cfg.Orders.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Realtime.LocationTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "test-secret")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("ORDER_WORKERS", "3")
	t.Setenv("LOCATION_TTL", "2m")
	t.Setenv("CORS_ORIGINS", "https://ochio.club, https://admin.ochio.club")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Orders.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Realtime.LocationTTL)
	assert.Equal(t, []string{"https://ochio.club", "https://admin.ochio.club"}, cfg.Server.CORSOrigins)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  port: 7000
database:
  url: postgres://file/ochio
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SUPABASE_JWT_SECRET", "test-secret")
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port, "env must win over file")
	assert.Equal(t, "postgres://file/ochio", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingSecretFails(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Port = 0
	cfg.Orders.Workers = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "orders.workers")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", ServerConfig{Host: "0.0.0.0", Port: 8080}.Addr())
	assert.Equal(t, "0.0.0.0:50051", ServerConfig{Host: "0.0.0.0", GRPCPort: 50051}.GRPCAddr())
}

func TestValidate_GRPCPortClash(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = "secret"
	cfg.Server.GRPCPort = cfg.Server.Port

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grpc_port")

	cfg.Server.GRPCPort = 0
	assert.NoError(t, cfg.Validate())
}
