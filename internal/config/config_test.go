package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadServerEnvironment(t *testing.T) {
	t.Setenv("ADDRESS", "0.0.0.0:9090")
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("POST_FETCH_LIMIT", "50")
	t.Setenv("DATABASE_DSN", "postgres://test")

	cfg := &ServerConfig{Addr: "localhost:8080", Environment: EnvDev, PostFetchLimit: 100}
	readServerEnvironment(cfg)

	require.Equal(t, "0.0.0.0:9090", cfg.Addr)
	require.Equal(t, EnvProd, cfg.Environment)
	require.Equal(t, 50, cfg.PostFetchLimit)
	require.Equal(t, "postgres://test", cfg.DatabaseDsn)
}

func TestReadServerEnvironmentInvalidInt(t *testing.T) {
	t.Setenv("POST_FETCH_LIMIT", "not-a-number")

	cfg := &ServerConfig{PostFetchLimit: 100}
	readServerEnvironment(cfg)

	require.Equal(t, 100, cfg.PostFetchLimit)
}
