package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Root)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, DefaultCacheDir, cfg.CacheDir)
	assert.Equal(t, snapshotter.DefaultHashCacheSize, cfg.HashCacheSize)
	assert.Equal(t, history.DefaultCacheSize, cfg.HistoryCacheSize)
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, DefaultBucket, cfg.Remote.Bucket)
	assert.True(t, cfg.Remote.UseSSL)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		EnvRoot:          "/work",
		EnvDatabase:      "/tmp/h.db",
		EnvCacheDir:      "off",
		EnvHashCacheSize: "10",
		EnvS3Endpoint:    "localhost:9000",
		EnvS3Bucket:      "b",
		EnvS3UseSSL:      "false",
		EnvS3AccessKey:   " key ",
		EnvS3Prefix:      "ci",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/work", cfg.Root)
	assert.Equal(t, "/tmp/h.db", cfg.Database)
	assert.Empty(t, cfg.CacheDir)
	assert.Equal(t, 10, cfg.HashCacheSize)
	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, "localhost:9000", cfg.Remote.Endpoint)
	assert.Equal(t, "b", cfg.Remote.Bucket)
	assert.Equal(t, "key", cfg.Remote.AccessKey)
	assert.Equal(t, "ci", cfg.Remote.Prefix)
	assert.False(t, cfg.Remote.UseSSL)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"non-numeric size": {EnvHashCacheSize: "lots"},
		"zero size":        {EnvHistoryCacheSize: "0"},
		"bad bool":         {EnvS3UseSSL: "maybe"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envMap(env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("INCR_DB=from-dotenv.db\nINCR_S3_BUCKET=dotenv-bucket\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv(EnvDatabase)
		os.Unsetenv(EnvS3Bucket)
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.Database)
	assert.Equal(t, "dotenv-bucket", cfg.Remote.Bucket)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
