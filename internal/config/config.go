// Package config loads incr's environment configuration and workfiles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/roach88/incr/internal/buildcache"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
)

// Environment keys.
const (
	EnvRoot             = "INCR_ROOT"
	EnvDatabase         = "INCR_DB"
	EnvCacheDir         = "INCR_CACHE_DIR"
	EnvHashCacheSize    = "INCR_HASH_CACHE_SIZE"
	EnvHistoryCacheSize = "INCR_HISTORY_CACHE_SIZE"
	EnvS3Endpoint       = "INCR_S3_ENDPOINT"
	EnvS3Bucket         = "INCR_S3_BUCKET"
	EnvS3AccessKey      = "INCR_S3_ACCESS_KEY"
	EnvS3SecretKey      = "INCR_S3_SECRET_KEY"
	EnvS3Region         = "INCR_S3_REGION"
	EnvS3UseSSL         = "INCR_S3_USE_SSL"
	EnvS3Prefix         = "INCR_S3_PREFIX"
)

// Defaults.
const (
	DefaultDatabase = ".incr/history.db"
	DefaultCacheDir = ".incr/cache"
	DefaultBucket   = "incr-cache"
	DefaultRegion   = "us-east-1"

	// CacheDisabled as INCR_CACHE_DIR turns the local cache off.
	CacheDisabled = "off"
)

type Config struct {
	// Root is the directory unit paths are relative to.
	Root string
	// Database is the SQLite history file, relative to Root unless absolute.
	Database string
	// CacheDir is the local build cache, relative to Root unless absolute.
	// Empty disables it.
	CacheDir string

	HashCacheSize    int
	HistoryCacheSize int

	Remote RemoteConfig
}

// RemoteConfig configures the S3-compatible build cache.
type RemoteConfig struct {
	Enabled bool
	buildcache.S3Config
}

// Load reads the given .env files (".env" when none are given) into the
// process environment and builds a Config from it. Missing .env files are
// not an error. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := &Config{
		Root:     firstNonEmpty(get(EnvRoot), "."),
		Database: firstNonEmpty(get(EnvDatabase), DefaultDatabase),
		CacheDir: firstNonEmpty(get(EnvCacheDir), DefaultCacheDir),
	}
	if strings.EqualFold(cfg.CacheDir, CacheDisabled) {
		cfg.CacheDir = ""
	}

	var err error
	if cfg.HashCacheSize, err = intValue(get, EnvHashCacheSize, snapshotter.DefaultHashCacheSize); err != nil {
		return nil, err
	}
	if cfg.HistoryCacheSize, err = intValue(get, EnvHistoryCacheSize, history.DefaultCacheSize); err != nil {
		return nil, err
	}

	endpoint := get(EnvS3Endpoint)
	useSSL := true
	if raw := get(EnvS3UseSSL); raw != "" {
		if useSSL, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvS3UseSSL, err)
		}
	}
	cfg.Remote = RemoteConfig{
		Enabled: endpoint != "",
		S3Config: buildcache.S3Config{
			Endpoint:  endpoint,
			Region:    firstNonEmpty(get(EnvS3Region), DefaultRegion),
			AccessKey: get(EnvS3AccessKey),
			SecretKey: get(EnvS3SecretKey),
			Bucket:    firstNonEmpty(get(EnvS3Bucket), DefaultBucket),
			UseSSL:    useSSL,
			Prefix:    get(EnvS3Prefix),
		},
	}
	return cfg, nil
}

func intValue(get func(string) string, key string, def int) (int, error) {
	raw := get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
