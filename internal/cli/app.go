package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/incr/internal/buildcache"
	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/config"
	"github.com/roach88/incr/internal/engine"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
	"github.com/roach88/incr/internal/work"
)

// app is the wiring shared by every command: configuration, workfile,
// history, cache and executor.
type app struct {
	cfg      *config.Config
	root     string
	workfile *config.Workfile
	files    *snapshotter.Fingerprinter
	store    history.Store
	exec     *engine.Executor
	logger   *slog.Logger
	db       *history.SQLiteStore
}

// appOptions selects the parts a command needs.
type appOptions struct {
	// workfile loads and validates the workfile.
	workfile bool
	// executor builds the executor and, if configured, the build cache.
	executor bool
}

// openApp loads configuration and opens the history database. The caller
// must Close the returned app.
func openApp(cmd *cobra.Command, opts *RootOptions, want appOptions) (*app, error) {
	logger := newLogger(cmd, opts)

	var envFiles []string
	if opts.EnvFile != "" {
		envFiles = append(envFiles, opts.EnvFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.Root != "" {
		cfg.Root = opts.Root
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.CacheDir != "" {
		cfg.CacheDir = opts.CacheDir
		if cfg.CacheDir == config.CacheDisabled {
			cfg.CacheDir = ""
		}
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid root", err)
	}
	a := &app{cfg: cfg, root: root, logger: logger}

	if want.workfile {
		path, err := config.FindWorkfile(root, opts.Workfile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to find workfile", err)
		}
		logger.Debug("loading workfile", "path", path)
		if a.workfile, err = config.LoadWorkfile(path); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load workfile", err)
		}
	}

	if a.files, err = snapshotter.New(root, cfg.HashCacheSize); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create fingerprinter", err)
	}

	dbPath := a.resolve(cfg.Database)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create history directory", err)
	}
	logger.Debug("opening history", "path", dbPath)
	if a.db, err = history.Open(dbPath); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open history", err)
	}
	if a.store, err = history.NewCachedStore(a.db, cfg.HistoryCacheSize); err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create history cache", err)
	}

	if want.executor {
		if err := a.initExecutor(commandContext(cmd)); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) initExecutor(ctx context.Context) error {
	clock, err := engine.ResumeClock(ctx, a.store)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	cache, err := a.buildCache()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open build cache", err)
	}
	a.exec, err = engine.New(engine.Config{
		Files:  a.files,
		Cache:  cache,
		Clock:  clock,
		Logger: a.logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create executor", err)
	}
	return nil
}

// buildCache returns the configured cache, or nil when neither the local
// nor the remote cache is enabled.
func (a *app) buildCache() (buildcache.Cache, error) {
	var local, remote buildcache.Cache
	if a.cfg.CacheDir != "" {
		local = buildcache.NewLocalCache(a.resolve(a.cfg.CacheDir))
	}
	if a.cfg.Remote.Enabled {
		s3, err := buildcache.NewS3Cache(a.cfg.Remote.S3Config)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("remote cache enabled", "endpoint", a.cfg.Remote.Endpoint, "bucket", a.cfg.Remote.Bucket)
		remote = s3
	}
	switch {
	case local != nil && remote != nil:
		return &buildcache.Tiered{Local: local, Remote: remote, Logger: a.logger}, nil
	case local != nil:
		return local, nil
	case remote != nil:
		return remote, nil
	}
	return nil, nil
}

// units builds the named units, or every unit of the workfile.
func (a *app) units(names []string) ([]work.UnitOfWork, error) {
	decls, err := a.workfile.Select(names)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to select units", err)
	}
	units := make([]work.UnitOfWork, 0, len(decls))
	for _, d := range decls {
		u, err := d.Build(a.store, a.files)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to build unit", err)
		}
		units = append(units, u)
	}
	return units, nil
}

// resolve makes p absolute against the root.
func (a *app) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.root, p)
}

// Close closes the history database.
func (a *app) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("error closing history", "error", err)
	}
	a.db = nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newLogger(cmd *cobra.Command, opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// errorCode returns the code reported in JSON errors.
func errorCode(err error) string {
	var le *config.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	var ee *engine.ExecutionError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	if code := changes.CodeOf(err); code != "" {
		return string(code)
	}
	return fmt.Sprintf("E%03d", GetExitCode(err))
}
