package buildcache

import (
	"context"
	"log/slog"
)

// Tiered reads the local cache first and falls back to the remote one.
// Remote hits are copied into the local cache. Stores go to both; a failed
// remote store is logged and ignored.
type Tiered struct {
	Local  Cache
	Remote Cache
	Logger *slog.Logger
}

var _ Cache = (*Tiered)(nil)

func (t *Tiered) Load(ctx context.Context, key Key) (*Entry, bool, error) {
	if t.Local != nil {
		e, ok, err := t.Local.Load(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return e, true, nil
		}
	}
	if t.Remote == nil {
		return nil, false, nil
	}
	e, ok, err := t.Remote.Load(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if t.Local != nil {
		if err := t.Local.Store(ctx, e); err != nil {
			t.logger().Warn("failed to populate local cache", "key", string(key), "error", err)
		}
	}
	return e, true, nil
}

func (t *Tiered) Store(ctx context.Context, entry *Entry) error {
	if t.Local != nil {
		if err := t.Local.Store(ctx, entry); err != nil {
			return err
		}
	}
	if t.Remote != nil {
		if err := t.Remote.Store(ctx, entry); err != nil {
			t.logger().Warn("failed to store in remote cache", "key", string(entry.Key), "error", err)
		}
	}
	return nil
}

func (t *Tiered) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}
