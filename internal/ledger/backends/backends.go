// Package backends opens the ledger selected in the settings.
package backends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"todosync/internal/config"
	"todosync/internal/ledger"
	"todosync/internal/ledger/googletasks"
	"todosync/internal/ledger/redis"
	"todosync/internal/ledger/sqlite"
)

// ErrNotAuthenticated is returned when the googletasks backend has no credentials.
var ErrNotAuthenticated = errors.New("not authenticated")

// Open returns the ledger named by cfg.Settings.Backend.
// Release it with Close.
func Open(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
	s := cfg.Settings
	switch s.Backend {
	case config.BackendSQLite:
		path := cfg.SQLitePath()
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return nil, fmt.Errorf("create ledger dir: %w", err)
			}
		}
		return sqlite.Open(ctx, path)

	case config.BackendRedis:
		return redis.New(redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Prefix:   s.Redis.Prefix,
		}), nil

	case config.BackendGoogleTasks:
		if !cfg.HasOAuthClient() {
			return nil, fmt.Errorf("%w: %s not found in %s", ErrNotAuthenticated, config.OAuthClientFile, cfg.Dir)
		}
		if !cfg.HasToken() {
			return nil, fmt.Errorf("%w: not logged in (run: todosync login)", ErrNotAuthenticated)
		}
		return googletasks.New(ctx, cfg)

	default:
		return nil, fmt.Errorf("unknown backend: %s", s.Backend)
	}
}

// Close releases l if it holds resources.
func Close(l ledger.Ledger) error {
	if c, ok := l.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
