package commands

import (
	"context"
	"fmt"

	"github.com/klabast/wb-services/plaza/internal/admin"
	"github.com/klabast/wb-services/plaza/internal/config"
	"github.com/klabast/wb-services/plaza/internal/kv"
	"github.com/klabast/wb-services/plaza/internal/store"
)

// backends holds the event store and the session store. With Redis both
// share one client under different prefixes.
type backends struct {
	events   kv.Store
	sessions kv.Store
}

func (b *backends) Close() {
	_ = b.events.Close()
	if b.sessions != b.events {
		_ = b.sessions.Close()
	}
}

// openBackends connects the configured store backend
func (a *App) openBackends(ctx context.Context) (*backends, error) {
	cfg := a.cfg
	switch cfg.Store.Backend {
	case config.BackendFile:
		fs, err := kv.NewFileStore(cfg.StorePath(), kv.WithQuota(cfg.Store.Quota), kv.WithFileLogger(a.logger))
		if err != nil {
			return nil, err
		}
		return &backends{events: fs, sessions: kv.NewMemoryStore(0)}, nil

	case config.BackendRedis:
		client, err := kv.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		events := kv.NewRedisStore(client,
			kv.WithPrefix(cfg.Redis.Prefix),
			kv.WithValueQuota(cfg.Store.Quota),
			kv.WithRedisLogger(a.logger))
		sessions := kv.NewRedisStore(client,
			kv.WithPrefix(cfg.Redis.Prefix+"session:"),
			kv.WithTTL(cfg.Redis.SessionTTL),
			kv.WithRedisLogger(a.logger))
		return &backends{events: events, sessions: sessions}, nil

	case config.BackendMemory:
		return &backends{events: kv.NewMemoryStore(cfg.Store.Quota), sessions: kv.NewMemoryStore(0)}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// eventStore opens the backends and wraps the event side in a store
func (a *App) eventStore(ctx context.Context, opts ...store.Option) (*store.EventStore, *backends, error) {
	b, err := a.openBackends(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]store.Option{store.WithLogger(a.logger)}, opts...)
	return store.New(b.events, opts...), b, nil
}

// credentials returns the hashed auth file credentials when one is
// configured and the plain admin user otherwise.
func (a *App) credentials() (admin.Credentials, error) {
	if a.cfg.Admin.AuthFile != "" {
		creds, err := admin.LoadAuthFile(a.cfg.Admin.AuthFile)
		if err != nil {
			return nil, err
		}
		a.logger.Info().Str("user", creds.User()).Str("file", a.cfg.Admin.AuthFile).Msg("Loaded admin credentials")
		return creds, nil
	}
	if a.cfg.Admin.User == admin.DefaultUser && a.cfg.Admin.Password == admin.DefaultPassword {
		a.logger.Warn().Msg("Using the default admin password; set PLAZA_ADMIN_PASSWORD or an auth file")
	}
	return admin.PlainCredentials{Username: a.cfg.Admin.User, Password: a.cfg.Admin.Password}, nil
}
