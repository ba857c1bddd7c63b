package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/javiermolinar/airtime/internal/command"
	"github.com/javiermolinar/airtime/internal/config"
	"github.com/javiermolinar/airtime/internal/db"
	"github.com/javiermolinar/airtime/internal/grid"
	"github.com/javiermolinar/airtime/internal/lifecycle"
	"github.com/javiermolinar/airtime/internal/report"
	"github.com/javiermolinar/airtime/internal/scheduler"
	"github.com/javiermolinar/airtime/internal/session"
	"github.com/javiermolinar/airtime/internal/xlsx"
)

// services is everything a command needs, built from one configuration.
type services struct {
	store      grid.Store
	sessions   session.Store
	lifecycle  *lifecycle.Manager
	dispatcher *command.Dispatcher
}

func openServices(cfg *config.Config, logger *slog.Logger, now func() time.Time) (*services, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	groups, err := cfg.GroupIndexes(catalog)
	if err != nil {
		return nil, err
	}
	palette, err := cfg.Palette()
	if err != nil {
		return nil, err
	}
	names, err := cfg.Names()
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	sessions, err := openSessions(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	store = grid.WithRetry(store, cfg.RetryPolicy(), logger)

	layout := cfg.Layout()
	lc, err := lifecycle.New(store, layout, catalog, lifecycle.Options{
		Names:      &names,
		KeepMonths: cfg.Months.Keep,
		Logger:     logger,
	})
	if err != nil {
		_ = store.Close()
		_ = sessions.Close()
		return nil, err
	}

	messages := cfg.Messages()
	d := command.NewDispatcher(command.Config{
		Lifecycle: lc,
		Scheduler: scheduler.New(store, layout, catalog, scheduler.Options{
			Pacing: cfg.Pacer(),
			Logger: logger,
		}),
		Report:   report.New(catalog, groups, cfg.Headings()),
		Sessions: sessions,
		Palette:  palette,
		Messages: &messages,
		Now:      now,
		Logger:   logger,
	})

	return &services{
		store:      store,
		sessions:   sessions,
		lifecycle:  lc,
		dispatcher: d,
	}, nil
}

// openStore opens the configured grid backend.
func openStore(cfg config.StoreConfig) (grid.Store, error) {
	switch cfg.Backend {
	case "memory":
		return grid.NewMemStore(), nil
	case "sqlite", "xlsx":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		if cfg.Backend == "xlsx" {
			return xlsx.Open(cfg.Path)
		}
		return db.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openSessions opens the configured session backend.
func openSessions(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStoreFromURL(cfg.Session.RedisURL, cfg.Session.Prefix, cfg.SessionTTL())
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func (s *services) Close() error {
	return errors.Join(s.store.Close(), s.sessions.Close())
}
