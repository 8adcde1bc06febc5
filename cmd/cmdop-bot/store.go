package main

import (
	"fmt"

	"github.com/cmdop/cmdop-bot/pkg/config"
	"github.com/cmdop/cmdop-bot/pkg/logger"
	"github.com/cmdop/cmdop-bot/pkg/permissions"
)

// openStore builds the permission store from the configured backend and
// applies the bootstrap admins and grants from the config file.
func openStore(cfg *config.Config) (*permissions.Store, error) {
	store, err := openBackendStore(cfg)
	if err != nil {
		return nil, err
	}

	for _, admin := range cfg.Permissions.Admins {
		if err := store.AddAdmin(admin); err != nil {
			return nil, fmt.Errorf("bootstrap admin %s: %w", admin, err)
		}
	}
	for _, g := range cfg.Permissions.Grants {
		level, err := permissions.ParseLevel(g.Level)
		if err != nil {
			return nil, fmt.Errorf("bootstrap grant for %s: %w", g.Identity, err)
		}
		if err := store.Grant(g.Identity, g.Machine, level); err != nil {
			return nil, fmt.Errorf("bootstrap grant for %s: %w", g.Identity, err)
		}
	}
	return store, nil
}

func openBackendStore(cfg *config.Config) (*permissions.Store, error) {
	if cfg.Permissions.StorePath == "" {
		logger.WarnC("permissions", "No store_path configured, permissions will not persist")
		return permissions.NewStore(), nil
	}

	var (
		backend permissions.Backend
		err     error
	)
	switch cfg.Permissions.Driver {
	case "", "json":
		backend, err = permissions.NewJSONBackend(cfg.Permissions.StorePath)
	case "sqlite":
		backend, err = permissions.NewSQLiteBackend(cfg.Permissions.StorePath)
	default:
		return nil, fmt.Errorf("unknown permissions driver %q", cfg.Permissions.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open permission store: %w", err)
	}
	return permissions.NewStoreWithBackend(backend)
}
