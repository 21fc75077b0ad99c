package main

import (
	"context"
	"fmt"

	"github.com/dukerupert/carcert/internal/config"
	"github.com/dukerupert/carcert/internal/database"
	"github.com/dukerupert/carcert/internal/store"
)

// openStore opens the configured persistent store. The returned func
// releases it.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.KV, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := database.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return store.NewSQLiteKV(db), db.Close, nil
	case "redis":
		kv, err := store.NewRedisKV(ctx, store.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPass,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	case "memory":
		return store.NewMemoryKV(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
