package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dukerupert/carcert/internal/config"
	"github.com/dukerupert/carcert/internal/model"
)

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "carcert.db")

	kv, closeStore, err := openStore(ctx, config.StoreConfig{Backend: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if err := kv.Set(ctx, model.KeyPushToken, "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	closeStore()

	kv, closeStore, err = openStore(ctx, config.StoreConfig{Backend: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer closeStore()
	if got, err := kv.Get(ctx, model.KeyPushToken); err != nil || got != "tok" {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	kv, closeStore, err := openStore(context.Background(), config.StoreConfig{Backend: "memory"})
	if err != nil || kv == nil {
		t.Fatalf("openStore = %v, %v", kv, err)
	}
	if err := closeStore(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestOpenStoreUnknown(t *testing.T) {
	if _, _, err := openStore(context.Background(), config.StoreConfig{Backend: "etcd"}); err == nil {
		t.Error("expected error")
	}
}
