package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/carcert/internal/database"
)

func setupKVTestDB(t *testing.T) *SQLiteKV {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteKV(db)
}

func TestKVGetNotFound(t *testing.T) {
	kv := setupKVTestDB(t)

	_, err := kv.Get(context.Background(), "push_token")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestKVSetGet(t *testing.T) {
	kv := setupKVTestDB(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "push_token", "tok-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := kv.Get(ctx, "push_token")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("value = %q, want %q", got, "tok-1")
	}
}

func TestKVSetOverwrites(t *testing.T) {
	kv := setupKVTestDB(t)
	ctx := context.Background()

	kv.Set(ctx, "notifications", "[]")
	if err := kv.Set(ctx, "notifications", `[{"id":"1"}]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, _ := kv.Get(ctx, "notifications")
	if got != `[{"id":"1"}]` {
		t.Errorf("value = %q", got)
	}

	var rows int
	if err := kv.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_store`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
}

func TestKVDelete(t *testing.T) {
	kv := setupKVTestDB(t)
	ctx := context.Background()

	kv.Set(ctx, "push_token", "tok")
	if err := kv.Delete(ctx, "push_token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := kv.Get(ctx, "push_token"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	// Deleting a missing key is not an error.
	if err := kv.Delete(ctx, "push_token"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}
