package store

import (
	"context"
	"path/filepath"
	"testing"

	"sesamum.org/internal/config"
	"sesamum.org/internal/storage"
)

func TestOpenMemory(t *testing.T) {
	b, err := Open(context.Background(), config.Config{StateBackend: "memory"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()
	if _, ok := b.KV.(*storage.Memory); !ok || b.DB != nil {
		t.Fatalf("unexpected backend %+v", b)
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	b, err := Open(ctx, config.Config{StateBackend: "sqlite", StatePath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()
	if b.DB == nil {
		t.Fatal("expected sql handle for readiness")
	}
	if err := b.KV.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, err := b.KV.Get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Fatalf("get = %q %v %v", v, ok, err)
	}
}

func TestOpenUnknown(t *testing.T) {
	if _, err := Open(context.Background(), config.Config{StateBackend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
