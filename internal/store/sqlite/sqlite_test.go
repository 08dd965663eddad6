package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(ctx, "dev_role", "company"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "dev_role", "control"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	v, ok, err := s.Get(ctx, "dev_role")
	if err != nil || !ok || v != "control" {
		t.Fatalf("unexpected value %q ok=%v err=%v", v, ok, err)
	}
	if err := s.Delete(ctx, "dev_role"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, "dev_role"); ok || err != nil {
		t.Fatalf("expected deleted key, ok=%v err=%v", ok, err)
	}
}
