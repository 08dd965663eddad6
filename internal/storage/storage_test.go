package storage

import (
	"context"
	"testing"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.Get(ctx, "access_token"); ok || err != nil {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := m.Set(ctx, "access_token", "abc"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := m.Get(ctx, "access_token")
	if err != nil || !ok || v != "abc" {
		t.Fatalf("unexpected get: %q %v %v", v, ok, err)
	}
	if err := m.Delete(ctx, "access_token"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := m.Get(ctx, "access_token"); ok {
		t.Fatal("expected key removed")
	}
}
