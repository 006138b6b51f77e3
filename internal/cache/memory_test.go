package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2)

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatal("hit on empty cache")
	}
	c.Set(ctx, "a", []byte("1"), time.Minute)
	v, ok, err := c.Get(ctx, "a")
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("Get(a)=%q,%v,%v", v, ok, err)
	}
}

func TestMemory_Evicts(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2)

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Get(ctx, "a")
	c.Set(ctx, "c", []byte("3"), time.Minute)

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Fatal("least recently used entry survived")
	}
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Fatal("recently used entry evicted")
	}
	if n := c.Len(); n != 2 {
		t.Fatalf("len=%d, want 2", n)
	}
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(4)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", []byte("1"), time.Second)
	now = now.Add(2 * time.Second)

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatal("expired entry returned")
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("len=%d, want 0 after expiry", n)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Backend: "none"})
	if err != nil || s != nil {
		t.Fatalf("Open(none)=%v,%v", s, err)
	}
	s, err = Open(Options{Backend: "memory", Size: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("Open(memory)=%T", s)
	}
	if _, err := Open(Options{Backend: "floppy"}); err == nil {
		t.Fatal("unknown backend accepted")
	}
}
