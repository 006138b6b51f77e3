package cache

import (
	"context"
	"testing"
	"time"
)

func TestDuckDB_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewDuckDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, ok, err := c.Get(ctx, "layers"); err != nil || ok {
		t.Fatalf("Get on empty table: ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "layers", []byte(`{"a":1}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "layers", []byte(`{"a":2}`), time.Minute); err != nil {
		t.Fatal("replace:", err)
	}

	v, ok, err := c.Get(ctx, "layers")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(v) != `{"a":2}` {
		t.Fatalf("body=%s, want replaced value", v)
	}
}

func TestDuckDB_Expired(t *testing.T) {
	ctx := context.Background()
	c, err := NewDuckDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("v"), -time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expired entry: ok=%v err=%v", ok, err)
	}
}
