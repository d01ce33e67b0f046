package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "rooms:list:u1:all", []string{"a", "b"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got []string
	ok, err := c.Get(ctx, "rooms:list:u1:all", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestMemoryCache_Expires(t *testing.T) {
	mc := NewMemoryCache().(*memoryCache)
	now := time.Now()
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	_ = mc.Set(ctx, "k", 1, 300*time.Second)
	mc.now = func() time.Time { return now.Add(301 * time.Second) }

	var v int
	ok, _ := mc.Get(ctx, "k", &v)
	if ok {
		t.Error("expected entry to expire after its ttl")
	}
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "rooms:list:u1:all", 1, time.Minute)
	_ = c.Set(ctx, "rooms:list:u1:collab", 1, time.Minute)
	_ = c.Set(ctx, "rooms:list:u2:all", 1, time.Minute)
	_ = c.Set(ctx, "other", 1, time.Minute)

	if err := c.DeletePattern(ctx, "rooms:list:u1:*"); err != nil {
		t.Fatalf("DeletePattern: %v", err)
	}

	var v int
	if ok, _ := c.Get(ctx, "rooms:list:u1:all", &v); ok {
		t.Error("u1 all should be evicted")
	}
	if ok, _ := c.Get(ctx, "rooms:list:u1:collab", &v); ok {
		t.Error("u1 collab should be evicted")
	}
	if ok, _ := c.Get(ctx, "rooms:list:u2:all", &v); !ok {
		t.Error("u2 should survive")
	}

	_ = c.DeletePattern(ctx, "rooms:list:*")
	if ok, _ := c.Get(ctx, "rooms:list:u2:all", &v); ok {
		t.Error("u2 should be evicted by the broad pattern")
	}
	if ok, _ := c.Get(ctx, "other", &v); !ok {
		t.Error("unrelated key should survive")
	}
}
