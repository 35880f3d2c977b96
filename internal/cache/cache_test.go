package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int64  `json:"count"`
	}

	if err := c.Set(ctx, "k1", &payload{Name: "widget", Count: 7}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got payload
	if err := c.Get(ctx, "k1", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "widget" || got.Count != 7 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestMemoryCache_GetMissing(t *testing.T) {
	c := NewMemoryCache()

	var got string
	if err := c.Get(context.Background(), "missing", &got); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", "v1", 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	var got string
	if err := c.Get(ctx, "k1", &got); err == nil {
		t.Error("expected expired key to be gone")
	}

	exists, err := c.Exists(ctx, "k1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected expired key to not exist")
	}
}

func TestMemoryCache_Del(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "k1", "v1", time.Minute)
	_ = c.Set(ctx, "k2", "v2", time.Minute)

	if err := c.Del(ctx, "k1", "k2"); err != nil {
		t.Fatalf("Del failed: %v", err)
	}

	for _, key := range []string{"k1", "k2"} {
		exists, _ := c.Exists(ctx, key)
		if exists {
			t.Errorf("expected %s to be deleted", key)
		}
	}
}

func TestMemoryCache_SetNX(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "holder-1", time.Minute)
	if err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first SetNX to win")
	}

	ok, err = c.SetNX(ctx, "lock", "holder-2", time.Minute)
	if err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	if ok {
		t.Error("expected second SetNX to lose")
	}
}

func TestNullCache(t *testing.T) {
	c := NewNullCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", "v1", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// null cache never stores anything
	var got string
	if err := c.Get(ctx, "k1", &got); err == nil {
		t.Error("expected miss from null cache")
	}

	ok, err := c.SetNX(ctx, "lock", "v", time.Minute)
	if err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	if !ok {
		t.Error("expected null cache SetNX to always succeed")
	}
}
