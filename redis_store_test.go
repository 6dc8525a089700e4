package gerbango

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return store, mr
}

func TestRedisStoreSetGet(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "v1" {
		t.Errorf("Expected v1, got %s", value)
	}
}

func TestRedisStoreMiss(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, err := store.Get(context.Background(), "absent")
	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	store.Set(ctx, "k1", []byte("v1"), time.Second)
	mr.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "k1"); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after TTL, got %v", err)
	}
}

func TestRedisStoreDeletePattern(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	store.Set(ctx, "gerbango:get_item:aaa", []byte("1"), time.Minute)
	store.Set(ctx, "gerbango:get_item:bbb:caller-1", []byte("2"), time.Minute)
	store.Set(ctx, "gerbango:list_items:ccc", []byte("3"), time.Minute)

	deleted, err := store.DeletePattern(ctx, "gerbango:get_item:*")
	if err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deletions, got %d", deleted)
	}

	if _, err := store.Get(ctx, "gerbango:list_items:ccc"); err != nil {
		t.Errorf("Expected unrelated entry to survive: %v", err)
	}
}

func TestRedisStoreDeletePatternNoMatch(t *testing.T) {
	store, _ := newTestRedisStore(t)

	deleted, err := store.DeletePattern(context.Background(), "gerbango:nothing:*")
	if err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deletions, got %d", deleted)
	}
}

func TestRedisStorePing(t *testing.T) {
	store, _ := newTestRedisStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisStoreDownDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	mr.Close()

	if _, err := store.Get(context.Background(), "k1"); err == nil || err == ErrCacheMiss {
		t.Errorf("Expected a transport error from a down server, got %v", err)
	}
}
