package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "af", time.Hour), mr
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "s1", "auth:user_id", "u42", 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "s1", "auth:user_id")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "u42" {
		t.Fatalf("expected u42, got %q", got)
	}

	// Get does not consume the value.
	if _, err := store.Get(ctx, "s1", "auth:user_id"); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
}

func TestPullIsReadOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "s1", "2fa:user:id", "u42", 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Pull(ctx, "s1", "2fa:user:id")
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if got != "u42" {
		t.Fatalf("expected u42, got %q", got)
	}

	if _, err := store.Pull(ctx, "s1", "2fa:user:id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after Pull, got %v", err)
	}
	if _, err := store.Get(ctx, "s1", "2fa:user:id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get after Pull, got %v", err)
	}
}

func TestPutHonorsCustomTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "s1", "2fa:user:id", "u42", time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "s1", "2fa:user:id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected value to expire, got %v", err)
	}
}

func TestFlushRemovesAllSessionValues(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "s1", "auth:user_id", "u42", 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "s1", "intended", "/reports", 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "other", "auth:user_id", "u7", 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := store.Flush(ctx, "s1"); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if _, err := store.Get(ctx, "s1", "auth:user_id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected flushed value to be gone, got %v", err)
	}
	if _, err := store.Get(ctx, "s1", "intended"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected flushed value to be gone, got %v", err)
	}
	if mr.Exists("af:sess:s1:__fields") {
		t.Fatal("expected field index to be removed")
	}

	// Other sessions are untouched.
	if got, err := store.Get(ctx, "other", "auth:user_id"); err != nil || got != "u7" {
		t.Fatalf("expected other session intact, got %q err %v", got, err)
	}
}

func TestFlushIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Flush(ctx, "never-seen"); err != nil {
		t.Fatalf("Flush of empty session failed: %v", err)
	}
	if err := store.Flush(ctx, "never-seen"); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
}

func TestDeleteMissingValueIsNoError(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Delete(context.Background(), "s1", "absent"); err != nil {
		t.Fatalf("Delete of missing value failed: %v", err)
	}
}
