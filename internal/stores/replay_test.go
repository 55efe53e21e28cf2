package stores

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDenylist(t *testing.T) (*ReplayDenylist, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewReplayDenylist(rdb), mr
}

func TestInsertIfAbsentFirstUseWins(t *testing.T) {
	denylist, _ := newTestDenylist(t)
	ctx := context.Background()

	first, err := denylist.InsertIfAbsent(ctx, "u1", "123456", 4*time.Minute)
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if !first {
		t.Fatal("expected first insertion to succeed")
	}

	second, err := denylist.InsertIfAbsent(ctx, "u1", "123456", 4*time.Minute)
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if second {
		t.Fatal("expected identical pair to be denied inside the window")
	}
}

func TestPairsAreIndependentPerUserAndCode(t *testing.T) {
	denylist, _ := newTestDenylist(t)
	ctx := context.Background()

	if ok, _ := denylist.InsertIfAbsent(ctx, "u1", "123456", time.Minute); !ok {
		t.Fatal("expected first insertion to succeed")
	}
	if ok, _ := denylist.InsertIfAbsent(ctx, "u2", "123456", time.Minute); !ok {
		t.Fatal("expected same code for a different user to be admitted")
	}
	if ok, _ := denylist.InsertIfAbsent(ctx, "u1", "654321", time.Minute); !ok {
		t.Fatal("expected a different code for the same user to be admitted")
	}
}

func TestEntryExpiresPassively(t *testing.T) {
	denylist, mr := newTestDenylist(t)
	ctx := context.Background()

	if ok, _ := denylist.InsertIfAbsent(ctx, "u1", "123456", time.Minute); !ok {
		t.Fatal("expected first insertion to succeed")
	}

	mr.FastForward(2 * time.Minute)

	// Past the window the store no longer denies the pair.
	ok, err := denylist.InsertIfAbsent(ctx, "u1", "123456", time.Minute)
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if !ok {
		t.Fatal("expected pair to be eligible again after expiry")
	}
}

func TestContainsReflectsWindow(t *testing.T) {
	denylist, mr := newTestDenylist(t)
	ctx := context.Background()

	if _, err := denylist.InsertIfAbsent(ctx, "u1", "123456", time.Minute); err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}

	if got, _ := denylist.Contains(ctx, "u1", "123456"); !got {
		t.Fatal("expected pair to be denied inside the window")
	}

	mr.FastForward(2 * time.Minute)

	if got, _ := denylist.Contains(ctx, "u1", "123456"); got {
		t.Fatal("expected pair to age out of the denylist")
	}
}
