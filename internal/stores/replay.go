package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "a2r"

// ErrReplayBackend indicates the denylist backend is unreachable.
var ErrReplayBackend = errors.New("replay denylist backend unavailable")

// ReplayDenylist is a time-boxed set of consumed (user, code) pairs. The
// SETNX insertion is the atomic first-use check: whoever inserts the key
// owns the code; everyone else inside the window is a replay. Entries
// are never deleted explicitly, they expire with the ttl.
type ReplayDenylist struct {
	redis redis.UniversalClient
}

// NewReplayDenylist creates a denylist backed by the given Redis client.
func NewReplayDenylist(redisClient redis.UniversalClient) *ReplayDenylist {
	return &ReplayDenylist{redis: redisClient}
}

func (d *ReplayDenylist) key(userID, code string) string {
	return replayKeyPrefix + ":" + userID + ":" + code
}

// InsertIfAbsent records the pair and reports whether this was its first
// use inside the window. false means the identical pair was already
// accepted and must be rejected.
func (d *ReplayDenylist) InsertIfAbsent(ctx context.Context, userID, code string, ttl time.Duration) (bool, error) {
	inserted, err := d.redis.SetNX(ctx, d.key(userID, code), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrReplayBackend, err)
	}
	return inserted, nil
}

// Contains reports whether the pair is currently denied. Inspection
// only; admission decisions must go through InsertIfAbsent.
func (d *ReplayDenylist) Contains(ctx context.Context, userID, code string) (bool, error) {
	n, err := d.redis.Exists(ctx, d.key(userID, code)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrReplayBackend, err)
	}
	return n > 0, nil
}
