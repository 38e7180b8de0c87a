package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = time.Hour

func snapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:state", sessionID)
}

// saveSnapshot mirrors a session state to redis so a restarted process or a
// reconnecting client can recover it. Best-effort; callers log failures.
func saveSnapshot(ctx context.Context, rdb *redis.Client, st *SessionState) error {
	if rdb == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	return rdb.Set(ctx, snapshotKey(st.ID), data, snapshotTTL).Err()
}

// loadSnapshot fetches a previously saved session state, or nil when absent.
func loadSnapshot(ctx context.Context, rdb *redis.Client, sessionID string) (*SessionState, error) {
	if rdb == nil {
		return nil, nil
	}
	data, err := rdb.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	var st SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return &st, nil
}

func deleteSnapshot(ctx context.Context, rdb *redis.Client, sessionID string) {
	if rdb == nil {
		return
	}
	rdb.Del(ctx, snapshotKey(sessionID))
}
