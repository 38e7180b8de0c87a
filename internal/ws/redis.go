package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// gameEventsChannel carries events published by other processes (batch
// tooling, future sharded deployments) that need fanning out to locally
// connected clients.
const gameEventsChannel = "game_events"

type publishedEvent struct {
	SessionID string          `json:"session_id,omitempty"`
	PlayerID  string          `json:"player_id,omitempty"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StartEventSubscriber relays game_events messages from redis into the local
// hub until ctx is cancelled.
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set, event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, gameEventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[WS] Subscribed to %s", gameEventsChannel)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev publishedEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("[WS] Invalid game_events payload: %v", err)
					continue
				}
				switch {
				case ev.SessionID != "":
					hub.ToSession(ev.SessionID, ev.Type, ev.Data)
				case ev.PlayerID != "":
					hub.ToPlayer(ev.PlayerID, ev.Type, ev.Data)
				default:
					log.Printf("[WS] game_events message without a target, type=%s", ev.Type)
				}
			}
		}
	}()
}
