package game

import "time"

// QueueKey buckets compatible queue entries. Players only match within the
// same stake, time control, mode, and series length.
type QueueKey struct {
	Stake        int64
	TimeControl  int
	Mode         Mode
	SeriesLength int
}

// QueueEntry is one waiting player. Lives only inside a bucket; removed on
// match or cancel.
type QueueEntry struct {
	Player     *PlayerInfo
	EnqueuedAt time.Time
}

// queue holds FIFO buckets of waiting players. Not safe for concurrent use;
// the manager's lock guards it.
type queue struct {
	buckets map[QueueKey][]*QueueEntry
}

func newQueue() *queue {
	return &queue{buckets: make(map[QueueKey][]*QueueEntry)}
}

// add appends a player to the bucket. A re-join from a player already in the
// bucket refreshes their display metadata in place and keeps their queue
// position. Returns true when a new entry was created.
func (q *queue) add(key QueueKey, player *PlayerInfo) bool {
	for _, e := range q.buckets[key] {
		if e.Player.ID == player.ID {
			e.Player = player
			return false
		}
	}
	q.buckets[key] = append(q.buckets[key], &QueueEntry{Player: player, EnqueuedAt: time.Now()})
	return true
}

// takePair removes and returns the two oldest entries when the bucket holds
// at least two distinct players.
func (q *queue) takePair(key QueueKey) (a, b *QueueEntry, ok bool) {
	bucket := q.buckets[key]
	if len(bucket) < 2 {
		return nil, nil, false
	}
	a, b = bucket[0], bucket[1]
	if a.Player.ID == b.Player.ID {
		// Should be unreachable given add's dedup; keep one entry.
		q.buckets[key] = bucket[1:]
		return nil, nil, false
	}
	rest := append([]*QueueEntry(nil), bucket[2:]...)
	if len(rest) == 0 {
		delete(q.buckets, key)
	} else {
		q.buckets[key] = rest
	}
	return a, b, true
}

// remove drops the player's entry from the bucket. Returns true if an entry
// was removed.
func (q *queue) remove(key QueueKey, playerID string) bool {
	bucket := q.buckets[key]
	for i, e := range bucket {
		if e.Player.ID == playerID {
			bucket = append(bucket[:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(q.buckets, key)
			} else {
				q.buckets[key] = bucket
			}
			return true
		}
	}
	return false
}

// removeEverywhere drops the player from every bucket and returns the keys
// an entry was removed from. Used on disconnect.
func (q *queue) removeEverywhere(playerID string) []QueueKey {
	var removed []QueueKey
	for key := range q.buckets {
		if q.remove(key, playerID) {
			removed = append(removed, key)
		}
	}
	return removed
}

// contains reports whether the player has an entry in the bucket.
func (q *queue) contains(key QueueKey, playerID string) bool {
	for _, e := range q.buckets[key] {
		if e.Player.ID == playerID {
			return true
		}
	}
	return false
}

// size returns the bucket depth.
func (q *queue) size(key QueueKey) int {
	return len(q.buckets[key])
}
