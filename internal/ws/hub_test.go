package ws

import (
	"encoding/json"
	"testing"
)

func testClient(id string, buffer int) *Client {
	return &Client{playerID: id, send: make(chan []byte, buffer)}
}

func recv(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		return env
	default:
		t.Fatal("no message in send buffer")
		return Envelope{}
	}
}

func TestToSessionReachesRoomMembers(t *testing.T) {
	h := NewHub()
	a := testClient("a", 4)
	b := testClient("b", 4)
	c := testClient("c", 4)
	h.register(a)
	h.register(b)
	h.register(c)
	h.JoinRoom("s1", "a")
	h.JoinRoom("s1", "b")

	h.ToSession("s1", "move_applied", map[string]int{"row": 3})

	for _, client := range []*Client{a, b} {
		env := recv(t, client)
		if env.Type != "move_applied" {
			t.Errorf("type = %s, want move_applied", env.Type)
		}
	}
	if len(c.send) != 0 {
		t.Error("client outside the room received the event")
	}
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	h := NewHub()
	a := testClient("a", 4)
	h.register(a)
	h.JoinRoom("s1", "a")
	h.LeaveRoom("s1", "a")

	h.ToSession("s1", "session_over", nil)
	if len(a.send) != 0 {
		t.Error("event delivered after leaving the room")
	}
}

func TestToPlayerAndPresence(t *testing.T) {
	h := NewHub()
	a := testClient("a", 4)
	h.register(a)

	if !h.Connected("a") || h.Connected("b") {
		t.Error("presence wrong")
	}

	h.ToPlayer("a", "balance_updated", map[string]int64{"balance": 900})
	env := recv(t, a)
	if env.Type != "balance_updated" {
		t.Errorf("type = %s, want balance_updated", env.Type)
	}

	// Sending to an absent player is a quiet no-op.
	h.ToPlayer("ghost", "balance_updated", nil)
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	a := testClient("a", 1)
	h.register(a)
	h.JoinRoom("s1", "a")

	h.ToSession("s1", "move_applied", 1)
	h.ToSession("s1", "move_applied", 2) // must not block

	if len(a.send) != 1 {
		t.Errorf("buffer holds %d messages, want 1", len(a.send))
	}
}

func TestUnregisterOnlyCurrentConnection(t *testing.T) {
	h := NewHub()
	a1 := testClient("a", 4)
	h.register(a1)
	h.JoinRoom("s1", "a")

	a2 := testClient("a", 4)
	stale := h.unregister(a2)
	if stale {
		t.Error("unregistering a non-current connection must be a no-op")
	}
	if !h.Connected("a") {
		t.Error("current connection was dropped by a stale unregister")
	}

	if !h.unregister(a1) {
		t.Error("current connection failed to unregister")
	}
	if h.Connected("a") {
		t.Error("player still connected after unregister")
	}
}
