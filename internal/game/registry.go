package game

// registry maps session ids to sessions and each seated player to their
// current session. Spectators are tracked in a separate index so watching a
// room never touches a player's seated binding. Not safe for concurrent use;
// the manager's lock guards it.
type registry struct {
	sessions      map[string]*Session
	playerSession map[string]string
	spectating    map[string]string
}

func newRegistry() *registry {
	return &registry{
		sessions:      make(map[string]*Session),
		playerSession: make(map[string]string),
		spectating:    make(map[string]string),
	}
}

func (r *registry) put(s *Session) {
	r.sessions[s.ID] = s
}

func (r *registry) get(id string) *Session {
	return r.sessions[id]
}

// bind points the player's "current session" at sessionID.
func (r *registry) bind(playerID, sessionID string) {
	r.playerSession[playerID] = sessionID
}

// unbind clears the player's pointer only if it still points at sessionID,
// so a stale cleanup cannot clobber a newer binding.
func (r *registry) unbind(playerID, sessionID string) {
	if r.playerSession[playerID] == sessionID {
		delete(r.playerSession, playerID)
	}
}

// sessionFor resolves the player's seated session, for disconnect routing.
// Spectated rooms are never returned here.
func (r *registry) sessionFor(playerID string) *Session {
	id, ok := r.playerSession[playerID]
	if !ok {
		return nil
	}
	return r.sessions[id]
}

// bindSpectator points the player's spectating pointer at sessionID.
func (r *registry) bindSpectator(playerID, sessionID string) {
	r.spectating[playerID] = sessionID
}

// unbindSpectator clears the spectating pointer only if it still points at
// sessionID.
func (r *registry) unbindSpectator(playerID, sessionID string) {
	if r.spectating[playerID] == sessionID {
		delete(r.spectating, playerID)
	}
}

// spectatedSession resolves the room the player is watching, if any.
func (r *registry) spectatedSession(playerID string) *Session {
	id, ok := r.spectating[playerID]
	if !ok {
		return nil
	}
	return r.sessions[id]
}

// drop removes the session and any bindings still pointing at it.
func (r *registry) drop(s *Session) {
	delete(r.sessions, s.ID)
	for _, p := range s.Players {
		if p != nil {
			r.unbind(p.ID, s.ID)
		}
	}
	for _, id := range s.Spectators {
		r.unbindSpectator(id, s.ID)
	}
}

// liveRooms returns every ephemeral session, newest first not guaranteed;
// callers sort if they need an order.
func (r *registry) liveRooms() []*Session {
	var out []*Session
	for _, s := range r.sessions {
		if s.Durability == DurabilityEphemeral {
			out = append(out, s)
		}
	}
	return out
}

// waitingSessions returns persisted rooms still waiting for an opponent.
func (r *registry) waitingSessions() []*Session {
	var out []*Session
	for _, s := range r.sessions {
		if s.Status == StatusWaiting {
			out = append(out, s)
		}
	}
	return out
}
