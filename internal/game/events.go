package game

// Event names broadcast to clients.
const (
	EventWaitingForOpponent   = "waiting_for_opponent"
	EventSessionStart         = "session_start"
	EventMoveApplied          = "move_applied"
	EventRoundOver            = "round_over"
	EventRoundStart           = "round_start"
	EventSeriesOver           = "series_over"
	EventSessionOver          = "session_over"
	EventBalanceUpdated       = "balance_updated"
	EventOpponentDisconnected = "opponent_disconnected"
	EventRoomClosed           = "room_closed"
	EventOpponentLeft         = "opponent_left"
	EventRoomUpdated          = "room_updated"
	EventSpectatorListUpdated = "spectator_list_updated"
	EventSpectatorSnapshot    = "spectator_snapshot"
	EventRematchRequested     = "rematch_requested"
	EventRematchDeclined      = "rematch_declined"
	EventRematchFailed        = "rematch_failed"
	EventError                = "error"
)

// Emitter delivers events to connected clients and tracks which session
// room each connection belongs to. Delivery is fire-and-forget: a closed or
// slow peer must never block or fail the caller.
type Emitter interface {
	// JoinRoom subscribes the player's connection to the session's events.
	JoinRoom(sessionID, playerID string)
	// LeaveRoom unsubscribes the player's connection.
	LeaveRoom(sessionID, playerID string)
	// ToSession sends to every connection joined to the session's room,
	// spectators included.
	ToSession(sessionID, event string, payload any)
	// ToPlayer sends to one player's connection if it is open.
	ToPlayer(playerID, event string, payload any)
}

// Presence answers whether a player currently has an open connection.
type Presence interface {
	Connected(playerID string) bool
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) JoinRoom(string, string)       {}
func (NopEmitter) LeaveRoom(string, string)      {}
func (NopEmitter) ToSession(string, string, any) {}
func (NopEmitter) ToPlayer(string, string, any)  {}

// AlwaysPresent reports every player as connected.
type AlwaysPresent struct{}

func (AlwaysPresent) Connected(string) bool { return true }
