package game

import (
	"time"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Mode string

const (
	ModeStandard   Mode = "standard"
	ModeTournament Mode = "tournament"
	ModeLive       Mode = "live"
)

// Durability decides whether a session is mirrored to the database and
// snapshot store, or lives only in process memory. Live rooms are ephemeral.
type Durability string

const (
	DurabilityPersisted Durability = "persisted"
	DurabilityEphemeral Durability = "ephemeral"
)

// PlayerInfo is the display metadata carried alongside a seat.
type PlayerInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Session is one game room. Mutable fields are guarded by the manager's
// lock; nothing outside the manager touches a session directly.
type Session struct {
	ID           string
	Stake        int64
	TimeControl  int // seconds per move, 0 means unlimited
	Mode         Mode
	Durability   Durability
	SeriesLength int
	Status       Status

	Players   map[Slot]*PlayerInfo
	CreatorID string // set for live rooms only

	Board    *Board
	Turn     Slot
	Timeouts map[Slot]int

	Tournament *Tournament

	Spectators []string // player ids watching a live room

	WinnerID  string
	WinReason string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	ExpiresAt   time.Time

	// settled flips exactly once, when the terminal ledger settlement for
	// this session has been applied.
	settled bool

	// rematchFrom holds the player id of a pending rematch request.
	rematchFrom string
}

func newSession(id string, stake int64, timeControl int, mode Mode, durability Durability, seriesLength int) *Session {
	s := &Session{
		ID:           id,
		Stake:        stake,
		TimeControl:  timeControl,
		Mode:         mode,
		Durability:   durability,
		SeriesLength: seriesLength,
		Status:       StatusWaiting,
		Players:      make(map[Slot]*PlayerInfo),
		Board:        NewBoard(),
		Turn:         SlotBlack,
		Timeouts:     map[Slot]int{SlotBlack: 0, SlotWhite: 0},
		CreatedAt:    time.Now(),
	}
	if mode == ModeTournament {
		s.Tournament = NewTournament(seriesLength)
	}
	return s
}

// slotOf returns the seat held by playerID, or "" if they have no seat.
func (s *Session) slotOf(playerID string) Slot {
	for slot, p := range s.Players {
		if p != nil && p.ID == playerID {
			return slot
		}
	}
	return ""
}

// opponentOf returns the player seated opposite slot, or nil.
func (s *Session) opponentOf(slot Slot) *PlayerInfo {
	return s.Players[slot.Other()]
}

// hasSeat reports whether playerID holds a seat in the session.
func (s *Session) hasSeat(playerID string) bool {
	return s.slotOf(playerID) != ""
}

// resetRound clears the board and per-round counters. Status and score are
// untouched; turn is set by the caller.
func (s *Session) resetRound() {
	s.Board.Reset()
	s.Timeouts[SlotBlack] = 0
	s.Timeouts[SlotWhite] = 0
}

// SessionState is the wire snapshot of a session, sent on session_start,
// reconnect, and to joining spectators.
type SessionState struct {
	ID           string               `json:"id"`
	Stake        int64                `json:"stake"`
	TimeControl  int                  `json:"timeControl"`
	Mode         Mode                 `json:"mode"`
	SeriesLength int                  `json:"seriesLength,omitempty"`
	Status       Status               `json:"status"`
	Players      map[Slot]*PlayerInfo `json:"players"`
	CreatorID    string               `json:"creatorId,omitempty"`
	Moves        []Stone              `json:"moves"`
	Turn         Slot                 `json:"turn"`
	Tournament   *TournamentState     `json:"tournament,omitempty"`
	Spectators   []string             `json:"spectators,omitempty"`
	WinnerID     string               `json:"winnerId,omitempty"`
	WinReason    string               `json:"winReason,omitempty"`
}

// state builds a snapshot. Caller holds the session lock.
func (s *Session) state() *SessionState {
	st := &SessionState{
		ID:           s.ID,
		Stake:        s.Stake,
		TimeControl:  s.TimeControl,
		Mode:         s.Mode,
		SeriesLength: s.SeriesLength,
		Status:       s.Status,
		Players:      make(map[Slot]*PlayerInfo, len(s.Players)),
		CreatorID:    s.CreatorID,
		Moves:        s.Board.Moves(),
		Turn:         s.Turn,
		WinnerID:     s.WinnerID,
		WinReason:    s.WinReason,
	}
	for slot, p := range s.Players {
		if p != nil {
			cp := *p
			st.Players[slot] = &cp
		}
	}
	if s.Tournament != nil {
		st.Tournament = s.Tournament.state()
	}
	if len(s.Spectators) > 0 {
		st.Spectators = append([]string(nil), s.Spectators...)
	}
	return st
}
