package game

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playgomoku/backend/internal/config"
	"github.com/playgomoku/backend/internal/models"
	"github.com/playgomoku/backend/internal/wallet"
)

// Reasons recorded on ledger entries.
const (
	ReasonQueueStake     = "queue stake"
	ReasonRoomStake      = "room stake"
	ReasonRematchStake   = "rematch stake"
	ReasonWinPayout      = "win payout"
	ReasonDrawRefund     = "draw refund"
	ReasonQueueCancelled = "queue cancelled"
	ReasonRoomCancelled  = "room cancelled"
	ReasonRoomExpired    = "room expired"
	ReasonRoomStopped    = "room stopped"
)

// Win reasons carried on terminal events and the session row.
const (
	WinByLine       = "five_in_a_row"
	WinByTimeout    = "timeout_forfeit"
	WinByResign     = "resignation"
	WinByDisconnect = "opponent_disconnected"
	OutcomeDraw     = "draw"
	OutcomeCancel   = "cancelled"
)

// settleRetries bounds inline retries when the balance store fails during a
// payout. A payout that still fails is logged for manual reconciliation; the
// ledger holds the escrow entries needed to reconstruct it.
const settleRetries = 3

// completedRetention keeps finished persisted sessions resolvable for
// rematch requests before the sweeper drops them.
const completedRetention = 5 * time.Minute

// Manager owns all matchmaking and session state. A single mutex serializes
// every handler so a check (balance covers stake, cell is free) and its act
// (debit, place stone) cannot interleave with another event for the same
// player or session.
type Manager struct {
	mu sync.Mutex

	queue *queue
	reg   *registry

	wallet   wallet.Store
	store    SessionStore // nil when running without a database
	rdb      *redis.Client
	emitter  Emitter
	presence Presence
	cfg      *config.Config
}

func NewManager(cfg *config.Config, w wallet.Store, store SessionStore, rdb *redis.Client, emitter Emitter, presence Presence) *Manager {
	return &Manager{
		queue:    newQueue(),
		reg:      newRegistry(),
		wallet:   w,
		store:    store,
		rdb:      rdb,
		emitter:  emitter,
		presence: presence,
		cfg:      cfg,
	}
}

func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func generateSessionID() string {
	return "sess_" + generateToken(8)
}

// winnerPayout is floor(pot * (100-rake)%) where pot = stake * 2.
func (m *Manager) winnerPayout(stake int64) int64 {
	pot := stake * 2
	return pot * int64(100-m.cfg.RakePercent) / 100
}

func (m *Manager) validateStake(stake int64) error {
	if stake < 0 || stake < int64(m.cfg.MinStakeAmount) {
		return ErrInvalidStake
	}
	return nil
}

func (m *Manager) validateSeries(mode Mode, seriesLength int) error {
	if mode != ModeTournament {
		return nil
	}
	if seriesLength < 2 || seriesLength > m.cfg.SeriesLengthMax {
		return ErrInvalidSeries
	}
	return nil
}

// JoinQueue escrows the stake and enters the player into the matchmaking
// bucket. When the bucket holds two players they are matched immediately.
func (m *Manager) JoinQueue(ctx context.Context, player *PlayerInfo, key QueueKey) error {
	if err := m.validateStake(key.Stake); err != nil {
		return err
	}
	if key.Mode != ModeStandard && key.Mode != ModeTournament {
		return ErrInvalidMode
	}
	if err := m.validateSeries(key.Mode, key.SeriesLength); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.contains(key, player.ID) {
		// Idempotent re-join: refresh metadata, keep position, no second
		// debit.
		m.queue.add(key, player)
		m.emitter.ToPlayer(player.ID, EventWaitingForOpponent, map[string]any{"stake": key.Stake})
		return nil
	}

	if key.Stake > 0 {
		balance, err := m.wallet.Debit(ctx, player.ID, key.Stake, ReasonQueueStake, "")
		if err != nil {
			if err == wallet.ErrInsufficientFunds {
				return ErrInsufficientCoins
			}
			return err
		}
		m.emitter.ToPlayer(player.ID, EventBalanceUpdated, map[string]any{"balance": balance})
	}

	m.queue.add(key, player)
	log.Printf("[QUEUE] Player %s joined bucket stake=%d tc=%d mode=%s series=%d depth=%d",
		player.ID, key.Stake, key.TimeControl, key.Mode, key.SeriesLength, m.queue.size(key))

	if a, b, ok := m.queue.takePair(key); ok {
		m.startMatchedSession(ctx, a.Player, b.Player, key)
		return nil
	}

	m.emitter.ToPlayer(player.ID, EventWaitingForOpponent, map[string]any{"stake": key.Stake})
	return nil
}

// CancelQueue removes the player's queue entry and refunds the escrowed
// stake. No-op if no entry exists.
func (m *Manager) CancelQueue(ctx context.Context, playerID string, key QueueKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.queue.remove(key, playerID) {
		return nil
	}
	if key.Stake > 0 {
		balance, err := m.wallet.Refund(ctx, playerID, key.Stake, ReasonQueueCancelled, "")
		if err != nil {
			log.Printf("[QUEUE] Refund failed for %s: %v", playerID, err)
			return err
		}
		m.emitter.ToPlayer(playerID, EventBalanceUpdated, map[string]any{"balance": balance})
	}
	log.Printf("[QUEUE] Player %s cancelled bucket stake=%d", playerID, key.Stake)
	return nil
}

// startMatchedSession builds an active persisted session for two dequeued
// players. Caller holds m.mu; both stakes are already escrowed.
func (m *Manager) startMatchedSession(ctx context.Context, black, white *PlayerInfo, key QueueKey) {
	s := newSession(generateSessionID(), key.Stake, key.TimeControl, key.Mode, DurabilityPersisted, key.SeriesLength)
	s.Players[SlotBlack] = black
	s.Players[SlotWhite] = white
	s.Status = StatusActive
	s.StartedAt = time.Now()

	m.reg.put(s)
	m.reg.bind(black.ID, s.ID)
	m.reg.bind(white.ID, s.ID)
	m.emitter.JoinRoom(s.ID, black.ID)
	m.emitter.JoinRoom(s.ID, white.ID)

	m.persistNewSession(ctx, s, true)
	m.saveState(ctx, s)

	log.Printf("[MATCH] Session %s: %s (black) vs %s (white) stake=%d mode=%s",
		s.ID, black.ID, white.ID, s.Stake, s.Mode)
	m.emitter.ToSession(s.ID, EventSessionStart, s.state())
}

// CreateRoom opens a persisted custom room with the creator seated as black,
// waiting for an opponent to join by id.
func (m *Manager) CreateRoom(ctx context.Context, creator *PlayerInfo, stake int64, timeControl int, mode Mode, seriesLength int) (*SessionState, error) {
	if err := m.validateStake(stake); err != nil {
		return nil, err
	}
	if mode != ModeStandard && mode != ModeTournament {
		return nil, ErrInvalidMode
	}
	if err := m.validateSeries(mode, seriesLength); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if stake > 0 {
		balance, err := m.wallet.Debit(ctx, creator.ID, stake, ReasonRoomStake, "")
		if err != nil {
			if err == wallet.ErrInsufficientFunds {
				return nil, ErrInsufficientCoins
			}
			return nil, err
		}
		m.emitter.ToPlayer(creator.ID, EventBalanceUpdated, map[string]any{"balance": balance})
	}

	s := newSession(generateSessionID(), stake, timeControl, mode, DurabilityPersisted, seriesLength)
	s.Players[SlotBlack] = creator
	s.ExpiresAt = time.Now().Add(time.Duration(m.cfg.RoomExpiryMinutes) * time.Minute)

	m.reg.put(s)
	m.reg.bind(creator.ID, s.ID)
	m.emitter.JoinRoom(s.ID, creator.ID)
	m.persistNewSession(ctx, s, false)

	log.Printf("[ROOM] Player %s created room %s stake=%d", creator.ID, s.ID, stake)
	m.emitter.ToPlayer(creator.ID, EventWaitingForOpponent, s.state())
	return s.state(), nil
}

// JoinRoom seats the player as white in a waiting room and starts the game.
func (m *Manager) JoinRoom(ctx context.Context, sessionID string, player *PlayerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	if s.Status != StatusWaiting {
		return ErrSessionNotWaiting
	}
	if s.Players[SlotWhite] != nil {
		return ErrRoomFull
	}
	creator := s.Players[SlotBlack]
	if creator != nil && creator.ID == player.ID {
		return ErrOwnRoom
	}

	if s.Stake > 0 {
		balance, err := m.wallet.Debit(ctx, player.ID, s.Stake, ReasonRoomStake, s.ID)
		if err != nil {
			if err == wallet.ErrInsufficientFunds {
				return ErrInsufficientCoins
			}
			return err
		}
		m.emitter.ToPlayer(player.ID, EventBalanceUpdated, map[string]any{"balance": balance})
	}

	s.Players[SlotWhite] = player
	s.Status = StatusActive
	s.StartedAt = time.Now()
	s.ExpiresAt = time.Time{}

	m.reg.bind(player.ID, s.ID)
	m.emitter.JoinRoom(s.ID, player.ID)

	if m.store != nil && s.Durability == DurabilityPersisted {
		if err := m.store.SessionStarted(ctx, s.ID, player.ID); err != nil {
			log.Printf("[ROOM] Failed to persist session start for %s: %v", s.ID, err)
		}
	}
	m.saveState(ctx, s)

	log.Printf("[ROOM] Player %s joined room %s", player.ID, s.ID)
	m.emitter.ToSession(s.ID, EventSessionStart, s.state())
	return nil
}

// QuitWaitingRoom lets the creator abandon a room nobody joined. The
// escrowed stake is refunded.
func (m *Manager) QuitWaitingRoom(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	if s.Status != StatusWaiting {
		return ErrSessionNotWaiting
	}
	if !s.hasSeat(playerID) {
		return ErrNotInSession
	}
	m.cancelWaitingRoom(ctx, s, ReasonRoomCancelled)
	return nil
}

// cancelWaitingRoom settles a waiting room as CANCELLED: refund every seated
// player and tear the room down. Caller holds m.mu.
func (m *Manager) cancelWaitingRoom(ctx context.Context, s *Session, reason string) {
	if s.settled {
		return
	}
	s.settled = true
	s.Status = StatusCompleted
	s.WinReason = OutcomeCancel
	s.CompletedAt = time.Now()

	if s.Stake > 0 {
		for _, p := range s.Players {
			if p == nil {
				continue
			}
			balance, err := m.refundWithRetry(ctx, p.ID, s.Stake, reason, s.ID)
			if err != nil {
				log.Printf("[SETTLE] Refund failed for %s in %s: %v", p.ID, s.ID, err)
				continue
			}
			m.emitter.ToPlayer(p.ID, EventBalanceUpdated, map[string]any{"balance": balance})
		}
	}
	if m.store != nil && s.Durability == DurabilityPersisted {
		if err := m.store.CompleteSession(ctx, s.ID, "", OutcomeCancel, 0, 0); err != nil {
			log.Printf("[SETTLE] Failed to persist cancellation of %s: %v", s.ID, err)
		}
	}

	m.emitter.ToSession(s.ID, EventRoomClosed, map[string]any{"sessionId": s.ID, "reason": reason})
	m.teardown(ctx, s)
	log.Printf("[ROOM] Room %s cancelled (%s)", s.ID, reason)
}

// CreateLiveRoom opens an ephemeral spectator-visible room. A series length
// above one makes it a best-of-N tournament room; either way it lives only
// in memory and is owned by its creator.
func (m *Manager) CreateLiveRoom(ctx context.Context, creator *PlayerInfo, stake int64, timeControl, seriesLength int) (*SessionState, error) {
	if err := m.validateStake(stake); err != nil {
		return nil, err
	}
	mode := ModeLive
	if seriesLength > 1 {
		mode = ModeTournament
		if err := m.validateSeries(mode, seriesLength); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if stake > 0 {
		balance, err := m.wallet.Debit(ctx, creator.ID, stake, ReasonRoomStake, "")
		if err != nil {
			if err == wallet.ErrInsufficientFunds {
				return nil, ErrInsufficientCoins
			}
			return nil, err
		}
		m.emitter.ToPlayer(creator.ID, EventBalanceUpdated, map[string]any{"balance": balance})
	}

	s := newSession(generateSessionID(), stake, timeControl, mode, DurabilityEphemeral, seriesLength)
	s.Players[SlotBlack] = creator
	s.CreatorID = creator.ID

	m.reg.put(s)
	m.reg.bind(creator.ID, s.ID)
	m.emitter.JoinRoom(s.ID, creator.ID)

	log.Printf("[LIVE] Player %s created live room %s stake=%d series=%d", creator.ID, s.ID, stake, seriesLength)
	m.emitter.ToPlayer(creator.ID, EventWaitingForOpponent, s.state())
	return s.state(), nil
}

// JoinLiveRoom seats the player as white. The room stays in waiting until
// the creator starts it.
func (m *Manager) JoinLiveRoom(ctx context.Context, sessionID string, player *PlayerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil || s.Durability != DurabilityEphemeral {
		return ErrSessionNotFound
	}
	if s.Status != StatusWaiting {
		return ErrSessionNotWaiting
	}
	if s.Players[SlotWhite] != nil {
		return ErrRoomFull
	}
	if s.CreatorID == player.ID {
		return ErrOwnRoom
	}

	if s.Stake > 0 {
		balance, err := m.wallet.Debit(ctx, player.ID, s.Stake, ReasonRoomStake, s.ID)
		if err != nil {
			if err == wallet.ErrInsufficientFunds {
				return ErrInsufficientCoins
			}
			return err
		}
		m.emitter.ToPlayer(player.ID, EventBalanceUpdated, map[string]any{"balance": balance})
	}

	s.Players[SlotWhite] = player
	m.reg.bind(player.ID, s.ID)
	m.emitter.JoinRoom(s.ID, player.ID)

	log.Printf("[LIVE] Player %s joined live room %s", player.ID, s.ID)
	m.emitter.ToSession(s.ID, EventRoomUpdated, s.state())
	return nil
}

// StartLiveRoom flips a fully seated live room to active. Creator only.
func (m *Manager) StartLiveRoom(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil || s.Durability != DurabilityEphemeral {
		return ErrSessionNotFound
	}
	if s.CreatorID != playerID {
		return ErrNotCreator
	}
	if s.Status != StatusWaiting {
		return ErrSessionNotWaiting
	}
	if s.Players[SlotWhite] == nil {
		return ErrOpponentNotPresent
	}

	s.Status = StatusActive
	s.StartedAt = time.Now()
	if s.Tournament != nil {
		s.Turn = s.Tournament.StartingSlot()
	} else {
		s.Turn = SlotBlack
	}

	log.Printf("[LIVE] Live room %s started", s.ID)
	m.emitter.ToSession(s.ID, EventSessionStart, s.state())
	return nil
}

// StopLiveRoom is the creator's graceful shutdown. Unlike a creator
// disconnect, an explicit stop refunds every seated player's stake.
func (m *Manager) StopLiveRoom(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil || s.Durability != DurabilityEphemeral {
		return ErrSessionNotFound
	}
	if s.CreatorID != playerID {
		return ErrNotCreator
	}
	if s.Status == StatusCompleted {
		return ErrAlreadySettled
	}
	m.cancelWaitingRoom(ctx, s, ReasonRoomStopped)
	return nil
}

// JoinSpectator adds a watcher to a live room and sends them the current
// position.
func (m *Manager) JoinSpectator(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	if s.Durability != DurabilityEphemeral {
		return ErrNotLiveRoom
	}

	already := false
	for _, id := range s.Spectators {
		if id == playerID {
			already = true
			break
		}
	}
	if !already {
		s.Spectators = append(s.Spectators, playerID)
		// Spectators get their own index: a watcher may be seated in a
		// ranked session at the same time and that binding must survive.
		m.reg.bindSpectator(playerID, s.ID)
	}
	m.emitter.JoinRoom(s.ID, playerID)

	m.emitter.ToPlayer(playerID, EventSpectatorSnapshot, s.state())
	m.emitter.ToSession(s.ID, EventSpectatorListUpdated, map[string]any{
		"sessionId":  s.ID,
		"spectators": append([]string(nil), s.Spectators...),
	})
	return nil
}

// ApplyMove validates and applies one stone placement, then evaluates
// win/draw/forfeit and tournament progression.
func (m *Manager) ApplyMove(ctx context.Context, sessionID, playerID string, row, col int, autoPlay bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	slot := s.slotOf(playerID)
	if slot == "" {
		return ErrNotInSession
	}
	if s.Status != StatusActive {
		return ErrSessionNotActive
	}
	if s.Tournament != nil && s.Tournament.AwaitingReady {
		return ErrRoundNotStarted
	}
	if s.Turn != slot {
		return ErrNotYourTurn
	}
	if !InBounds(row, col) {
		return ErrInvalidCell
	}
	if s.Board.Occupied(row, col) {
		return ErrCellOccupied
	}

	s.Board.Place(row, col, slot)
	moveNumber := s.Board.StoneCount()
	if m.store != nil && s.Durability == DurabilityPersisted {
		if err := m.store.RecordMove(ctx, &models.GameMove{
			SessionID:  s.ID,
			PlayerID:   playerID,
			MoveNumber: moveNumber,
			Slot:       string(slot),
			Row:        row,
			Col:        col,
			AutoPlay:   autoPlay,
		}); err != nil {
			log.Printf("[MOVE] Failed to record move %d of %s: %v", moveNumber, s.ID, err)
		}
	}

	if s.Board.WinningMove(row, col, slot) {
		m.finishRound(ctx, s, slot, WinByLine)
		return nil
	}
	if s.Board.Full() {
		m.finishDrawnRound(ctx, s)
		return nil
	}

	s.Turn = slot.Other()
	if autoPlay {
		s.Timeouts[slot]++
		if s.Timeouts[slot] >= m.cfg.TimeoutForfeitLimit {
			log.Printf("[MOVE] Player %s forfeits %s after %d auto-play moves", playerID, s.ID, s.Timeouts[slot])
			m.settleWin(ctx, s, slot.Other(), WinByTimeout)
			return nil
		}
	}

	m.emitter.ToSession(s.ID, EventMoveApplied, map[string]any{
		"sessionId":  s.ID,
		"stone":      Stone{Row: row, Col: col, Slot: slot},
		"moveNumber": moveNumber,
		"turn":       s.Turn,
		"autoPlay":   autoPlay,
	})
	m.saveState(ctx, s)
	return nil
}

// finishRound handles a won board. Outside a tournament that ends the
// session; inside one it advances the series and only settles when the
// series is decided.
func (m *Manager) finishRound(ctx context.Context, s *Session, winner Slot, reason string) {
	if s.Tournament == nil {
		m.settleWin(ctx, s, winner, reason)
		return
	}

	over, seriesWinner := s.Tournament.RecordRoundWin(winner)
	if over {
		if seriesWinner == "" {
			m.settleDraw(ctx, s)
			return
		}
		m.settleWin(ctx, s, seriesWinner, reason)
		return
	}

	winnerInfo := s.Players[winner]
	m.emitter.ToSession(s.ID, EventRoundOver, map[string]any{
		"sessionId":   s.ID,
		"winnerSlot":  winner,
		"winnerId":    winnerInfo.ID,
		"reason":      reason,
		"score":       s.Tournament.state().Score,
		"roundNumber": s.Tournament.RoundNumber,
	})

	s.resetRound()
	s.Turn = s.Tournament.NextRound()
	if m.store != nil && s.Durability == DurabilityPersisted {
		t := s.Tournament
		if err := m.store.UpdateProgress(ctx, s.ID, t.RoundNumber, t.Score[SlotBlack], t.Score[SlotWhite]); err != nil {
			log.Printf("[SERIES] Failed to persist progress of %s: %v", s.ID, err)
		}
	}
	m.saveState(ctx, s)
}

// finishDrawnRound handles a full board. In a tournament a drawn round
// scores nothing and the series moves on unless all rounds are played.
func (m *Manager) finishDrawnRound(ctx context.Context, s *Session) {
	if s.Tournament == nil {
		m.settleDraw(ctx, s)
		return
	}
	t := s.Tournament
	if t.RoundNumber >= t.TotalRounds {
		m.settleDraw(ctx, s)
		return
	}

	m.emitter.ToSession(s.ID, EventRoundOver, map[string]any{
		"sessionId":   s.ID,
		"winnerSlot":  "",
		"reason":      OutcomeDraw,
		"score":       t.state().Score,
		"roundNumber": t.RoundNumber,
	})
	s.resetRound()
	s.Turn = t.NextRound()
	if m.store != nil && s.Durability == DurabilityPersisted {
		if err := m.store.UpdateProgress(ctx, s.ID, t.RoundNumber, t.Score[SlotBlack], t.Score[SlotWhite]); err != nil {
			log.Printf("[SERIES] Failed to persist progress of %s: %v", s.ID, err)
		}
	}
	m.saveState(ctx, s)
}

// MarkReady signals a player is ready for the next tournament round. Once
// both seats signal, the round starts.
func (m *Manager) MarkReady(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	slot := s.slotOf(playerID)
	if slot == "" {
		return ErrNotInSession
	}
	if s.Status != StatusActive || s.Tournament == nil {
		return ErrSessionNotActive
	}

	if s.Tournament.MarkReady(slot) {
		m.emitter.ToSession(s.ID, EventRoundStart, map[string]any{
			"sessionId":   s.ID,
			"roundNumber": s.Tournament.RoundNumber,
			"turn":        s.Turn,
			"score":       s.Tournament.state().Score,
		})
		m.saveState(ctx, s)
	}
	return nil
}

// Resign forfeits the game (and any series) to the opponent.
func (m *Manager) Resign(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	slot := s.slotOf(playerID)
	if slot == "" {
		return ErrNotInSession
	}
	if s.Status != StatusActive {
		return ErrSessionNotActive
	}

	log.Printf("[GAME] Player %s resigned session %s", playerID, s.ID)
	m.settleWin(ctx, s, slot.Other(), WinByResign)
	return nil
}

// HandleDisconnect routes an abrupt connection loss. Every branch is
// best-effort: peers are notified if possible but local cleanup always runs.
func (m *Manager) HandleDisconnect(ctx context.Context, playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.queue.removeEverywhere(playerID) {
		if key.Stake == 0 {
			continue
		}
		if _, err := m.refundWithRetry(ctx, playerID, key.Stake, ReasonQueueCancelled, ""); err != nil {
			log.Printf("[DISCONNECT] Queue refund failed for %s: %v", playerID, err)
		}
	}

	// Spectated rooms just lose the watcher; the seated session, if any, is
	// routed separately below.
	if sp := m.reg.spectatedSession(playerID); sp != nil {
		m.removeSpectator(sp, playerID)
	}

	s := m.reg.sessionFor(playerID)
	if s == nil {
		return
	}

	switch {
	case s.Status == StatusWaiting:
		m.disconnectFromWaiting(ctx, s, playerID)
	case s.Status == StatusActive && s.Durability == DurabilityPersisted:
		slot := s.slotOf(playerID)
		winner := s.Players[slot.Other()]
		log.Printf("[DISCONNECT] Player %s left active session %s, %s wins by forfeit", playerID, s.ID, winner.ID)
		m.emitter.ToPlayer(winner.ID, EventOpponentDisconnected, map[string]any{"sessionId": s.ID})
		m.settleWin(ctx, s, slot.Other(), WinByDisconnect)
	case s.Status == StatusActive && s.CreatorID == playerID:
		// Creator left a running live room: the room dies with them. Stakes
		// stay escrowed; nothing is settled.
		log.Printf("[DISCONNECT] Live room %s destroyed, creator %s disconnected", s.ID, playerID)
		s.Status = StatusCompleted
		s.settled = true
		m.emitter.ToSession(s.ID, EventRoomClosed, map[string]any{"sessionId": s.ID, "reason": "creator_disconnected"})
		m.teardown(ctx, s)
	case s.Status == StatusActive:
		// Opponent left a running live room: the room survives and goes
		// back to waiting for a fresh challenger.
		log.Printf("[DISCONNECT] Player %s left live room %s, reverting to waiting", playerID, s.ID)
		s.Players[SlotWhite] = nil
		s.Status = StatusWaiting
		s.resetRound()
		s.Turn = SlotBlack
		if s.Tournament != nil {
			s.Tournament = NewTournament(s.SeriesLength)
		}
		m.reg.unbind(playerID, s.ID)
		m.emitter.LeaveRoom(s.ID, playerID)
		m.emitter.ToSession(s.ID, EventOpponentLeft, map[string]any{"sessionId": s.ID, "playerId": playerID})
	}
}

// disconnectFromWaiting handles a seat dropping out of a not-yet-started
// room. Persisted rooms are cancelled with a refund; an ephemeral room dies
// unrefunded when its creator leaves, and just frees the seat otherwise.
func (m *Manager) disconnectFromWaiting(ctx context.Context, s *Session, playerID string) {
	if s.Durability == DurabilityPersisted {
		m.cancelWaitingRoom(ctx, s, ReasonRoomCancelled)
		return
	}
	if s.CreatorID == playerID {
		log.Printf("[DISCONNECT] Waiting live room %s destroyed, creator left", s.ID)
		s.Status = StatusCompleted
		s.settled = true
		m.emitter.ToSession(s.ID, EventRoomClosed, map[string]any{"sessionId": s.ID, "reason": "creator_disconnected"})
		m.teardown(ctx, s)
		return
	}
	slot := s.slotOf(playerID)
	s.Players[slot] = nil
	m.reg.unbind(playerID, s.ID)
	m.emitter.LeaveRoom(s.ID, playerID)
	m.emitter.ToSession(s.ID, EventOpponentLeft, map[string]any{"sessionId": s.ID, "playerId": playerID})
}

func (m *Manager) removeSpectator(s *Session, playerID string) {
	for i, id := range s.Spectators {
		if id == playerID {
			s.Spectators = append(s.Spectators[:i], s.Spectators[i+1:]...)
			break
		}
	}
	m.reg.unbindSpectator(playerID, s.ID)
	m.emitter.LeaveRoom(s.ID, playerID)
	m.emitter.ToSession(s.ID, EventSpectatorListUpdated, map[string]any{
		"sessionId":  s.ID,
		"spectators": append([]string(nil), s.Spectators...),
	})
}

// HandleReconnect re-attaches a returning player to their session, if any,
// and replays the current state to them.
func (m *Manager) HandleReconnect(ctx context.Context, playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.sessionFor(playerID)
	if s == nil {
		return
	}
	m.emitter.JoinRoom(s.ID, playerID)
	m.emitter.ToPlayer(playerID, EventSessionStart, s.state())
}

// RequestRematch asks the opponent of a finished persisted session for a
// rematch.
func (m *Manager) RequestRematch(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	slot := s.slotOf(playerID)
	if slot == "" {
		return ErrNotInSession
	}
	if s.Status != StatusCompleted || s.Durability != DurabilityPersisted {
		return ErrSessionNotActive
	}
	opponent := s.opponentOf(slot)
	if opponent == nil || !m.presence.Connected(opponent.ID) {
		m.emitter.ToPlayer(playerID, EventRematchFailed, map[string]any{"sessionId": s.ID, "reason": "opponent_offline"})
		return ErrOpponentNotPresent
	}

	s.rematchFrom = playerID
	m.emitter.ToPlayer(opponent.ID, EventRematchRequested, map[string]any{
		"sessionId": s.ID,
		"from":      playerID,
		"stake":     s.Stake,
	})
	return nil
}

// RespondRematch accepts or declines a pending rematch. Acceptance escrows
// both stakes and starts a fresh session with colors swapped.
func (m *Manager) RespondRematch(ctx context.Context, sessionID, playerID string, accepted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.reg.get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	slot := s.slotOf(playerID)
	if slot == "" {
		return ErrNotInSession
	}
	if s.rematchFrom == "" || s.rematchFrom == playerID {
		return ErrNoRematchPending
	}
	requesterID := s.rematchFrom
	s.rematchFrom = ""

	if !accepted {
		m.emitter.ToPlayer(requesterID, EventRematchDeclined, map[string]any{"sessionId": s.ID})
		return nil
	}

	// Colors swap: the old white seat opens the rematch as black.
	oldBlack, oldWhite := s.Players[SlotBlack], s.Players[SlotWhite]
	newBlack, newWhite := oldWhite, oldBlack

	if s.Stake > 0 {
		balA, err := m.wallet.Debit(ctx, newBlack.ID, s.Stake, ReasonRematchStake, "")
		if err != nil {
			m.notifyRematchFailed(s, requesterID, playerID)
			if err == wallet.ErrInsufficientFunds {
				return ErrInsufficientCoins
			}
			return err
		}
		balB, err := m.wallet.Debit(ctx, newWhite.ID, s.Stake, ReasonRematchStake, "")
		if err != nil {
			// Give the first debit back so nobody is left short.
			if _, rerr := m.refundWithRetry(ctx, newBlack.ID, s.Stake, ReasonRoomCancelled, ""); rerr != nil {
				log.Printf("[REMATCH] Failed to unwind stake for %s: %v", newBlack.ID, rerr)
			}
			m.notifyRematchFailed(s, requesterID, playerID)
			if err == wallet.ErrInsufficientFunds {
				return ErrInsufficientCoins
			}
			return err
		}
		m.emitter.ToPlayer(newBlack.ID, EventBalanceUpdated, map[string]any{"balance": balA})
		m.emitter.ToPlayer(newWhite.ID, EventBalanceUpdated, map[string]any{"balance": balB})
	}

	m.teardown(ctx, s)
	key := QueueKey{Stake: s.Stake, TimeControl: s.TimeControl, Mode: s.Mode, SeriesLength: s.SeriesLength}
	m.startMatchedSession(ctx, newBlack, newWhite, key)
	return nil
}

func (m *Manager) notifyRematchFailed(s *Session, requesterID, responderID string) {
	payload := map[string]any{"sessionId": s.ID, "reason": "stake_unavailable"}
	m.emitter.ToPlayer(requesterID, EventRematchFailed, payload)
	m.emitter.ToPlayer(responderID, EventRematchFailed, payload)
}

// settleWin is the single WIN settlement path. Guarded so a second terminal
// event for the same session is dropped, never re-applied.
func (m *Manager) settleWin(ctx context.Context, s *Session, winner Slot, reason string) {
	if s.settled || s.Status == StatusCompleted {
		log.Printf("[SETTLE] Dropping duplicate settlement attempt for %s", s.ID)
		return
	}
	s.settled = true
	s.Status = StatusCompleted
	s.CompletedAt = time.Now()

	winnerInfo := s.Players[winner]
	loserInfo := s.Players[winner.Other()]
	s.WinnerID = winnerInfo.ID
	s.WinReason = reason

	payout := int64(0)
	if s.Stake > 0 {
		payout = m.winnerPayout(s.Stake)
		balance, err := m.creditWithRetry(ctx, winnerInfo.ID, payout, ReasonWinPayout, s.ID)
		if err != nil {
			log.Printf("[SETTLE] Payout of %d to %s for %s failed permanently, needs manual reconciliation: %v",
				payout, winnerInfo.ID, s.ID, err)
		} else {
			m.emitter.ToPlayer(winnerInfo.ID, EventBalanceUpdated, map[string]any{"balance": balance})
		}
	}
	if loserInfo != nil {
		if err := m.wallet.RecordWin(ctx, winnerInfo.ID, loserInfo.ID); err != nil {
			log.Printf("[SETTLE] Failed to record result of %s: %v", s.ID, err)
		}
	}
	m.persistCompletion(ctx, s)

	m.emitter.ToSession(s.ID, EventSessionOver, map[string]any{
		"sessionId":  s.ID,
		"winnerId":   winnerInfo.ID,
		"winnerSlot": winner,
		"reason":     reason,
		"payout":     payout,
	})
	if s.Tournament != nil {
		m.emitter.ToSession(s.ID, EventSeriesOver, map[string]any{
			"sessionId": s.ID,
			"winnerId":  winnerInfo.ID,
			"score":     s.Tournament.state().Score,
		})
	}
	log.Printf("[SETTLE] Session %s won by %s (%s) payout=%d", s.ID, winnerInfo.ID, reason, payout)
	m.finishSession(ctx, s)
}

// settleDraw refunds both stakes and records a draw for both players.
func (m *Manager) settleDraw(ctx context.Context, s *Session) {
	if s.settled || s.Status == StatusCompleted {
		log.Printf("[SETTLE] Dropping duplicate settlement attempt for %s", s.ID)
		return
	}
	s.settled = true
	s.Status = StatusCompleted
	s.CompletedAt = time.Now()
	s.WinReason = OutcomeDraw

	black, white := s.Players[SlotBlack], s.Players[SlotWhite]
	if s.Stake > 0 {
		for _, p := range []*PlayerInfo{black, white} {
			if p == nil {
				continue
			}
			balance, err := m.refundWithRetry(ctx, p.ID, s.Stake, ReasonDrawRefund, s.ID)
			if err != nil {
				log.Printf("[SETTLE] Draw refund to %s for %s failed permanently, needs manual reconciliation: %v",
					p.ID, s.ID, err)
				continue
			}
			m.emitter.ToPlayer(p.ID, EventBalanceUpdated, map[string]any{"balance": balance})
		}
	}
	if black != nil && white != nil {
		if err := m.wallet.RecordDraw(ctx, black.ID, white.ID); err != nil {
			log.Printf("[SETTLE] Failed to record draw of %s: %v", s.ID, err)
		}
	}
	m.persistCompletion(ctx, s)

	m.emitter.ToSession(s.ID, EventSessionOver, map[string]any{
		"sessionId": s.ID,
		"winnerId":  "",
		"reason":    OutcomeDraw,
	})
	log.Printf("[SETTLE] Session %s drawn, stakes refunded", s.ID)
	m.finishSession(ctx, s)
}

func (m *Manager) creditWithRetry(ctx context.Context, playerID string, amount int64, reason, sessionID string) (int64, error) {
	var balance int64
	var err error
	for attempt := 0; attempt < settleRetries; attempt++ {
		balance, err = m.wallet.Credit(ctx, playerID, amount, reason, sessionID)
		if err == nil {
			return balance, nil
		}
		log.Printf("[SETTLE] Credit attempt %d for %s failed: %v", attempt+1, playerID, err)
	}
	return 0, err
}

func (m *Manager) refundWithRetry(ctx context.Context, playerID string, amount int64, reason, sessionID string) (int64, error) {
	var balance int64
	var err error
	for attempt := 0; attempt < settleRetries; attempt++ {
		balance, err = m.wallet.Refund(ctx, playerID, amount, reason, sessionID)
		if err == nil {
			return balance, nil
		}
		log.Printf("[SETTLE] Refund attempt %d for %s failed: %v", attempt+1, playerID, err)
	}
	return 0, err
}

func (m *Manager) persistNewSession(ctx context.Context, s *Session, started bool) {
	if m.store == nil || s.Durability != DurabilityPersisted {
		return
	}
	rec := &models.GameSession{
		ID:           s.ID,
		BlackID:      s.Players[SlotBlack].ID,
		StakeAmount:  s.Stake,
		TimeControl:  s.TimeControl,
		Mode:         string(s.Mode),
		SeriesLength: s.SeriesLength,
		Status:       string(s.Status),
		RoundNumber:  1,
		CreatedAt:    s.CreatedAt,
	}
	if white := s.Players[SlotWhite]; white != nil {
		rec.WhiteID = sql.NullString{String: white.ID, Valid: true}
	}
	if started {
		rec.StartedAt = sql.NullTime{Time: s.StartedAt, Valid: true}
	}
	if !s.ExpiresAt.IsZero() {
		rec.ExpiresAt = sql.NullTime{Time: s.ExpiresAt, Valid: true}
	}
	if err := m.store.CreateSession(ctx, rec); err != nil {
		log.Printf("[SESSION] Failed to persist session %s: %v", s.ID, err)
	}
}

func (m *Manager) persistCompletion(ctx context.Context, s *Session) {
	if m.store == nil || s.Durability != DurabilityPersisted {
		return
	}
	scoreBlack, scoreWhite := 0, 0
	if s.Tournament != nil {
		scoreBlack = s.Tournament.Score[SlotBlack]
		scoreWhite = s.Tournament.Score[SlotWhite]
	}
	if err := m.store.CompleteSession(ctx, s.ID, s.WinnerID, s.WinReason, scoreBlack, scoreWhite); err != nil {
		log.Printf("[SETTLE] Failed to persist completion of %s: %v", s.ID, err)
	}
}

// finishSession cleans up after a terminal settlement. Persisted sessions
// linger in the registry for a while so rematch requests can resolve them;
// ephemeral sessions are destroyed immediately.
func (m *Manager) finishSession(ctx context.Context, s *Session) {
	deleteSnapshot(ctx, m.rdb, s.ID)
	for _, p := range s.Players {
		if p != nil {
			m.reg.unbind(p.ID, s.ID)
		}
	}
	if s.Durability == DurabilityEphemeral {
		m.teardown(ctx, s)
	}
}

// teardown removes a session from the registry and its room from the hub.
func (m *Manager) teardown(ctx context.Context, s *Session) {
	deleteSnapshot(ctx, m.rdb, s.ID)
	for _, p := range s.Players {
		if p != nil {
			m.emitter.LeaveRoom(s.ID, p.ID)
		}
	}
	for _, spec := range s.Spectators {
		m.emitter.LeaveRoom(s.ID, spec)
	}
	m.reg.drop(s)
}

// saveState mirrors persisted sessions to redis. Caller holds m.mu.
func (m *Manager) saveState(ctx context.Context, s *Session) {
	if s.Durability != DurabilityPersisted {
		return
	}
	if err := saveSnapshot(ctx, m.rdb, s.state()); err != nil {
		log.Printf("[SNAPSHOT] Failed to save state of %s: %v", s.ID, err)
	}
}

// LiveRooms lists ephemeral rooms for the lobby, newest first.
func (m *Manager) LiveRooms() []*SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := m.reg.liveRooms()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	out := make([]*SessionState, 0, len(rooms))
	for _, s := range rooms {
		out = append(out, s.state())
	}
	return out
}

// SessionState returns the current state of a session, falling back to the
// redis snapshot for sessions this process no longer holds.
func (m *Manager) SessionState(ctx context.Context, sessionID string) (*SessionState, error) {
	m.mu.Lock()
	s := m.reg.get(sessionID)
	if s != nil {
		st := s.state()
		m.mu.Unlock()
		return st, nil
	}
	m.mu.Unlock()

	st, err := loadSnapshot(ctx, m.rdb, sessionID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

// QueueDepths reports bucket sizes, for the health endpoint.
func (m *Manager) QueueDepths() map[QueueKey]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[QueueKey]int, len(m.queue.buckets))
	for key, bucket := range m.queue.buckets {
		out[key] = len(bucket)
	}
	return out
}

// ActiveSessionCount reports how many sessions are currently registered.
func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reg.sessions)
}
