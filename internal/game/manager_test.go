package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/playgomoku/backend/internal/config"
	"github.com/playgomoku/backend/internal/wallet"
)

// recorder captures emitted events so tests can assert on what clients
// would have seen.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	scope   string // "session:<id>" or "player:<id>"
	event   string
	payload any
}

func (r *recorder) JoinRoom(string, string)  {}
func (r *recorder) LeaveRoom(string, string) {}

func (r *recorder) ToSession(sessionID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{"session:" + sessionID, event, payload})
}

func (r *recorder) ToPlayer(playerID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{"player:" + playerID, event, payload})
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (r *recorder) last(event string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].event == event {
			return r.events[i], true
		}
	}
	return recordedEvent{}, false
}

type fakePresence struct{ offline map[string]bool }

func (f *fakePresence) Connected(playerID string) bool { return !f.offline[playerID] }

func testConfig() *config.Config {
	return &config.Config{
		RakePercent:         10,
		TimeoutForfeitLimit: 5,
		RoomExpiryMinutes:   10,
		SeriesLengthMax:     9,
	}
}

func newTestManager(t *testing.T) (*Manager, *wallet.MemStore, *recorder) {
	t.Helper()
	w := wallet.NewMemStore()
	rec := &recorder{}
	m := NewManager(testConfig(), w, nil, nil, rec, &fakePresence{})
	return m, w, rec
}

func player(id string) *PlayerInfo {
	return &PlayerInfo{ID: id, DisplayName: "Player " + id}
}

func stdKey(stake int64) QueueKey {
	return QueueKey{Stake: stake, TimeControl: 30, Mode: ModeStandard, SeriesLength: 1}
}

// matchPair queues two funded players and returns their session.
func matchPair(t *testing.T, m *Manager, w *wallet.MemStore, stake int64) *Session {
	t.Helper()
	ctx := context.Background()
	w.SetBalance("p1", 1000+stake)
	w.SetBalance("p2", 1000+stake)
	if err := m.JoinQueue(ctx, player("p1"), stdKey(stake)); err != nil {
		t.Fatalf("JoinQueue p1: %v", err)
	}
	if err := m.JoinQueue(ctx, player("p2"), stdKey(stake)); err != nil {
		t.Fatalf("JoinQueue p2: %v", err)
	}
	s := m.reg.sessionFor("p1")
	if s == nil {
		t.Fatal("no session created after two queue joins")
	}
	return s
}

// playWin drives black to a horizontal five-in-a-row.
func playWin(t *testing.T, m *Manager, s *Session) {
	t.Helper()
	ctx := context.Background()
	black := s.Players[SlotBlack].ID
	white := s.Players[SlotWhite].ID
	for i := 0; i < 4; i++ {
		if err := m.ApplyMove(ctx, s.ID, black, 0, i, false); err != nil {
			t.Fatalf("black move %d: %v", i, err)
		}
		if err := m.ApplyMove(ctx, s.ID, white, 1, i, false); err != nil {
			t.Fatalf("white move %d: %v", i, err)
		}
	}
	if err := m.ApplyMove(ctx, s.ID, black, 0, 4, false); err != nil {
		t.Fatalf("winning move: %v", err)
	}
}

func TestQueueMatchCreatesActiveSession(t *testing.T) {
	m, w, rec := newTestManager(t)
	s := matchPair(t, m, w, 100)

	if s.Status != StatusActive {
		t.Errorf("status = %s, want active", s.Status)
	}
	if s.Players[SlotBlack].ID != "p1" || s.Players[SlotWhite].ID != "p2" {
		t.Error("slots not assigned in FIFO order")
	}
	if s.Turn != SlotBlack {
		t.Error("black should open the game")
	}
	if rec.count(EventSessionStart) != 1 {
		t.Errorf("session_start emitted %d times, want 1", rec.count(EventSessionStart))
	}

	// Both stakes escrowed.
	for _, id := range []string{"p1", "p2"} {
		bal, _ := w.Balance(context.Background(), id)
		if bal != 1000 {
			t.Errorf("balance of %s = %d, want 1000", id, bal)
		}
	}
}

func TestJoinQueueInsufficientBalance(t *testing.T) {
	m, w, _ := newTestManager(t)
	w.SetBalance("p1", 50)

	err := m.JoinQueue(context.Background(), player("p1"), stdKey(100))
	if err != ErrInsufficientCoins {
		t.Fatalf("err = %v, want ErrInsufficientCoins", err)
	}
	if m.queue.contains(stdKey(100), "p1") {
		t.Error("player entered queue despite failed debit")
	}
	if len(w.Ledger()) != 0 {
		t.Error("failed join wrote a ledger entry")
	}
}

func TestJoinQueueRejoinDebitsOnce(t *testing.T) {
	m, w, _ := newTestManager(t)
	w.SetBalance("p1", 500)
	ctx := context.Background()
	key := stdKey(100)

	if err := m.JoinQueue(ctx, player("p1"), key); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := m.JoinQueue(ctx, player("p1"), key); err != nil {
		t.Fatalf("re-join: %v", err)
	}

	bal, _ := w.Balance(ctx, "p1")
	if bal != 400 {
		t.Errorf("balance = %d, want 400 (exactly one debit)", bal)
	}
	if m.queue.size(key) != 1 {
		t.Errorf("queue depth = %d, want 1", m.queue.size(key))
	}
}

func TestCancelQueueRefunds(t *testing.T) {
	m, w, _ := newTestManager(t)
	w.SetBalance("p1", 500)
	ctx := context.Background()
	key := stdKey(100)

	if err := m.JoinQueue(ctx, player("p1"), key); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := m.CancelQueue(ctx, "p1", key); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	bal, _ := w.Balance(ctx, "p1")
	if bal != 500 {
		t.Errorf("balance = %d, want 500 after refund", bal)
	}
	// Cancel with no entry is a no-op.
	if err := m.CancelQueue(ctx, "p1", key); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if bal, _ := w.Balance(ctx, "p1"); bal != 500 {
		t.Error("no-op cancel changed the balance")
	}
}

func TestWinPaysRakedPot(t *testing.T) {
	m, w, rec := newTestManager(t)
	s := matchPair(t, m, w, 1000)
	playWin(t, m, s)

	ctx := context.Background()
	// Pot 2000, 10% rake: winner gains 1800 over their post-escrow balance.
	winBal, _ := w.Balance(ctx, "p1")
	if winBal != 1000+1800 {
		t.Errorf("winner balance = %d, want 2800", winBal)
	}
	loseBal, _ := w.Balance(ctx, "p2")
	if loseBal != 1000 {
		t.Errorf("loser balance = %d, want 1000", loseBal)
	}

	e, ok := rec.last(EventSessionOver)
	if !ok {
		t.Fatal("no session_over emitted")
	}
	payload := e.payload.(map[string]any)
	if payload["winnerId"] != "p1" || payload["reason"] != WinByLine {
		t.Errorf("session_over payload = %v", payload)
	}
	if s.Status != StatusCompleted {
		t.Error("session not completed after win")
	}
}

func TestMoveValidation(t *testing.T) {
	m, w, _ := newTestManager(t)
	s := matchPair(t, m, w, 0)
	ctx := context.Background()

	if err := m.ApplyMove(ctx, s.ID, "p2", 0, 0, false); err != ErrNotYourTurn {
		t.Errorf("out-of-turn move: err = %v, want ErrNotYourTurn", err)
	}
	if err := m.ApplyMove(ctx, s.ID, "p1", -1, 5, false); err != ErrInvalidCell {
		t.Errorf("off-board move: err = %v, want ErrInvalidCell", err)
	}
	if err := m.ApplyMove(ctx, s.ID, "p1", 3, 3, false); err != nil {
		t.Fatalf("legal move: %v", err)
	}
	if err := m.ApplyMove(ctx, s.ID, "p2", 3, 3, false); err != ErrCellOccupied {
		t.Errorf("occupied cell: err = %v, want ErrCellOccupied", err)
	}
	// Rejected move left the turn with white.
	if s.Turn != SlotWhite {
		t.Error("turn moved despite rejected move")
	}
	if err := m.ApplyMove(ctx, s.ID, "stranger", 4, 4, false); err != ErrNotInSession {
		t.Errorf("outsider move: err = %v, want ErrNotInSession", err)
	}
}

func TestTimeoutForfeit(t *testing.T) {
	m, w, rec := newTestManager(t)
	s := matchPair(t, m, w, 100)
	ctx := context.Background()

	// Black's client auto-plays five times; white answers normally.
	for i := 0; i < 4; i++ {
		if err := m.ApplyMove(ctx, s.ID, "p1", 10, i*2, true); err != nil {
			t.Fatalf("auto-play %d: %v", i, err)
		}
		if err := m.ApplyMove(ctx, s.ID, "p2", 11, i*2, false); err != nil {
			t.Fatalf("white reply %d: %v", i, err)
		}
	}
	if err := m.ApplyMove(ctx, s.ID, "p1", 10, 9, true); err != nil {
		t.Fatalf("fifth auto-play: %v", err)
	}

	if s.Status != StatusCompleted {
		t.Fatal("session not completed after forfeit threshold")
	}
	e, _ := rec.last(EventSessionOver)
	payload := e.payload.(map[string]any)
	if payload["winnerId"] != "p2" || payload["reason"] != WinByTimeout {
		t.Errorf("session_over payload = %v, want timeout forfeit for p2", payload)
	}

	winBal, _ := w.Balance(ctx, "p2")
	if winBal != 1000+180 {
		t.Errorf("forfeit winner balance = %d, want 1180", winBal)
	}
}

func TestResign(t *testing.T) {
	m, w, rec := newTestManager(t)
	s := matchPair(t, m, w, 100)
	ctx := context.Background()

	if err := m.Resign(ctx, s.ID, "p1"); err != nil {
		t.Fatalf("resign: %v", err)
	}
	e, _ := rec.last(EventSessionOver)
	payload := e.payload.(map[string]any)
	if payload["winnerId"] != "p2" || payload["reason"] != WinByResign {
		t.Errorf("session_over payload = %v", payload)
	}
	// Resigning a finished session is rejected, not re-settled.
	if err := m.Resign(ctx, s.ID, "p2"); err != ErrSessionNotActive {
		t.Errorf("second resign: err = %v, want ErrSessionNotActive", err)
	}
}

func TestDisconnectSettlesOnce(t *testing.T) {
	m, w, rec := newTestManager(t)
	s := matchPair(t, m, w, 1000)
	ctx := context.Background()

	m.HandleDisconnect(ctx, "p2")
	m.HandleDisconnect(ctx, "p2")

	if s.Status != StatusCompleted {
		t.Fatal("session not completed after disconnect")
	}
	if got := rec.count(EventSessionOver); got != 1 {
		t.Errorf("session_over emitted %d times, want exactly 1", got)
	}
	winBal, _ := w.Balance(ctx, "p1")
	if winBal != 1000+1800 {
		t.Errorf("winner balance = %d, want 2800 (single payout)", winBal)
	}

	// Winner's ledger: one DEBIT, one CREDIT, nothing more.
	entries := w.LedgerFor("p1")
	if len(entries) != 2 {
		t.Fatalf("winner ledger has %d entries, want 2", len(entries))
	}
	if entries[0].TxType != wallet.TxDebit || entries[1].TxType != wallet.TxCredit {
		t.Errorf("winner ledger = %v %v", entries[0].TxType, entries[1].TxType)
	}
}

func TestDisconnectWhileSpectatingSettlesRankedSession(t *testing.T) {
	m, w, rec := newTestManager(t)
	ctx := context.Background()
	s := matchPair(t, m, w, 1000)

	// p2 wanders off to watch a live room mid-game.
	w.SetBalance("host", 100)
	live, err := m.CreateLiveRoom(ctx, player("host"), 0, 30, 1)
	if err != nil {
		t.Fatalf("create live room: %v", err)
	}
	if err := m.JoinSpectator(ctx, live.ID, "p2"); err != nil {
		t.Fatalf("spectate: %v", err)
	}

	m.HandleDisconnect(ctx, "p2")

	if s.Status != StatusCompleted {
		t.Fatal("ranked session not settled after the seated player disconnected")
	}
	if s.WinnerID != "p1" || s.WinReason != WinByDisconnect {
		t.Errorf("outcome = %s/%s, want p1 wins by disconnect", s.WinnerID, s.WinReason)
	}
	if got := rec.count(EventSessionOver); got != 1 {
		t.Errorf("session_over emitted %d times, want exactly 1", got)
	}
	winBal, _ := w.Balance(ctx, "p1")
	if winBal != 1000+1800 {
		t.Errorf("remaining player's balance = %d, want 2800", winBal)
	}
	if room := m.reg.get(live.ID); room != nil && len(room.Spectators) != 0 {
		t.Errorf("spectator list = %v, want empty", room.Spectators)
	}
}

func TestDisconnectFromQueueRefunds(t *testing.T) {
	m, w, _ := newTestManager(t)
	w.SetBalance("p1", 500)
	ctx := context.Background()

	if err := m.JoinQueue(ctx, player("p1"), stdKey(200)); err != nil {
		t.Fatalf("join: %v", err)
	}
	m.HandleDisconnect(ctx, "p1")

	bal, _ := w.Balance(ctx, "p1")
	if bal != 500 {
		t.Errorf("balance = %d, want 500 after disconnect refund", bal)
	}
	if m.queue.contains(stdKey(200), "p1") {
		t.Error("queue entry survived disconnect")
	}
}

func TestTournamentSeries(t *testing.T) {
	m, w, rec := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("p1", 2000)
	w.SetBalance("p2", 2000)
	key := QueueKey{Stake: 1000, TimeControl: 30, Mode: ModeTournament, SeriesLength: 3}

	if err := m.JoinQueue(ctx, player("p1"), key); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if err := m.JoinQueue(ctx, player("p2"), key); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	s := m.reg.sessionFor("p1")
	if s == nil || s.Tournament == nil {
		t.Fatal("tournament session not created")
	}

	// Round 1: black wins.
	playWin(t, m, s)
	if s.Status != StatusActive {
		t.Fatal("series ended after one round of best-of-three")
	}
	if rec.count(EventRoundOver) != 1 {
		t.Errorf("round_over emitted %d times, want 1", rec.count(EventRoundOver))
	}
	if s.Tournament.RoundNumber != 2 || s.Turn != SlotWhite {
		t.Errorf("round %d opener %s, want round 2 opened by white", s.Tournament.RoundNumber, s.Turn)
	}

	// Moves are gated until both players are ready.
	if err := m.ApplyMove(ctx, s.ID, "p2", 5, 5, false); err != ErrRoundNotStarted {
		t.Errorf("move before ready: err = %v, want ErrRoundNotStarted", err)
	}
	if err := m.MarkReady(ctx, s.ID, "p1"); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := m.MarkReady(ctx, s.ID, "p2"); err != nil {
		t.Fatalf("ready p2: %v", err)
	}
	if rec.count(EventRoundStart) != 1 {
		t.Errorf("round_start emitted %d times, want 1", rec.count(EventRoundStart))
	}

	// A stray ready signal mid-round must not restart the round.
	if err := m.MarkReady(ctx, s.ID, "p1"); err != nil {
		t.Fatalf("stray ready: %v", err)
	}
	if rec.count(EventRoundStart) != 1 {
		t.Errorf("round_start re-emitted after a stray ready signal")
	}

	// Round 2: white opens, black still wins the round.
	if err := m.ApplyMove(ctx, s.ID, "p2", 9, 9, false); err != nil {
		t.Fatalf("white opener: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := m.ApplyMove(ctx, s.ID, "p1", 0, i, false); err != nil {
			t.Fatalf("black move %d: %v", i, err)
		}
		if err := m.ApplyMove(ctx, s.ID, "p2", 1, i, false); err != nil {
			t.Fatalf("white move %d: %v", i, err)
		}
	}
	if err := m.ApplyMove(ctx, s.ID, "p1", 0, 4, false); err != nil {
		t.Fatalf("clinching move: %v", err)
	}

	if s.Status != StatusCompleted {
		t.Fatal("series not completed after clinch")
	}
	if rec.count(EventSeriesOver) != 1 {
		t.Errorf("series_over emitted %d times, want 1", rec.count(EventSeriesOver))
	}
	winBal, _ := w.Balance(ctx, "p1")
	if winBal != 1000+1800 {
		t.Errorf("series winner balance = %d, want 2800", winBal)
	}
}

func TestSeriesDrawRefundsBothSeats(t *testing.T) {
	m, w, rec := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("p1", 2000)
	w.SetBalance("p2", 2000)
	key := QueueKey{Stake: 1000, TimeControl: 30, Mode: ModeTournament, SeriesLength: 2}

	if err := m.JoinQueue(ctx, player("p1"), key); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if err := m.JoinQueue(ctx, player("p2"), key); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	s := m.reg.sessionFor("p1")
	if s == nil {
		t.Fatal("tournament session not created")
	}

	// Round 1: black takes it.
	playWin(t, m, s)
	if err := m.MarkReady(ctx, s.ID, "p1"); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := m.MarkReady(ctx, s.ID, "p2"); err != nil {
		t.Fatalf("ready p2: %v", err)
	}

	// Round 2: white opens and levels the series at one win each.
	for i := 0; i < 4; i++ {
		if err := m.ApplyMove(ctx, s.ID, "p2", 9, i, false); err != nil {
			t.Fatalf("white move %d: %v", i, err)
		}
		if err := m.ApplyMove(ctx, s.ID, "p1", 5, i, false); err != nil {
			t.Fatalf("black move %d: %v", i, err)
		}
	}
	if err := m.ApplyMove(ctx, s.ID, "p2", 9, 4, false); err != nil {
		t.Fatalf("levelling move: %v", err)
	}

	if s.Status != StatusCompleted {
		t.Fatal("series not settled after all rounds played")
	}
	ev, ok := rec.last(EventSessionOver)
	if !ok {
		t.Fatal("no session_over emitted")
	}
	if payload := ev.payload.(map[string]any); payload["reason"] != OutcomeDraw {
		t.Errorf("session_over reason = %v, want %v", payload["reason"], OutcomeDraw)
	}
	for _, id := range []string{"p1", "p2"} {
		bal, _ := w.Balance(ctx, id)
		if bal != 2000 {
			t.Errorf("%s balance = %d, want full stake back", id, bal)
		}
		entries := w.LedgerFor(id)
		if len(entries) != 2 {
			t.Fatalf("%s ledger has %d entries, want 2", id, len(entries))
		}
		if entries[1].TxType != wallet.TxRefund {
			t.Errorf("%s final ledger entry = %v, want %v", id, entries[1].TxType, wallet.TxRefund)
		}
	}
}

func TestLiveRoomLifecycle(t *testing.T) {
	m, w, rec := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("creator", 500)
	w.SetBalance("guest", 500)

	st, err := m.CreateLiveRoom(ctx, player("creator"), 100, 30, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.JoinLiveRoom(ctx, st.ID, player("guest")); err != nil {
		t.Fatalf("join: %v", err)
	}
	s := m.reg.get(st.ID)
	if s.Status != StatusWaiting {
		t.Error("joining a live room must not start it")
	}

	if err := m.StartLiveRoom(ctx, st.ID, "guest"); err != ErrNotCreator {
		t.Errorf("non-creator start: err = %v, want ErrNotCreator", err)
	}
	if err := m.StartLiveRoom(ctx, st.ID, "creator"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Status != StatusActive {
		t.Fatal("room not active after start")
	}

	// Creator vanishes mid-game: room dies, nothing is refunded.
	m.HandleDisconnect(ctx, "creator")
	if m.reg.get(st.ID) != nil {
		t.Error("room survived creator disconnect")
	}
	if rec.count(EventRoomClosed) != 1 {
		t.Errorf("room_closed emitted %d times, want 1", rec.count(EventRoomClosed))
	}
	for _, id := range []string{"creator", "guest"} {
		bal, _ := w.Balance(ctx, id)
		if bal != 400 {
			t.Errorf("balance of %s = %d, want 400 (stakes stay escrowed)", id, bal)
		}
	}
}

func TestLiveRoomOpponentLeaveRevertsToWaiting(t *testing.T) {
	m, w, rec := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("creator", 500)
	w.SetBalance("guest", 500)

	st, _ := m.CreateLiveRoom(ctx, player("creator"), 0, 30, 1)
	if err := m.JoinLiveRoom(ctx, st.ID, player("guest")); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := m.StartLiveRoom(ctx, st.ID, "creator"); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := m.reg.get(st.ID)
	if err := m.ApplyMove(ctx, st.ID, "creator", 0, 0, false); err != nil {
		t.Fatalf("move: %v", err)
	}

	m.HandleDisconnect(ctx, "guest")

	if s.Status != StatusWaiting {
		t.Fatalf("status = %s, want waiting after opponent left", s.Status)
	}
	if s.Players[SlotWhite] != nil {
		t.Error("white seat not cleared")
	}
	if s.Board.StoneCount() != 0 {
		t.Error("board not reset")
	}
	if rec.count(EventOpponentLeft) != 1 {
		t.Errorf("opponent_left emitted %d times, want 1", rec.count(EventOpponentLeft))
	}

	// A fresh challenger can take the seat.
	if err := m.JoinLiveRoom(ctx, st.ID, player("next")); err != nil {
		t.Fatalf("rejoin after revert: %v", err)
	}
}

func TestSpectators(t *testing.T) {
	m, w, rec := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("creator", 100)

	st, _ := m.CreateLiveRoom(ctx, player("creator"), 0, 30, 1)
	if err := m.JoinSpectator(ctx, st.ID, "watcher"); err != nil {
		t.Fatalf("spectate: %v", err)
	}
	if _, ok := rec.last(EventSpectatorSnapshot); !ok {
		t.Error("no snapshot sent to the spectator")
	}

	// Duplicate join does not duplicate the list entry.
	if err := m.JoinSpectator(ctx, st.ID, "watcher"); err != nil {
		t.Fatalf("second spectate: %v", err)
	}
	s := m.reg.get(st.ID)
	if len(s.Spectators) != 1 {
		t.Errorf("spectator list = %v, want one entry", s.Spectators)
	}

	m.HandleDisconnect(ctx, "watcher")
	if len(s.Spectators) != 0 {
		t.Error("spectator not removed on disconnect")
	}
}

func TestRoomJoinValidation(t *testing.T) {
	m, w, _ := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("creator", 500)
	w.SetBalance("guest", 50)

	st, err := m.CreateRoom(ctx, player("creator"), 100, 30, ModeStandard, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.JoinRoom(ctx, st.ID, player("creator")); err != ErrOwnRoom {
		t.Errorf("self-join: err = %v, want ErrOwnRoom", err)
	}
	if err := m.JoinRoom(ctx, st.ID, player("guest")); err != ErrInsufficientCoins {
		t.Errorf("broke guest: err = %v, want ErrInsufficientCoins", err)
	}
	if err := m.JoinRoom(ctx, "sess_missing", player("guest")); err != ErrSessionNotFound {
		t.Errorf("missing room: err = %v, want ErrSessionNotFound", err)
	}

	w.SetBalance("guest", 500)
	if err := m.JoinRoom(ctx, st.ID, player("guest")); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := m.JoinRoom(ctx, st.ID, player("third")); err != ErrSessionNotWaiting {
		t.Errorf("join started room: err = %v, want ErrSessionNotWaiting", err)
	}
}

func TestQuitWaitingRoomRefunds(t *testing.T) {
	m, w, rec := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("creator", 500)

	st, _ := m.CreateRoom(ctx, player("creator"), 200, 30, ModeStandard, 1)
	if err := m.QuitWaitingRoom(ctx, st.ID, "creator"); err != nil {
		t.Fatalf("quit: %v", err)
	}

	bal, _ := w.Balance(ctx, "creator")
	if bal != 500 {
		t.Errorf("balance = %d, want 500 after refund", bal)
	}
	if rec.count(EventRoomClosed) != 1 {
		t.Error("room_closed not emitted")
	}
	if m.reg.get(st.ID) != nil {
		t.Error("cancelled room still registered")
	}
}

func TestExpirySweepCancelsStaleRooms(t *testing.T) {
	m, w, rec := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("creator", 500)

	st, _ := m.CreateRoom(ctx, player("creator"), 200, 30, ModeStandard, 1)
	m.mu.Lock()
	m.reg.get(st.ID).ExpiresAt = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	m.sweep(ctx)

	bal, _ := w.Balance(ctx, "creator")
	if bal != 500 {
		t.Errorf("balance = %d, want 500 after expiry refund", bal)
	}
	if rec.count(EventRoomClosed) != 1 {
		t.Error("room_closed not emitted on expiry")
	}
}

func TestRematchSwapsColors(t *testing.T) {
	m, w, rec := newTestManager(t)
	s := matchPair(t, m, w, 100)
	playWin(t, m, s)
	ctx := context.Background()

	if err := m.RequestRematch(ctx, s.ID, "p1"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, ok := rec.last(EventRematchRequested); !ok {
		t.Fatal("opponent not asked for the rematch")
	}
	if err := m.RespondRematch(ctx, s.ID, "p2", true); err != nil {
		t.Fatalf("respond: %v", err)
	}

	next := m.reg.sessionFor("p1")
	if next == nil || next.ID == s.ID {
		t.Fatal("no fresh session created for the rematch")
	}
	// Old white opens the rematch as black.
	if next.Players[SlotBlack].ID != "p2" || next.Players[SlotWhite].ID != "p1" {
		t.Errorf("colors not swapped: black=%s white=%s",
			next.Players[SlotBlack].ID, next.Players[SlotWhite].ID)
	}
	if next.Status != StatusActive {
		t.Error("rematch session not active")
	}
}

func TestRematchDecline(t *testing.T) {
	m, w, rec := newTestManager(t)
	s := matchPair(t, m, w, 100)
	playWin(t, m, s)
	ctx := context.Background()

	if err := m.RequestRematch(ctx, s.ID, "p2"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := m.RespondRematch(ctx, s.ID, "p1", false); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, ok := rec.last(EventRematchDeclined); !ok {
		t.Error("requester not told about the decline")
	}
	// No further pending request.
	if err := m.RespondRematch(ctx, s.ID, "p1", true); err != ErrNoRematchPending {
		t.Errorf("err = %v, want ErrNoRematchPending", err)
	}
}

func TestRematchRequiresOpponentOnline(t *testing.T) {
	w := wallet.NewMemStore()
	rec := &recorder{}
	presence := &fakePresence{offline: map[string]bool{"p2": true}}
	m := NewManager(testConfig(), w, nil, nil, rec, presence)

	s := matchPair(t, m, w, 100)
	playWin(t, m, s)

	if err := m.RequestRematch(context.Background(), s.ID, "p1"); err != ErrOpponentNotPresent {
		t.Errorf("err = %v, want ErrOpponentNotPresent", err)
	}
	if _, ok := rec.last(EventRematchFailed); !ok {
		t.Error("requester not told the rematch failed")
	}
}

func TestLiveRoomListing(t *testing.T) {
	m, w, _ := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("c1", 100)
	w.SetBalance("c2", 100)

	if _, err := m.CreateLiveRoom(ctx, player("c1"), 0, 30, 1); err != nil {
		t.Fatalf("create c1: %v", err)
	}
	if _, err := m.CreateLiveRoom(ctx, player("c2"), 0, 30, 3); err != nil {
		t.Fatalf("create c2: %v", err)
	}
	matchPair(t, m, w, 0) // persisted session must not show up

	rooms := m.LiveRooms()
	if len(rooms) != 2 {
		t.Fatalf("live room count = %d, want 2", len(rooms))
	}
}

func TestStopLiveRoomRefundsBothSeats(t *testing.T) {
	m, w, _ := newTestManager(t)
	ctx := context.Background()
	w.SetBalance("creator", 500)
	w.SetBalance("guest", 500)

	st, _ := m.CreateLiveRoom(ctx, player("creator"), 100, 30, 1)
	if err := m.JoinLiveRoom(ctx, st.ID, player("guest")); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := m.StopLiveRoom(ctx, st.ID, "creator"); err != nil {
		t.Fatalf("stop: %v", err)
	}

	for _, id := range []string{"creator", "guest"} {
		bal, _ := w.Balance(ctx, id)
		if bal != 500 {
			t.Errorf("balance of %s = %d, want 500 after graceful stop", id, bal)
		}
	}
	if m.reg.get(st.ID) != nil {
		t.Error("stopped room still registered")
	}
}
