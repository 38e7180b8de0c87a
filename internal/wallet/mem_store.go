package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemEntry is one in-memory ledger record.
type MemEntry struct {
	ID            string
	PlayerID      string
	SessionID     string
	TxType        string
	Amount        int64
	Reason        string
	BalanceBefore int64
	BalanceAfter  int64
	CreatedAt     time.Time
}

type memPlayer struct {
	coins       int64
	wins        int
	losses      int
	draws       int
	gamesPlayed int
}

// MemStore is an in-memory Store used by tests and by local development
// without a database.
type MemStore struct {
	mu      sync.Mutex
	players map[string]*memPlayer
	ledger  []MemEntry
}

func NewMemStore() *MemStore {
	return &MemStore{players: make(map[string]*memPlayer)}
}

// SetBalance creates or resets a player with the given balance.
func (m *MemStore) SetBalance(playerID string, coins int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.players[playerID]
	if p == nil {
		p = &memPlayer{}
		m.players[playerID] = p
	}
	p.coins = coins
}

func (m *MemStore) Balance(_ context.Context, playerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.players[playerID]
	if p == nil {
		return 0, ErrPlayerNotFound
	}
	return p.coins, nil
}

func (m *MemStore) Debit(_ context.Context, playerID string, amount int64, reason, sessionID string) (int64, error) {
	return m.mutate(playerID, -amount, TxDebit, reason, sessionID)
}

func (m *MemStore) Credit(_ context.Context, playerID string, amount int64, reason, sessionID string) (int64, error) {
	return m.mutate(playerID, amount, TxCredit, reason, sessionID)
}

func (m *MemStore) Refund(_ context.Context, playerID string, amount int64, reason, sessionID string) (int64, error) {
	return m.mutate(playerID, amount, TxRefund, reason, sessionID)
}

func (m *MemStore) mutate(playerID string, delta int64, txType, reason, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.players[playerID]
	if p == nil {
		return 0, ErrPlayerNotFound
	}
	after := p.coins + delta
	if after < 0 {
		return 0, ErrInsufficientFunds
	}
	amount := delta
	if amount < 0 {
		amount = -amount
	}
	m.ledger = append(m.ledger, MemEntry{
		ID:            uuid.New().String(),
		PlayerID:      playerID,
		SessionID:     sessionID,
		TxType:        txType,
		Amount:        amount,
		Reason:        reason,
		BalanceBefore: p.coins,
		BalanceAfter:  after,
		CreatedAt:     time.Now(),
	})
	p.coins = after
	return after, nil
}

func (m *MemStore) RecordWin(_ context.Context, winnerID, loserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.players[winnerID]; p != nil {
		p.wins++
		p.gamesPlayed++
	}
	if p := m.players[loserID]; p != nil {
		p.losses++
		p.gamesPlayed++
	}
	return nil
}

func (m *MemStore) RecordDraw(_ context.Context, aID, bID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range []string{aID, bID} {
		if p := m.players[id]; p != nil {
			p.draws++
			p.gamesPlayed++
		}
	}
	return nil
}

// Ledger returns a copy of all entries, oldest first.
func (m *MemStore) Ledger() []MemEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemEntry, len(m.ledger))
	copy(out, m.ledger)
	return out
}

// LedgerFor returns the entries for one player, oldest first.
func (m *MemStore) LedgerFor(playerID string) []MemEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MemEntry
	for _, e := range m.ledger {
		if e.PlayerID == playerID {
			out = append(out, e)
		}
	}
	return out
}
