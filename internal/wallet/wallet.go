// Package wallet is the engine's view of the coin balance store and the
// append-only transaction ledger. The balance column is authoritative; every
// debit/credit/refund appends exactly one ledger entry recording the balance
// before and after.
package wallet

import (
	"context"
	"errors"
)

// Transaction types
const (
	TxDebit  = "DEBIT"
	TxCredit = "CREDIT"
	TxRefund = "REFUND"
)

var (
	// ErrInsufficientFunds is returned by Debit when the balance cannot cover
	// the amount. No ledger entry is written in that case.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrPlayerNotFound is returned when the player row does not exist.
	ErrPlayerNotFound = errors.New("player not found")
)

// Store is the balance/ledger collaborator the game engine mutates coins
// through. Implementations must make each call atomic: check-and-debit may
// not interleave with another operation on the same player.
type Store interface {
	// Balance returns the player's current coin balance.
	Balance(ctx context.Context, playerID string) (int64, error)

	// Debit atomically checks and removes amount from the player's balance,
	// appending a DEBIT ledger entry. Returns the new balance.
	Debit(ctx context.Context, playerID string, amount int64, reason, sessionID string) (int64, error)

	// Credit adds amount to the player's balance with a CREDIT ledger entry.
	Credit(ctx context.Context, playerID string, amount int64, reason, sessionID string) (int64, error)

	// Refund returns a previously escrowed amount with a REFUND ledger entry.
	Refund(ctx context.Context, playerID string, amount int64, reason, sessionID string) (int64, error)

	// RecordWin bumps win/loss/gamesPlayed counters for a decided game.
	RecordWin(ctx context.Context, winnerID, loserID string) error

	// RecordDraw bumps draw/gamesPlayed counters for both players.
	RecordDraw(ctx context.Context, aID, bID string) error
}
