package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SQLStore persists balances in the players table and ledger entries in the
// transactions table. Every mutation runs in a transaction that locks the
// player row with SELECT ... FOR UPDATE so concurrent debits against the same
// balance serialize.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Balance(ctx context.Context, playerID string) (int64, error) {
	var coins int64
	err := s.db.GetContext(ctx, &coins, "SELECT coins FROM players WHERE id = $1", playerID)
	if err == sql.ErrNoRows {
		return 0, ErrPlayerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return coins, nil
}

func (s *SQLStore) Debit(ctx context.Context, playerID string, amount int64, reason, sessionID string) (int64, error) {
	return s.mutate(ctx, playerID, -amount, TxDebit, reason, sessionID)
}

func (s *SQLStore) Credit(ctx context.Context, playerID string, amount int64, reason, sessionID string) (int64, error) {
	return s.mutate(ctx, playerID, amount, TxCredit, reason, sessionID)
}

func (s *SQLStore) Refund(ctx context.Context, playerID string, amount int64, reason, sessionID string) (int64, error) {
	return s.mutate(ctx, playerID, amount, TxRefund, reason, sessionID)
}

// mutate applies a signed delta to the player's balance and appends one
// ledger entry, all inside a single transaction holding a row lock.
func (s *SQLStore) mutate(ctx context.Context, playerID string, delta int64, txType, reason, sessionID string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var before int64
	err = tx.GetContext(ctx, &before, "SELECT coins FROM players WHERE id = $1 FOR UPDATE", playerID)
	if err == sql.ErrNoRows {
		return 0, ErrPlayerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock player row: %w", err)
	}

	after := before + delta
	if after < 0 {
		return 0, ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE players SET coins = $1, updated_at = $2 WHERE id = $3",
		after, time.Now(), playerID)
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, player_id, session_id, tx_type, amount, reason, balance_before, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), playerID, sessionID, txType, amount, reason, before, after, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return after, nil
}

func (s *SQLStore) RecordWin(ctx context.Context, winnerID, loserID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE players SET wins = wins + 1, games_played = games_played + 1, updated_at = $1 WHERE id = $2",
		time.Now(), winnerID)
	if err != nil {
		return fmt.Errorf("failed to record win: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE players SET losses = losses + 1, games_played = games_played + 1, updated_at = $1 WHERE id = $2",
		time.Now(), loserID)
	if err != nil {
		return fmt.Errorf("failed to record loss: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) RecordDraw(ctx context.Context, aID, bID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE players SET draws = draws + 1, games_played = games_played + 1, updated_at = $1 WHERE id = ANY($2)",
		time.Now(), pq.Array([]string{aID, bID}))
	if err != nil {
		return fmt.Errorf("failed to record draw: %w", err)
	}
	return nil
}
