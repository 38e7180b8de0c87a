package game

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/playgomoku/backend/internal/models"
)

// SessionStore mirrors persisted sessions to the durable store. The manager
// treats it as best-effort for moves and as a retry point for settlement.
type SessionStore interface {
	CreateSession(ctx context.Context, rec *models.GameSession) error
	SessionStarted(ctx context.Context, sessionID, whiteID string) error
	UpdateProgress(ctx context.Context, sessionID string, roundNumber, scoreBlack, scoreWhite int) error
	CompleteSession(ctx context.Context, sessionID, winnerID, winReason string, scoreBlack, scoreWhite int) error
	RecordMove(ctx context.Context, move *models.GameMove) error
}

// SQLSessionStore writes session rows and move rows to Postgres.
type SQLSessionStore struct {
	db *sqlx.DB
}

func NewSQLSessionStore(db *sqlx.DB) *SQLSessionStore {
	return &SQLSessionStore{db: db}
}

func (s *SQLSessionStore) CreateSession(ctx context.Context, rec *models.GameSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_sessions (id, black_id, white_id, stake_amount, time_control, mode, series_length, status, round_number, score_black, score_white, created_at, started_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.BlackID, rec.WhiteID, rec.StakeAmount, rec.TimeControl, rec.Mode,
		rec.SeriesLength, rec.Status, rec.RoundNumber, rec.ScoreBlack, rec.ScoreWhite,
		rec.CreatedAt, rec.StartedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) SessionStarted(ctx context.Context, sessionID, whiteID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE game_sessions SET status = $1, white_id = $2, started_at = $3, expires_at = NULL WHERE id = $4",
		string(StatusActive), whiteID, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to mark session started: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) UpdateProgress(ctx context.Context, sessionID string, roundNumber, scoreBlack, scoreWhite int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE game_sessions SET round_number = $1, score_black = $2, score_white = $3 WHERE id = $4",
		roundNumber, scoreBlack, scoreWhite, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) CompleteSession(ctx context.Context, sessionID, winnerID, winReason string, scoreBlack, scoreWhite int) error {
	winner := sql.NullString{String: winnerID, Valid: winnerID != ""}
	_, err := s.db.ExecContext(ctx, `
		UPDATE game_sessions SET status = $1, winner_id = $2, win_reason = $3, score_black = $4, score_white = $5, completed_at = $6
		WHERE id = $7 AND status != $1`,
		string(StatusCompleted), winner, winReason, scoreBlack, scoreWhite, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) RecordMove(ctx context.Context, move *models.GameMove) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_moves (session_id, player_id, move_number, slot, row_pos, col_pos, auto_play, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		move.SessionID, move.PlayerID, move.MoveNumber, move.Slot, move.Row, move.Col, move.AutoPlay, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record move: %w", err)
	}
	return nil
}
