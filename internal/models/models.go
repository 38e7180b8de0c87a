package models

import (
	"database/sql"
	"time"
)

// Player represents a user in the system. The coins column is the
// authoritative balance; transactions are the audit trail, never the source
// of truth.
type Player struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Avatar      string    `db:"avatar" json:"avatar,omitempty"`
	Country     string    `db:"country" json:"country,omitempty"`
	Coins       int64     `db:"coins" json:"coins"`
	Wins        int       `db:"wins" json:"wins"`
	Losses      int       `db:"losses" json:"losses"`
	Draws       int       `db:"draws" json:"draws"`
	GamesPlayed int       `db:"games_played" json:"games_played"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one append-only ledger entry. Rows are written once and
// never updated.
type Transaction struct {
	ID            string    `db:"id" json:"id"`
	PlayerID      string    `db:"player_id" json:"player_id"`
	SessionID     string    `db:"session_id" json:"session_id,omitempty"`
	TxType        string    `db:"tx_type" json:"tx_type"`
	Amount        int64     `db:"amount" json:"amount"`
	Reason        string    `db:"reason" json:"reason,omitempty"`
	BalanceBefore int64     `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// GameSession is the durable record of a persisted session. Ephemeral live
// rooms never get a row here.
type GameSession struct {
	ID           string         `db:"id" json:"id"`
	BlackID      string         `db:"black_id" json:"black_id"`
	WhiteID      sql.NullString `db:"white_id" json:"white_id,omitempty"`
	StakeAmount  int64          `db:"stake_amount" json:"stake_amount"`
	TimeControl  int            `db:"time_control" json:"time_control"`
	Mode         string         `db:"mode" json:"mode"`
	SeriesLength int            `db:"series_length" json:"series_length"`
	Status       string         `db:"status" json:"status"`
	WinnerID     sql.NullString `db:"winner_id" json:"winner_id,omitempty"`
	WinReason    string         `db:"win_reason" json:"win_reason,omitempty"`
	RoundNumber  int            `db:"round_number" json:"round_number"`
	ScoreBlack   int            `db:"score_black" json:"score_black"`
	ScoreWhite   int            `db:"score_white" json:"score_white"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	StartedAt    sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	ExpiresAt    sql.NullTime   `db:"expires_at" json:"expires_at,omitempty"`
}

// GameMove represents a single recorded move in a persisted session
type GameMove struct {
	ID         int       `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"session_id"`
	PlayerID   string    `db:"player_id" json:"player_id"`
	MoveNumber int       `db:"move_number" json:"move_number"`
	Slot       string    `db:"slot" json:"slot"`
	Row        int       `db:"row_pos" json:"row"`
	Col        int       `db:"col_pos" json:"col"`
	AutoPlay   bool      `db:"auto_play" json:"auto_play"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
