package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"

	"github.com/playgomoku/backend/internal/auth"
	"github.com/playgomoku/backend/internal/config"
	"github.com/playgomoku/backend/internal/game"
	"github.com/playgomoku/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the inbound wire frame.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound payloads.
type queueData struct {
	Stake        int64  `json:"stake"`
	TimeControl  int    `json:"timeControl"`
	Mode         string `json:"mode"`
	SeriesLength int    `json:"seriesLength"`
}

type roomData struct {
	SessionID string `json:"sessionId"`
}

type createRoomData struct {
	Stake        int64  `json:"stake"`
	TimeControl  int    `json:"timeControl"`
	Mode         string `json:"mode"`
	SeriesLength int    `json:"seriesLength"`
}

type moveData struct {
	SessionID string `json:"sessionId"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	AutoPlay  bool   `json:"autoPlay"`
}

type rematchResponseData struct {
	SessionID string `json:"sessionId"`
	Accepted  bool   `json:"accepted"`
}

// HandleWebSocket authenticates the ?token query parameter and attaches the
// player to the hub.
func HandleWebSocket(hub *Hub, manager *game.Manager, db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		playerID, err := auth.VerifyToken(cfg.JWTSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		info := loadPlayerInfo(c.Request.Context(), db, playerID)
		if info == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "unknown player"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			conn:     conn,
			playerID: playerID,
			info:     info,
			send:     make(chan []byte, sendBufferSize),
			hub:      hub,
			manager:  manager,
		}

		if hub.register(client) {
			log.Printf("[WS] Player %s reconnected", playerID)
		} else {
			log.Printf("[WS] Player %s connected", playerID)
		}

		go client.writePump()
		go client.readPump()

		// Replay current session state to a player with a game in flight.
		manager.HandleReconnect(c.Request.Context(), playerID)
	}
}

// loadPlayerInfo resolves display metadata from the players table. Without a
// database the token identity alone is accepted.
func loadPlayerInfo(ctx context.Context, db *sqlx.DB, playerID string) *game.PlayerInfo {
	if db == nil {
		return &game.PlayerInfo{ID: playerID, DisplayName: playerID}
	}
	var p models.Player
	if err := db.GetContext(ctx, &p, "SELECT * FROM players WHERE id = $1", playerID); err != nil {
		log.Printf("[WS] Player lookup failed for %s: %v", playerID, err)
		return nil
	}
	return &game.PlayerInfo{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
		Country:     p.Country,
	}
}

// handleMessage dispatches one inbound frame to the engine.
func (c *Client) handleMessage(msg Message) {
	ctx := context.Background()

	switch msg.Type {
	case "join_queue":
		var data queueData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid join_queue payload")
			return
		}
		c.reportErr(c.manager.JoinQueue(ctx, c.info, game.QueueKey{
			Stake:        data.Stake,
			TimeControl:  data.TimeControl,
			Mode:         game.Mode(data.Mode),
			SeriesLength: data.SeriesLength,
		}))

	case "cancel_queue":
		var data queueData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid cancel_queue payload")
			return
		}
		c.reportErr(c.manager.CancelQueue(ctx, c.playerID, game.QueueKey{
			Stake:        data.Stake,
			TimeControl:  data.TimeControl,
			Mode:         game.Mode(data.Mode),
			SeriesLength: data.SeriesLength,
		}))

	case "create_room":
		var data createRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid create_room payload")
			return
		}
		_, err := c.manager.CreateRoom(ctx, c.info, data.Stake, data.TimeControl, game.Mode(data.Mode), data.SeriesLength)
		c.reportErr(err)

	case "join_room":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid join_room payload")
			return
		}
		c.reportErr(c.manager.JoinRoom(ctx, data.SessionID, c.info))

	case "quit_waiting_room":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid quit_waiting_room payload")
			return
		}
		c.reportErr(c.manager.QuitWaitingRoom(ctx, data.SessionID, c.playerID))

	case "create_live_room":
		var data createRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid create_live_room payload")
			return
		}
		_, err := c.manager.CreateLiveRoom(ctx, c.info, data.Stake, data.TimeControl, data.SeriesLength)
		c.reportErr(err)

	case "join_live_room":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid join_live_room payload")
			return
		}
		c.reportErr(c.manager.JoinLiveRoom(ctx, data.SessionID, c.info))

	case "start_live_room":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid start_live_room payload")
			return
		}
		c.reportErr(c.manager.StartLiveRoom(ctx, data.SessionID, c.playerID))

	case "stop_live_room":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid stop_live_room payload")
			return
		}
		c.reportErr(c.manager.StopLiveRoom(ctx, data.SessionID, c.playerID))

	case "join_spectator":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid join_spectator payload")
			return
		}
		c.reportErr(c.manager.JoinSpectator(ctx, data.SessionID, c.playerID))

	case "make_move":
		var data moveData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid make_move payload")
			return
		}
		c.reportErr(c.manager.ApplyMove(ctx, data.SessionID, c.playerID, data.Row, data.Col, data.AutoPlay))

	case "mark_ready":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid mark_ready payload")
			return
		}
		c.reportErr(c.manager.MarkReady(ctx, data.SessionID, c.playerID))

	case "resign":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid resign payload")
			return
		}
		c.reportErr(c.manager.Resign(ctx, data.SessionID, c.playerID))

	case "request_rematch":
		var data roomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid request_rematch payload")
			return
		}
		c.reportErr(c.manager.RequestRematch(ctx, data.SessionID, c.playerID))

	case "respond_rematch":
		var data rematchResponseData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(game.CodeValidation, "invalid respond_rematch payload")
			return
		}
		c.reportErr(c.manager.RespondRematch(ctx, data.SessionID, c.playerID, data.Accepted))

	case "ping":
		c.hub.ToPlayer(c.playerID, "pong", nil)

	default:
		c.sendError(game.CodeValidation, "unknown message type: "+msg.Type)
	}
}
