package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fwilhelm/connectk/internal/events"
	"github.com/fwilhelm/connectk/internal/models"
)

// wsConn is one client connection: an outgoing message queue plus the
// current event subscription, which follows the caller's lobby membership.
type wsConn struct {
	uid    uuid.UUID
	out    chan interface{}
	logger *logrus.Logger

	mu  sync.Mutex
	sub *events.Subscription
}

// write queues msg for delivery without blocking. A full queue drops the
// message; slow clients resync via snapshot queries.
func (c *wsConn) write(msg interface{}) {
	select {
	case c.out <- msg:
	default:
		c.logger.WithField("uid", c.uid).Warn("outgoing queue full, dropping message")
	}
}

func (c *wsConn) writeError(kind, message string) {
	c.write(map[string]interface{}{
		"type":    "error",
		"kind":    kind,
		"message": message,
	})
}

// resubscribe swaps the connection's event subscription over to lobbyID and
// starts forwarding its events. A zero lobbyID just drops the current one.
func (c *wsConn) resubscribe(b *events.Broadcaster, lobbyID uuid.UUID) {
	c.mu.Lock()
	old := c.sub
	c.sub = nil
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	if lobbyID == uuid.Nil {
		return
	}

	sub, err := b.Subscribe(lobbyID)
	if err != nil {
		c.writeError(KindUnauthorized, err.Error())
		return
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	go c.forward(sub)
}

// forward copies lobby events into the outgoing queue until the subscription
// closes. When the connection's own player is removed from the roster, the
// removal event is still delivered and the subscription ends there: the
// entitlement to this lobby's events went away with the membership.
func (c *wsConn) forward(sub *events.Subscription) {
	for ev := range sub.C {
		c.write(envelopeEvent(ev))
		if lu, ok := ev.(events.LobbyUpdate); ok && c.removedBy(lu) {
			c.mu.Lock()
			if c.sub == sub {
				c.sub = nil
			}
			c.mu.Unlock()
			sub.Close()
			return
		}
	}
}

func (c *wsConn) removedBy(lu events.LobbyUpdate) bool {
	if lu.State != events.StatePlayerLeave && lu.State != events.StatePlayerKick {
		return false
	}
	if lu.Lobby == nil {
		return false
	}
	for _, p := range lu.Lobby.Players {
		if p.UID == c.uid {
			return false
		}
	}
	return true
}

// envelopeEvent wraps a broadcast event in its wire envelope.
func envelopeEvent(ev events.Event) interface{} {
	switch e := ev.(type) {
	case events.GameUpdate:
		return struct {
			Type string `json:"type"`
			events.GameUpdate
		}{"game_state", e}
	case events.LobbyUpdate:
		return struct {
			Type string `json:"type"`
			events.LobbyUpdate
		}{"lobby_state", e}
	case events.ChatMessage:
		return struct {
			Type string `json:"type"`
			events.ChatMessage
		}{"chat_message", e}
	default:
		return nil
	}
}

// WSHandler upgrades to the lobby websocket: commands in, scoped events out.
func WSHandler(logger *logrus.Logger, f *Facade, b *events.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Identity first: the guest cookie has to ride on the 101 response.
		uid, err := EnsureGuest(w, r)
		if err != nil {
			logger.WithError(err).Warn("guest identity failed")
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"connectk"},
			OriginPatterns: []string{"*"}, // tighten in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "connectk" {
			c.Close(BadSubprotocolError, "client must speak the connectk subprotocol")
			return
		}

		logger.WithFields(logrus.Fields{
			"uid":    uid,
			"remote": r.RemoteAddr,
		}).Info("websocket connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := &wsConn{
			uid:    uid,
			out:    make(chan interface{}, 32),
			logger: logger,
		}

		// Reconnecting clients pick their subscription back up from the
		// session record.
		if lobbyID := f.CurrentLobbyID(ctx, uid); lobbyID != uuid.Nil {
			conn.resubscribe(b, lobbyID)
		}

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, conn, f, b, logger)

		conn.resubscribe(b, uuid.Nil)
		logger.WithField("uid", uid).Info("websocket disconnected")
	}
}

// readPump handles incoming command packets until the connection closes.
func readPump(ctx context.Context, c *websocket.Conn, conn *wsConn, f *Facade, b *events.Broadcaster, logger *logrus.Logger) {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus != websocket.StatusNormalClosure &&
				closeStatus != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				logger.WithField("uid", conn.uid).Warnf("read error: %v", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			conn.writeError(KindBadRequest, "invalid JSON")
			continue
		}
		handleCommand(ctx, packet, conn, f, b)
	}
}

// handleCommand dispatches one inbound packet to the facade.
func handleCommand(ctx context.Context, packet map[string]interface{}, conn *wsConn, f *Facade, b *events.Broadcaster) {
	action, _ := packet["type"].(string)
	switch action {
	case "create_lobby":
		info, err := f.CreateLobby(ctx)
		if err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "lobby", "lobby": info})

	case "join_lobby":
		idStr, _ := packet["lobbyId"].(string)
		lobbyID, err := uuid.Parse(idStr)
		if err != nil {
			conn.writeError(KindBadRequest, "invalid lobbyId")
			return
		}
		nickname, _ := packet["nickname"].(string)
		info, err := f.JoinLobby(ctx, conn.uid, lobbyID, nickname)
		if err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.resubscribe(b, lobbyID)
		conn.write(map[string]interface{}{"type": "lobby", "lobby": info})

	case "leave_lobby":
		if err := f.LeaveLobby(ctx, conn.uid); err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.resubscribe(b, uuid.Nil)
		conn.write(map[string]interface{}{"type": "ack", "of": action})

	case "kick_player":
		targetStr, _ := packet["uid"].(string)
		target, err := uuid.Parse(targetStr)
		if err != nil {
			conn.writeError(KindBadRequest, "invalid uid")
			return
		}
		if err := f.KickPlayer(ctx, conn.uid, target); err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "ack", "of": action})

	case "update_settings":
		s := models.Settings{
			Rows:       intField(packet, "rows"),
			Cols:       intField(packet, "cols"),
			Connect:    intField(packet, "connect"),
			MaxPlayers: intField(packet, "maxPlayers"),
		}
		info, err := f.UpdateSettings(ctx, conn.uid, s)
		if err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "lobby", "lobby": info})

	case "start_game":
		if err := f.StartGame(ctx, conn.uid); err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "ack", "of": action})

	case "stop_game":
		if err := f.StopGame(ctx, conn.uid); err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "ack", "of": action})

	case "place_piece":
		row, won, err := f.PlacePiece(ctx, conn.uid, intField(packet, "col"))
		if err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "place_result", "row": row, "won": won})

	case "chat":
		msg, _ := packet["message"].(string)
		if msg == "" {
			return
		}
		if err := f.WriteChat(ctx, conn.uid, msg); err != nil {
			conn.writeError(errKind(err), err.Error())
		}

	case "lobby_info":
		info, err := f.LobbyInfo(ctx, conn.uid)
		if err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "lobby", "lobby": info})

	case "board":
		cells, err := f.Board(ctx, conn.uid)
		if err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "board", "board": cells})

	case "self":
		p, err := f.Self(ctx, conn.uid)
		if err != nil {
			conn.writeError(errKind(err), err.Error())
			return
		}
		conn.write(map[string]interface{}{"type": "self", "player": p})

	default:
		conn.writeError(KindBadRequest, "unknown action type: "+action)
	}
}

// writePump drains the outgoing queue onto the socket and keeps the
// connection alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *wsConn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.out:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.WithField("uid", conn.uid).Warnf("failed to marshal outgoing msg: %v", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithField("uid", conn.uid).Warnf("write failed: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("uid", conn.uid).Warnf("ping failed, assuming disconnect: %v", err)
				return
			}
		}
	}
}

// intField reads a numeric packet field (JSON numbers arrive as float64).
func intField(packet map[string]interface{}, key string) int {
	v, _ := packet[key].(float64)
	return int(v)
}
