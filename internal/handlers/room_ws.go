// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openbid/auctionroom/internal/models"
	"github.com/openbid/auctionroom/internal/room"
)

// session is the per-connection actor: it holds the identity bound to
// this connection and its current room, decodes inbound messages, and
// dispatches them to room operations.
type session struct {
	identity uuid.UUID // transport-level identity from the auth cookie
	playerID uuid.UUID // per-join participant id bound into the current room
	rm       *room.Room
	conn     *room.Conn
	registry *room.Registry
	logger   *logrus.Logger
}

// RoomWSHandler sets up the websocket flow for auction rooms: accept,
// ephemeral identity, then read/write pumps for the connection lifetime.
func RoomWSHandler(logger *logrus.Logger, registry *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"auction"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "auction" {
			c.Close(BadSubprotocolError, "client must speak the auction subprotocol")
			return
		}

		identity, err := EnsureEphemeralIdentity(w, r)
		if err != nil {
			logger.Warnf("failed to establish identity for %s: %v", remoteAddr, err)
			c.Close(InvalidAuthTokenError, "could not establish identity")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := &session{
			identity: identity,
			registry: registry,
			logger:   logger,
			conn: &room.Conn{
				PlayerID: identity,
				Cancel:   cancel,
				OutChan:  make(chan map[string]interface{}, 32),
			},
		}

		logger.WithFields(logrus.Fields{
			"identity": identity,
			"remote":   remoteAddr,
		}).Info("auction websocket connected")

		go writePump(ctx, c, sess.conn, logger)
		sess.readPump(ctx, c)

		// Transport-level disconnect without an explicit leave: drop only
		// the connection entry so the participant can reconnect later.
		if sess.rm != nil {
			sess.rm.Mu.Lock()
			sess.rm.DropConnection(sess.playerID, sess.conn)
			sess.rm.Mu.Unlock()
			logger.WithFields(logrus.Fields{
				"room":   sess.rm.Code,
				"player": sess.playerID,
			}).Info("player websocket disconnected, roster state retained")
		}
	}
}

// readPump handles inbound messages until the connection closes. Room
// mutations happen with the room lock held, so all connections touching
// one room observe a total order over its state.
func (s *session) readPump(ctx context.Context, c *websocket.Conn) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				s.logger.Debugf("websocket closed normally for %v", s.identity)
			} else if !strings.Contains(err.Error(), "context canceled") {
				s.logger.Warnf("read error for %v: %v (close status %d)", s.identity, err, closeStatus)
			}
			return
		}
		if typ != websocket.MessageText {
			s.logger.Warnf("ignoring non-text message type %d from %v", typ, s.identity)
			continue
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warnf("invalid json from %v: %v", s.identity, err)
			s.conn.WriteError("Invalid JSON format")
			continue
		}

		s.dispatch(msg)
	}
}

// dispatch routes one decoded message. Registry-level actions establish
// or tear down the session's room binding; all other actions run against
// the bound room under its lock.
func (s *session) dispatch(msg models.ClientMessage) {
	switch msg.Action {
	case "create_room":
		s.handleCreateRoom(msg)
	case "join_room":
		s.handleJoinRoom(msg)
	case "reconnect":
		s.handleReconnect(msg)
	case "leave_room":
		s.handleLeaveRoom()
	case "list_rooms":
		s.conn.Write(map[string]interface{}{
			"type":  "room_list",
			"rooms": s.registry.Summaries(),
		})
	case "start_auction", "start_reauction", "place_bid", "pause_auction",
		"resume_auction", "change_timer", "end_auction", "player_sold",
		"timer_tick", "send_message":
		s.handleRoomAction(msg)
	default:
		s.logger.Warnf("unknown action '%s' from %v", msg.Action, s.identity)
		s.conn.WriteError("Unknown action: " + msg.Action)
	}
}

func (s *session) handleCreateRoom(msg models.ClientMessage) {
	if msg.PlayerName == "" || msg.Team == "" {
		s.conn.WriteError("player_name and team are required")
		return
	}
	mode := msg.AuctionMode
	if mode == "" {
		mode = models.ModeMega
	}

	r, err := s.registry.CreateRoom(mode, room.NormalizeTimerDuration(msg.TimerDuration))
	if err != nil {
		s.logger.Errorf("room creation failed for %v: %v", s.identity, err)
		s.conn.WriteError("Could not create room")
		return
	}

	s.unbind()

	// Each join is a distinct participant, even from the same browser:
	// the roster key is minted per join, not taken from the cookie.
	playerID := uuid.New()

	r.Mu.Lock()
	if err := r.AddParticipant(playerID, msg.PlayerName, msg.Team); err != nil {
		// Fresh room; only code-space style failures are possible here.
		r.Mu.Unlock()
		s.conn.WriteError(err.Error())
		return
	}
	r.Rebind(playerID, s.conn)
	snapshot := r.Snapshot()
	r.Mu.Unlock()

	s.bind(r, playerID)
	s.conn.Write(map[string]interface{}{
		"type":      "room_created",
		"room_code": r.Code,
		"player_id": playerID.String(),
		"room_data": snapshot,
	})
}

func (s *session) handleJoinRoom(msg models.ClientMessage) {
	if msg.PlayerName == "" || msg.Team == "" {
		s.conn.WriteError("player_name and team are required")
		return
	}
	r, err := s.registry.Get(msg.RoomCode)
	if err != nil {
		s.conn.WriteError("Room not found")
		return
	}

	s.unbind()

	playerID := uuid.New()

	r.Mu.Lock()
	if err := r.AddParticipant(playerID, msg.PlayerName, msg.Team); err != nil {
		r.Mu.Unlock()
		s.conn.WriteError(err.Error())
		return
	}
	r.Rebind(playerID, s.conn)
	s.conn.Write(map[string]interface{}{
		"type":      "joined_room",
		"room_code": r.Code,
		"player_id": playerID.String(),
		"room_data": r.Snapshot(),
	})
	r.BroadcastAll(map[string]interface{}{
		"type":      "player_joined",
		"room_data": r.Snapshot(),
	})
	r.Mu.Unlock()

	s.bind(r, playerID)
}

func (s *session) handleReconnect(msg models.ClientMessage) {
	pid, parseErr := uuid.Parse(msg.PlayerID)
	r, err := s.registry.Get(msg.RoomCode)
	if parseErr != nil || err != nil {
		s.conn.WriteError("Room not found or player not in room")
		return
	}

	s.unbind()

	r.Mu.Lock()
	if err := r.Rebind(pid, s.conn); err != nil {
		r.Mu.Unlock()
		s.conn.WriteError("Room not found or player not in room")
		return
	}
	snapshot := r.Snapshot()
	r.Mu.Unlock()

	s.bind(r, pid)
	// Snapshot goes to the caller only; other members already have
	// current state.
	s.conn.Write(map[string]interface{}{
		"type":      "reconnected",
		"room_code": r.Code,
		"player_id": pid.String(),
		"room_data": snapshot,
	})
}

func (s *session) handleLeaveRoom() {
	if s.rm == nil {
		return
	}
	r := s.rm

	r.Mu.Lock()
	empty := r.RemoveParticipant(s.playerID)
	if !empty {
		r.BroadcastAll(map[string]interface{}{
			"type":      "player_left",
			"room_data": r.Snapshot(),
		})
	}
	r.Mu.Unlock()

	if empty && r.OnEmpty != nil {
		r.OnEmpty(r.Code)
	}

	s.rm = nil
	s.conn.Write(map[string]interface{}{"type": "left_room"})
}

// handleRoomAction runs a state-machine operation against the bound
// room. Unbound sessions no-op, matching the source behavior for
// messages that arrive before any join.
func (s *session) handleRoomAction(msg models.ClientMessage) {
	if s.rm == nil {
		s.logger.Debugf("ignoring '%s' from unbound session %v", msg.Action, s.identity)
		return
	}
	r := s.rm

	r.Mu.Lock()
	defer r.Mu.Unlock()

	// Skip actions from a connection that was already replaced by a
	// newer reconnect for the same identity.
	if cur, ok := r.Connections[s.playerID]; ok && cur != s.conn {
		s.logger.Warnf("room %s: ignoring '%s' from stale connection of %v", r.Code, msg.Action, s.playerID)
		return
	}

	var err error
	switch msg.Action {
	case "start_auction":
		err = r.StartAuction(s.playerID, msg.AuctionQueue)
	case "start_reauction":
		err = r.StartReauction(s.playerID, msg.SelectedPlayers)
	case "place_bid":
		err = r.PlaceBid(s.playerID, msg.BidAmount)
	case "pause_auction":
		err = r.Pause(s.playerID)
	case "resume_auction":
		err = r.Resume(s.playerID)
	case "change_timer":
		err = r.ChangeTimer(s.playerID, msg.TimerDuration)
	case "end_auction":
		err = r.EndAuction(s.playerID)
	case "player_sold":
		if msg.PlayerData == nil {
			s.conn.WriteError("player_data is required")
			return
		}
		err = r.ResolveCurrent(s.playerID, *msg.PlayerData, msg.FinalPrice)
	case "timer_tick":
		err = r.TimerTick(s.playerID, msg.TimeLeft)
	case "send_message":
		if msg.Message == "" {
			return
		}
		err = r.AppendChat(s.playerID, msg.Message)
	}
	if err != nil {
		s.reportRoomError(msg.Action, err)
	}
}

// reportRoomError applies the error policy: precondition failures no-op
// silently (logged only), business-rule rejections go back to the sender.
func (s *session) reportRoomError(action string, err error) {
	switch {
	case errors.Is(err, room.ErrNotAuthorized),
		errors.Is(err, room.ErrAuctionNotActive),
		errors.Is(err, room.ErrEmptyQueue):
		s.logger.WithFields(logrus.Fields{
			"room":   s.rm.Code,
			"player": s.playerID,
			"action": action,
		}).Warnf("rejected: %v", err)
	default:
		s.conn.WriteError(err.Error())
	}
}

// bind establishes the session's (identity, room) pairing.
func (s *session) bind(r *room.Room, playerID uuid.UUID) {
	s.rm = r
	s.playerID = playerID
	s.conn.PlayerID = playerID
}

// unbind releases the current room binding, if any, dropping this
// connection's entry so the old room does not fan out to it anymore.
func (s *session) unbind() {
	if s.rm == nil {
		return
	}
	s.rm.Mu.Lock()
	s.rm.DropConnection(s.playerID, s.conn)
	s.rm.Mu.Unlock()
	s.rm = nil
}

// writePump drains the connection's OutChan onto the websocket and sends
// periodic pings. Exits on write failure; readPump observes the closure.
func writePump(ctx context.Context, c *websocket.Conn, conn *room.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing msg for %v: %v", conn.PlayerID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for %v: %v", conn.PlayerID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping failed for %v, assuming disconnect: %v", conn.PlayerID, err)
				return
			}
		}
	}
}
