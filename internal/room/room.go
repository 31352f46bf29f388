// internal/room/room.go
package room

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openbid/auctionroom/internal/models"
)

// Business-rule caps. MaxTeams bounds the roster, MaxSquadSize bounds one
// participant's won list, MaxForeignPlayers only applies in mega mode.
const (
	MaxTeams          = 10
	MaxSquadSize      = 25
	MaxForeignPlayers = 8

	StartingPurse = 120

	DefaultTimerSeconds = 15
	MinTimerSeconds     = 5
	MaxTimerSeconds     = 30
)

// JournalFunc receives a copy of each state-changing room event for
// out-of-process consumers. Must not block.
type JournalFunc func(roomCode string, actorID uuid.UUID, eventType string, payload map[string]interface{})

// Room owns one auction's full state: roster, auction state machine, chat
// log and connection table. It has no knowledge of the transport.
//
// All methods below assume the caller holds Mu. The connection session
// acquires the lock once per inbound message, so every mutation and the
// payload it broadcasts observe a single total order per room.
type Room struct {
	Code         string
	HostID       uuid.UUID
	Mode         string
	TimerSeconds int

	Roster      map[uuid.UUID]*models.Participant
	State       models.AuctionState
	ChatLog     []models.ChatMessage
	Connections map[uuid.UUID]*Conn

	// OnEmpty is called by the session after the last roster entry is
	// removed, typically wired to Registry.DestroyIfEmpty.
	OnEmpty func(code string)

	// Journal, if non-nil, is invoked for state-changing events.
	Journal JournalFunc

	// Closed is set by the registry when the room is torn down. A session
	// that fetched the room before teardown must not repopulate it.
	Closed bool

	Mu sync.Mutex
}

// NewRoom constructs an empty room. The first participant admitted
// becomes the host.
func NewRoom(code, mode string, timerSeconds int) *Room {
	return &Room{
		Code:         code,
		Mode:         mode,
		TimerSeconds: timerSeconds,
		Roster:       make(map[uuid.UUID]*models.Participant),
		Connections:  make(map[uuid.UUID]*Conn),
		State: models.AuctionState{
			Status:   models.StatusWaiting,
			TimeLeft: timerSeconds,
		},
	}
}

// NormalizeTimerDuration parses a client-supplied timer value (number,
// numeric string, or absent) and clamps it to [MinTimerSeconds,
// MaxTimerSeconds], defaulting to DefaultTimerSeconds.
func NormalizeTimerDuration(v interface{}) int {
	parsed := DefaultTimerSeconds
	switch t := v.(type) {
	case nil:
	case int:
		parsed = t
	case float64:
		parsed = int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			parsed = n
		}
	}
	if parsed < MinTimerSeconds {
		return MinTimerSeconds
	}
	if parsed > MaxTimerSeconds {
		return MaxTimerSeconds
	}
	return parsed
}

// AddParticipant admits a new participant with the fixed starting purse.
// The first participant becomes host. Uniqueness of display name and team
// is checked against the current roster. Each join gets its own id;
// admitting an id that already has a roster entry would clobber that
// entry's purse and winnings, so it is rejected.
func (r *Room) AddParticipant(id uuid.UUID, name, team string) error {
	if r.Closed {
		return ErrRoomNotFound
	}
	if _, ok := r.Roster[id]; ok {
		return ErrAlreadyJoined
	}
	for _, p := range r.Roster {
		if p.Name == name {
			return ErrNameTaken
		}
		if p.Team == team {
			return ErrTeamTaken
		}
	}
	if len(r.Roster) >= MaxTeams {
		return ErrRoomFull
	}
	if len(r.Roster) == 0 {
		r.HostID = id
	}
	r.Roster[id] = &models.Participant{
		ID:      id,
		Name:    name,
		Team:    team,
		Purse:   StartingPurse,
		Players: []models.AuctionQueueItem{},
	}
	r.journal(id, "player_joined", map[string]interface{}{"name": name, "team": team})
	return nil
}

// RemoveParticipant drops the roster entry and any live connection for
// id. If the host leaves, an arbitrary remaining member becomes host.
// Returns true when the roster is now empty and the room should die.
func (r *Room) RemoveParticipant(id uuid.UUID) (empty bool) {
	delete(r.Roster, id)
	if conn, ok := r.Connections[id]; ok {
		delete(r.Connections, id)
		if conn.Cancel != nil {
			conn.Cancel()
		}
	}
	if id == r.HostID {
		r.HostID = uuid.Nil
		for pid := range r.Roster {
			r.HostID = pid
			break
		}
	}
	r.journal(id, "player_left", nil)
	return len(r.Roster) == 0
}

// Rebind replaces the live connection for an existing participant,
// preserving all roster state. Used for reconnects; idempotent.
func (r *Room) Rebind(id uuid.UUID, conn *Conn) error {
	if _, ok := r.Roster[id]; !ok {
		return ErrPlayerNotInRoom
	}
	if old, ok := r.Connections[id]; ok && old != conn {
		if old.Cancel != nil {
			old.Cancel()
		}
	}
	r.Connections[id] = conn
	return nil
}

// DropConnection removes the connection entry only, keeping the roster
// slot so the participant can reconnect later. The conn argument guards
// against reaping a newer connection that already replaced this one.
func (r *Room) DropConnection(id uuid.UUID, conn *Conn) {
	if cur, ok := r.Connections[id]; ok && cur == conn {
		delete(r.Connections, id)
	}
}

// StartAuction seeds a fresh run over the supplied queue. Host only.
func (r *Room) StartAuction(actorID uuid.UUID, queue []models.AuctionQueueItem) error {
	if actorID != r.HostID {
		return ErrNotAuthorized
	}
	if len(queue) == 0 {
		return ErrEmptyQueue
	}
	r.seedQueue(queue, false)
	r.journal(actorID, "auction_started", map[string]interface{}{"queue_len": len(queue)})
	r.BroadcastAll(map[string]interface{}{
		"type":      "auction_started",
		"room_data": r.Snapshot(),
	})
	return nil
}

// StartReauction begins a new run over a caller-supplied subset of
// previously unsold items. Deliberately not host-gated, and a deliberate
// re-entry path out of the ended state.
func (r *Room) StartReauction(actorID uuid.UUID, queue []models.AuctionQueueItem) error {
	if len(queue) == 0 {
		return ErrEmptyQueue
	}
	r.seedQueue(queue, true)
	r.journal(actorID, "reauction_started", map[string]interface{}{"queue_len": len(queue)})
	r.BroadcastAll(map[string]interface{}{
		"type":      "auction_started",
		"room_data": r.Snapshot(),
	})
	return nil
}

func (r *Room) seedQueue(queue []models.AuctionQueueItem, reauction bool) {
	r.State.Status = models.StatusActive
	r.State.AuctionQueue = queue
	r.State.CurrentPlayerIdx = 0
	r.State.TimeLeft = r.TimerSeconds
	r.State.CurrentBid = queue[0].BasePrice
	r.State.CurrentBidderID = nil
	r.State.BidHistory = nil
	r.State.IsReauction = reauction
}

// PlaceBid unconditionally applies the caller's amount as the new current
// bid and resets the countdown window. No validation that the amount
// exceeds the previous bid; the last applied bid wins.
func (r *Room) PlaceBid(actorID uuid.UUID, amount int) error {
	if r.State.Status != models.StatusActive {
		return ErrAuctionNotActive
	}
	p, ok := r.Roster[actorID]
	if !ok {
		return ErrPlayerNotInRoom
	}
	bidder := actorID
	r.State.CurrentBid = amount
	r.State.CurrentBidderID = &bidder
	r.State.TimeLeft = r.TimerSeconds
	r.State.BidHistory = append(r.State.BidHistory, models.BidRecord{
		PlayerID:   actorID,
		PlayerName: p.Name,
		Amount:     amount,
		Timestamp:  time.Now(),
	})
	r.journal(actorID, "bid_placed", map[string]interface{}{"amount": amount})
	r.BroadcastAll(map[string]interface{}{
		"type":      "bid_placed",
		"room_data": r.Snapshot(),
	})
	return nil
}

// Pause records who paused and halts bidding. Not host-gated.
func (r *Room) Pause(actorID uuid.UUID) error {
	p, ok := r.Roster[actorID]
	if !ok {
		return ErrPlayerNotInRoom
	}
	pauser := actorID
	r.State.Status = models.StatusPaused
	r.State.PausedBy = &pauser
	r.BroadcastAll(map[string]interface{}{
		"type":      "auction_paused",
		"paused_by": p.Name,
		"room_data": r.Snapshot(),
	})
	return nil
}

// Resume puts the auction back to active. Not host-gated.
func (r *Room) Resume(actorID uuid.UUID) error {
	if _, ok := r.Roster[actorID]; !ok {
		return ErrPlayerNotInRoom
	}
	r.State.Status = models.StatusActive
	r.State.PausedBy = nil
	r.BroadcastAll(map[string]interface{}{
		"type":      "auction_resumed",
		"room_data": r.Snapshot(),
	})
	return nil
}

// ChangeTimer updates the room's countdown window. Host only. The value
// is normalized and clamped the same way as at room creation.
func (r *Room) ChangeTimer(actorID uuid.UUID, requested interface{}) error {
	if actorID != r.HostID {
		return ErrNotAuthorized
	}
	if requested == nil {
		// Absent field re-normalizes the current window.
		requested = r.TimerSeconds
	}
	seconds := NormalizeTimerDuration(requested)
	r.TimerSeconds = seconds
	r.State.TimeLeft = seconds
	r.BroadcastAll(map[string]interface{}{
		"type":           "timer_changed",
		"timer_duration": seconds,
		"room_data":      r.Snapshot(),
	})
	return nil
}

// EndAuction forces the terminal state. Host only.
func (r *Room) EndAuction(actorID uuid.UUID) error {
	if actorID != r.HostID {
		return ErrNotAuthorized
	}
	r.State.Status = models.StatusEnded
	r.journal(actorID, "auction_ended", nil)
	r.BroadcastAll(map[string]interface{}{
		"type":      "auction_ended",
		"room_data": r.Snapshot(),
	})
	return nil
}

// ResolveCurrent finalizes the currently offered item as sold or unsold
// and advances the queue. Accepted when the caller is host or the auction
// is active. Quota rejections return an error to the caller only and
// leave the item current.
func (r *Room) ResolveCurrent(actorID uuid.UUID, item models.AuctionQueueItem, finalPrice int) error {
	if actorID != r.HostID && r.State.Status != models.StatusActive {
		return ErrNotAuthorized
	}

	winnerName := "UNSOLD"
	var winner *models.Participant
	if r.State.CurrentBidderID != nil {
		winner = r.Roster[*r.State.CurrentBidderID]
	}

	if winner != nil {
		if r.Mode == models.ModeMega && item.IsForeign && winner.ForeignCount >= MaxForeignPlayers {
			return ErrForeignQuotaExceeded
		}
		if len(winner.Players) >= MaxSquadSize {
			return ErrRosterFull
		}
		winner.Purse -= finalPrice
		item.SoldPrice = finalPrice
		winner.Players = append(winner.Players, item)
		winnerName = winner.Name
		if item.IsForeign {
			winner.ForeignCount++
		}
		r.State.SoldPlayers = append(r.State.SoldPlayers, models.SoldRecord{
			Name:       item.Name,
			Price:      finalPrice,
			Winner:     winnerName,
			WinnerTeam: winner.Team,
			Role:       item.Role,
		})
	} else {
		r.State.UnsoldPlayers = append(r.State.UnsoldPlayers, models.UnsoldRecord{
			Name:      item.Name,
			BasePrice: item.BasePrice,
			Role:      item.Role,
		})
		finalPrice = 0
	}

	r.State.CurrentPlayerIdx++
	r.State.BidHistory = nil
	r.State.CurrentBidderID = nil
	r.State.TimeLeft = r.TimerSeconds
	if r.State.CurrentPlayerIdx < len(r.State.AuctionQueue) {
		r.State.CurrentBid = r.State.AuctionQueue[r.State.CurrentPlayerIdx].BasePrice
	} else {
		r.State.Status = models.StatusEnded
	}

	r.journal(actorID, "player_sold", map[string]interface{}{
		"player_name": item.Name,
		"winner_name": winnerName,
		"final_price": finalPrice,
	})
	r.BroadcastAll(map[string]interface{}{
		"type":        "player_sold",
		"winner_name": winnerName,
		"final_price": finalPrice,
		"player_name": item.Name,
		"room_data":   r.Snapshot(),
	})
	return nil
}

// TimerTick applies a client-reported countdown value and relays it to
// every other connection. The sender is the authoritative local countdown
// source; the server enforces no expiry of its own.
func (r *Room) TimerTick(actorID uuid.UUID, secondsLeft int) error {
	if r.State.Status != models.StatusActive {
		return ErrAuctionNotActive
	}
	r.State.TimeLeft = secondsLeft
	r.BroadcastExcept(actorID, map[string]interface{}{
		"type":      "timer_update",
		"time_left": secondsLeft,
	})
	return nil
}

// AppendChat records a chat entry and broadcasts it to the whole room,
// sender included.
func (r *Room) AppendChat(actorID uuid.UUID, text string) error {
	p, ok := r.Roster[actorID]
	if !ok {
		return ErrPlayerNotInRoom
	}
	msg := models.ChatMessage{
		PlayerID:   actorID,
		PlayerName: p.Name,
		Team:       p.Team,
		Message:    text,
		Timestamp:  time.Now(),
	}
	r.ChatLog = append(r.ChatLog, msg)
	r.BroadcastAll(map[string]interface{}{
		"type":    "new_message",
		"message": msg,
	})
	return nil
}

// Snapshot builds the full serializable room state. Roster entries and
// state slices are copied so the write pumps can marshal the payload
// after the room lock is released.
func (r *Room) Snapshot() map[string]interface{} {
	// Empty-but-non-nil bases so absent lists marshal as [] rather than null.
	players := make(map[string]models.Participant, len(r.Roster))
	for id, p := range r.Roster {
		cp := *p
		cp.Players = append([]models.AuctionQueueItem{}, p.Players...)
		players[id.String()] = cp
	}

	state := r.State
	state.BidHistory = append([]models.BidRecord{}, r.State.BidHistory...)
	state.AuctionQueue = append([]models.AuctionQueueItem{}, r.State.AuctionQueue...)
	state.SoldPlayers = append([]models.SoldRecord{}, r.State.SoldPlayers...)
	state.UnsoldPlayers = append([]models.UnsoldRecord{}, r.State.UnsoldPlayers...)
	if r.State.CurrentBidderID != nil {
		bidder := *r.State.CurrentBidderID
		state.CurrentBidderID = &bidder
	}
	if r.State.PausedBy != nil {
		pauser := *r.State.PausedBy
		state.PausedBy = &pauser
	}

	var hostID interface{}
	if r.HostID != uuid.Nil {
		hostID = r.HostID.String()
	}

	return map[string]interface{}{
		"room_code":            r.Code,
		"host_id":              hostID,
		"auction_mode":         r.Mode,
		"max_players_per_team": MaxSquadSize,
		"max_foreign_players":  MaxForeignPlayers,
		"timer_duration":       r.TimerSeconds,
		"players":              players,
		"auction_state":        state,
		"chat_messages":        append([]models.ChatMessage{}, r.ChatLog...),
	}
}

// Summary builds the read-only listing entry for this room.
func (r *Room) Summary() models.RoomSummary {
	names := make([]string, 0, len(r.Roster))
	for _, p := range r.Roster {
		names = append(names, p.Name)
	}
	host := ""
	if h, ok := r.Roster[r.HostID]; ok {
		host = h.Name
	}
	return models.RoomSummary{
		RoomCode:      r.Code,
		Status:        r.State.Status,
		Players:       names,
		AuctionMode:   r.Mode,
		TimerDuration: r.TimerSeconds,
		Host:          host,
	}
}

func (r *Room) journal(actorID uuid.UUID, eventType string, payload map[string]interface{}) {
	if r.Journal != nil {
		r.Journal(r.Code, actorID, eventType, payload)
	}
}
