// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Auction status values for AuctionState.Status.
const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusEnded   = "ended"
)

// Auction modes. Legend auctions skip the foreign-player quota check.
const (
	ModeMega   = "mega"
	ModeLegend = "legend"
)

// Participant is one team's entry in a room roster. Keyed by player ID
// in the snapshot, so the ID itself is not serialized on the record.
type Participant struct {
	ID           uuid.UUID          `json:"-"`
	Name         string             `json:"name"`
	Team         string             `json:"team"`
	Purse        int                `json:"purse"`
	Players      []AuctionQueueItem `json:"players"`
	ForeignCount int                `json:"foreign_count"`
}

// AuctionQueueItem is one item offered for bidding. Field names are
// camelCase because clients supply the queue verbatim.
type AuctionQueueItem struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	BasePrice int    `json:"basePrice"`
	IsForeign bool   `json:"isForeign,omitempty"`
	SoldPrice int    `json:"soldPrice,omitempty"`
}

// BidRecord is one applied bid in the current item's history.
type BidRecord struct {
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Amount     int       `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// SoldRecord is the terminal fact about an item that found a buyer.
type SoldRecord struct {
	Name       string `json:"name"`
	Price      int    `json:"price"`
	Winner     string `json:"winner"`
	WinnerTeam string `json:"winner_team"`
	Role       string `json:"role"`
}

// UnsoldRecord is the terminal fact about an item that drew no bids.
type UnsoldRecord struct {
	Name      string `json:"name"`
	BasePrice int    `json:"basePrice"`
	Role      string `json:"role"`
}

// ChatMessage is one entry in a room's append-only chat log.
type ChatMessage struct {
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Team       string    `json:"team"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuctionState is the embedded state machine for one room.
// Pointers for the bidder/pauser so an unset value serializes as null.
type AuctionState struct {
	Status           string             `json:"status"`
	CurrentPlayerIdx int                `json:"current_player_idx"`
	CurrentBid       int                `json:"current_bid"`
	CurrentBidderID  *uuid.UUID         `json:"current_bidder_id"`
	TimeLeft         int                `json:"time_left"`
	BidHistory       []BidRecord        `json:"bid_history"`
	AuctionQueue     []AuctionQueueItem `json:"auction_queue"`
	SoldPlayers      []SoldRecord       `json:"sold_players"`
	UnsoldPlayers    []UnsoldRecord     `json:"unsold_players"`
	PausedBy         *uuid.UUID         `json:"paused_by"`
	IsReauction      bool               `json:"is_reauction"`
}

// RoomSummary is the read-only listing entry returned by list_rooms.
type RoomSummary struct {
	RoomCode      string   `json:"room_code"`
	Status        string   `json:"status"`
	Players       []string `json:"players"`
	AuctionMode   string   `json:"auction_mode"`
	TimerDuration int      `json:"timer_duration"`
	Host          string   `json:"host,omitempty"`
}

// ClientMessage is the inbound websocket envelope. One message type per
// request; unknown fields for a given action are simply ignored.
// TimerDuration stays untyped so clients may send a number or a numeric
// string; NormalizeTimerDuration handles both.
type ClientMessage struct {
	Action          string             `json:"action"`
	RoomCode        string             `json:"room_code"`
	PlayerID        string             `json:"player_id"`
	PlayerName      string             `json:"player_name"`
	Team            string             `json:"team"`
	AuctionMode     string             `json:"auction_mode"`
	TimerDuration   interface{}        `json:"timer_duration"`
	AuctionQueue    []AuctionQueueItem `json:"auction_queue"`
	SelectedPlayers []AuctionQueueItem `json:"selected_players"`
	BidAmount       int                `json:"bid_amount"`
	PlayerData      *AuctionQueueItem  `json:"player_data"`
	FinalPrice      int                `json:"final_price"`
	TimeLeft        int                `json:"time_left"`
	Message         string             `json:"message"`
}
