// internal/room/errors.go
package room

import "errors"

// Recoverable room errors. All of these are reported to the originating
// connection only and leave room state unchanged.
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrPlayerNotInRoom      = errors.New("player not in room")
	ErrAlreadyJoined        = errors.New("player already in this room")
	ErrNameTaken            = errors.New("player name already exists in this room")
	ErrTeamTaken            = errors.New("team already taken")
	ErrRoomFull             = errors.New("room is full")
	ErrForeignQuotaExceeded = errors.New("foreign player limit reached (8 max)")
	ErrRosterFull           = errors.New("max 25 players limit reached")
	ErrNotAuthorized        = errors.New("only the host can do that")
	ErrAuctionNotActive     = errors.New("auction is not active")
	ErrEmptyQueue           = errors.New("auction queue is empty")
	ErrCodeSpaceExhausted   = errors.New("could not generate a unique room code")
)
