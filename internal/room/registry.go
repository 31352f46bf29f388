// internal/room/registry.go
package room

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"strings"
	"sync"

	"github.com/openbid/auctionroom/internal/models"
)

// codeGenAttempts bounds the collision-retry loop in CreateRoom. Three
// random bytes give 16M codes; hitting the bound means the process is
// effectively out of code space.
const codeGenAttempts = 64

// Registry is the process-wide mapping from room code to live Room.
// It owns room creation, code uniqueness, and destruction when empty.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	// Journal is inherited by every room the registry creates.
	Journal JournalFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom generates a collision-free code, constructs the room, and
// registers it. The creator is admitted separately by the session so the
// identity and connection binding stay in one place.
func (s *Registry) CreateRoom(mode string, timerSeconds int) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}
	r := NewRoom(code, mode, timerSeconds)
	r.Journal = s.Journal
	r.OnEmpty = func(c string) { s.DestroyIfEmpty(c) }
	s.rooms[code] = r
	log.Printf("Registry: created room %s (mode=%s timer=%ds).", code, mode, timerSeconds)
	return r, nil
}

// generateCode draws 3 random bytes and formats them as 6 uppercase hex
// characters, retrying on collision. Assumes s.mu is held.
func (s *Registry) generateCode() (string, error) {
	buf := make([]byte, 3)
	for i := 0; i < codeGenAttempts; i++ {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Get returns the room for code, or ErrRoomNotFound.
func (s *Registry) Get(code string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// DestroyIfEmpty removes the room when its roster is empty. Invoked
// after every roster removal; a no-op otherwise. The freed code may be
// reused by a later CreateRoom.
//
// The registry lock is held across the emptiness check and the delete,
// so a join that has already acquired the room lock either lands before
// the check (the room survives) or after the room is marked Closed (the
// join is rejected). Lock order is always registry then room.
func (s *Registry) DestroyIfEmpty(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return
	}

	r.Mu.Lock()
	empty := len(r.Roster) == 0
	if empty {
		r.Closed = true
	}
	r.Mu.Unlock()
	if !empty {
		return
	}

	delete(s.rooms, code)
	log.Printf("Registry: destroyed empty room %s.", code)
}

// Summaries returns a read-only snapshot of every live room. Room
// pointers are copied out under the registry lock, then each room is
// locked individually, so the registry lock is never held across a room
// lock.
func (s *Registry) Summaries() []models.RoomSummary {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		r.Mu.Lock()
		summaries = append(summaries, r.Summary())
		r.Mu.Unlock()
	}
	return summaries
}
