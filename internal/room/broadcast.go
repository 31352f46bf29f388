// internal/room/broadcast.go
package room

import (
	"log"

	"github.com/google/uuid"
)

// BroadcastAll fans payload out to every live connection in the room.
// Assumes the caller holds Mu; sends are non-blocking channel pushes, so
// a slow client never stalls the room.
func (r *Room) BroadcastAll(payload map[string]interface{}) {
	r.BroadcastExcept(uuid.Nil, payload)
}

// BroadcastExcept fans payload out to every live connection except the
// one bound to excludeID. A failed send to one connection does not abort
// delivery to the rest; failed connections are treated as dead and reaped
// from the connection table after the fan-out completes.
func (r *Room) BroadcastExcept(excludeID uuid.UUID, payload map[string]interface{}) {
	var dead []uuid.UUID
	for id, conn := range r.Connections {
		if id == excludeID {
			continue
		}
		if !conn.Write(payload) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		log.Printf("Room %s: reaping dead connection for player %s after failed send.", r.Code, id)
		if conn, ok := r.Connections[id]; ok {
			delete(r.Connections, id)
			if conn.Cancel != nil {
				conn.Cancel()
			}
		}
	}
}

// SendTo delivers payload to a single participant's connection, if live.
func (r *Room) SendTo(id uuid.UUID, payload map[string]interface{}) {
	if conn, ok := r.Connections[id]; ok {
		conn.Write(payload)
	}
}
