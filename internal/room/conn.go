// internal/room/conn.go
package room

import (
	"log"

	"github.com/google/uuid"
)

// Conn is a single participant's live presence in a room. OutChan is
// drained by the transport's write pump; the room only ever pushes.
type Conn struct {
	PlayerID uuid.UUID
	Cancel   func()
	OutChan  chan map[string]interface{}
}

// Write pushes a message onto the connection's OutChan non-blockingly.
// Returns false if the channel is full or closed, which the broadcaster
// treats as evidence of a dead connection.
func (c *Conn) Write(msg map[string]interface{}) (ok bool) {
	defer func() {
		// Sending on a closed channel panics; a closed channel is just
		// another dead connection here.
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case c.OutChan <- msg:
		return true
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("room.Conn Write WARNING: OutChan for player %s closed or full. Dropped message type '%s'.", c.PlayerID, msgType)
		return false
	}
}

// WriteError is a convenience to send an error event.
func (c *Conn) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}
