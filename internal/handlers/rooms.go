// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/openbid/auctionroom/internal/room"
)

// ListRoomsHandler returns summaries of every live room. Same data the
// websocket list_rooms action serves, exposed over plain HTTP for
// dashboards and debugging.
func ListRoomsHandler(registry *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"rooms": registry.Summaries(),
		})
	}
}
