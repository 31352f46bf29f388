// internal/handlers/room_ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbid/auctionroom/internal/auth"
	"github.com/openbid/auctionroom/internal/models"
	"github.com/openbid/auctionroom/internal/room"
)

// dialWS spins up the websocket handler behind an httptest server and
// dials it with the auction subprotocol.
func dialWS(t *testing.T) (*room.Registry, *websocket.Conn, context.Context) {
	t.Helper()
	require.NoError(t, auth.Init())

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := room.NewRegistry()
	srv := httptest.NewServer(RoomWSHandler(logger, registry))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		Subprotocols: []string{"auction"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "done") })

	return registry, c, ctx
}

func sendRaw(t *testing.T, ctx context.Context, c *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(raw)))
}

func sendJSON(t *testing.T, ctx context.Context, c *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

func readEvent(t *testing.T, ctx context.Context, c *websocket.Conn) map[string]interface{} {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestReadPumpRejectsInvalidJSON(t *testing.T) {
	_, c, ctx := dialWS(t)

	sendRaw(t, ctx, c, `{"action": "join_room",`)

	ev := readEvent(t, ctx, c)
	assert.Equal(t, "error", ev["type"])
	assert.Equal(t, "Invalid JSON format", ev["message"])

	// The connection survives a garbage frame.
	sendJSON(t, ctx, c, map[string]interface{}{"action": "list_rooms"})
	ev = readEvent(t, ctx, c)
	assert.Equal(t, "room_list", ev["type"])
}

func TestDispatchRejectsUnknownAction(t *testing.T) {
	_, c, ctx := dialWS(t)

	sendJSON(t, ctx, c, map[string]interface{}{"action": "detonate"})

	ev := readEvent(t, ctx, c)
	assert.Equal(t, "error", ev["type"])
	assert.Equal(t, "Unknown action: detonate", ev["message"])
}

func TestPlayerSoldWithoutPlayerDataLeavesStateIntact(t *testing.T) {
	registry, c, ctx := dialWS(t)

	sendJSON(t, ctx, c, map[string]interface{}{
		"action":      "create_room",
		"player_name": "Alice",
		"team":        "Knights",
	})
	created := readEvent(t, ctx, c)
	require.Equal(t, "room_created", created["type"])
	code, _ := created["room_code"].(string)
	require.NotEmpty(t, code)

	sendJSON(t, ctx, c, map[string]interface{}{
		"action": "start_auction",
		"auction_queue": []map[string]interface{}{
			{"name": "A", "role": "Batsman", "basePrice": 10},
		},
	})
	started := readEvent(t, ctx, c)
	require.Equal(t, "auction_started", started["type"])

	sendJSON(t, ctx, c, map[string]interface{}{"action": "player_sold"})
	ev := readEvent(t, ctx, c)
	assert.Equal(t, "error", ev["type"])
	assert.Equal(t, "player_data is required", ev["message"])

	r, err := registry.Get(code)
	require.NoError(t, err)
	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Equal(t, models.StatusActive, r.State.Status)
	assert.Equal(t, 0, r.State.CurrentPlayerIdx)
	assert.Len(t, r.State.AuctionQueue, 1)
	assert.Empty(t, r.State.SoldPlayers)
	for _, p := range r.Roster {
		assert.Equal(t, room.StartingPurse, p.Purse)
		assert.Empty(t, p.Players)
	}
}

func TestJoinsFromSameCookieGetDistinctPlayerIDs(t *testing.T) {
	registry, c, ctx := dialWS(t)

	sendJSON(t, ctx, c, map[string]interface{}{
		"action":      "create_room",
		"player_name": "Alice",
		"team":        "Knights",
	})
	created := readEvent(t, ctx, c)
	require.Equal(t, "room_created", created["type"])
	code, _ := created["room_code"].(string)
	firstID, _ := created["player_id"].(string)
	require.NotEmpty(t, firstID)

	// Same websocket (and thus same transport identity) joining again
	// becomes a second, independent participant.
	sendJSON(t, ctx, c, map[string]interface{}{
		"action":      "join_room",
		"room_code":   code,
		"player_name": "Alice-tab2",
		"team":        "Royals",
	})
	joined := readEvent(t, ctx, c)
	require.Equal(t, "joined_room", joined["type"])
	secondID, _ := joined["player_id"].(string)
	require.NotEmpty(t, secondID)
	assert.NotEqual(t, firstID, secondID)

	r, err := registry.Get(code)
	require.NoError(t, err)
	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Len(t, r.Roster, 2)
}
