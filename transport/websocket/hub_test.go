package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func dialHub(t *testing.T, hub *Hub, mapID string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, mapID)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUpdate keeps broadcasting until the client receives a message;
// registration races the first broadcasts, and the hub drops updates for
// maps without spectators by design.
func readUpdate(t *testing.T, hub *Hub, conn *websocket.Conn, mapID string, state interface{}) Message {
	t.Helper()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				hub.Broadcast(mapID, state)
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return message
}

func TestHubDeliversStateUpdates(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	conn := dialHub(t, hub, "town")

	message := readUpdate(t, hub, conn, "town", map[string]int{"tick": 1})
	if message.MapID != "town" {
		t.Errorf("mapId = %q, want town", message.MapID)
	}
	if message.State == nil {
		t.Error("state payload missing")
	}
}

func TestHubScopesUpdatesToMap(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	conn := dialHub(t, hub, "town")

	// Flood the other map; the town spectator must only ever see town.
	for i := 0; i < 10; i++ {
		hub.Broadcast("village", map[string]int{"tick": i})
	}

	message := readUpdate(t, hub, conn, "town", map[string]string{"who": "town"})
	if message.MapID != "town" {
		t.Errorf("received update for %q, want town only", message.MapID)
	}
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop()) // Run is intentionally not started

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10_000; i++ {
			hub.Broadcast("town", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Broadcast must drop updates rather than block")
	}
}
