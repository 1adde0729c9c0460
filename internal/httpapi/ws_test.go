package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"meme-aggregator/internal/domain"
)

func dialTestWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ConnectionCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("connection count never reached %d", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketReceivesPriceUpdate(t *testing.T) {
	s := newTestServer(&fakeAggregator{}, &fakePinger{})
	conn := dialTestWS(t, s)
	waitForConnections(t, s, 1)

	s.hub.BroadcastPriceUpdate("addr1", domain.Token{
		Address:       "addr1",
		PriceSOL:      1.5,
		PriceChange1h: 3.2,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var update domain.PriceUpdate
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, domain.MessagePriceUpdate, update.Type)
	require.Equal(t, "addr1", update.TokenAddress)
	require.Equal(t, 1.5, update.PriceSOL)
}

func TestWebSocketSubscribeFilters(t *testing.T) {
	s := newTestServer(&fakeAggregator{}, &fakePinger{})
	conn := dialTestWS(t, s)
	waitForConnections(t, s, 1)

	err := conn.WriteJSON(map[string]interface{}{
		"type":   "subscribe",
		"tokens": []string{"watched"},
	})
	require.NoError(t, err)

	// Subscription is applied by the server's read loop; give it a moment
	// before broadcasting.
	time.Sleep(50 * time.Millisecond)

	s.hub.BroadcastPriceUpdate("other", domain.Token{Address: "other"})
	s.hub.BroadcastPriceUpdate("watched", domain.Token{Address: "watched", PriceSOL: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var update domain.PriceUpdate
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, "watched", update.TokenAddress)
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	s := newTestServer(&fakeAggregator{}, &fakePinger{})
	conn := dialTestWS(t, s)
	waitForConnections(t, s, 1)

	conn.Close()
	waitForConnections(t, s, 0)
}
