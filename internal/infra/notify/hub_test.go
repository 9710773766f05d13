package notify

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
	"crypto_dash/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_Broadcast(t *testing.T) {
	m := &infra.Metrics{}
	h := NewHub(m)
	defer h.Close()

	conn := dialHub(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), m.Snapshot().ActiveClients)

	h.Publish(event.AlertFiredEvent{
		BaseEvent: event.BaseEvent{Ts: time.UnixMilli(1700000000000)},
		Alert: domain.FiredAlert{
			AssetID:      "bitcoin",
			AssetName:    "Bitcoin",
			Threshold:    decimal.NewFromInt(100),
			CurrentPrice: decimal.NewFromInt(101),
		},
	})
	h.Publish(event.FetchErrorEvent{BaseEvent: event.BaseEvent{Ts: time.Now()}, Op: "refresh", Message: "boom"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Seq     uint64          `json:"seq"`
		Type    string          `json:"type"`
		Ts      int64           `json:"ts"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, "alert_fired", first.Type)
	assert.Equal(t, int64(1700000000000), first.Ts)
	assert.Contains(t, string(first.Payload), `"asset_name":"Bitcoin"`)

	var raw map[string]any
	require.NoError(t, conn.ReadJSON(&raw))
	assert.Equal(t, float64(2), raw["seq"])
	assert.Equal(t, "fetch_error", raw["type"])
}

func TestHub_ClientDisconnect(t *testing.T) {
	m := &infra.Metrics{}
	h := NewHub(m)
	defer h.Close()

	conn := dialHub(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), m.Snapshot().ActiveClients)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Close()
	assert.Zero(t, h.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Publishing after close is a no-op
	h.Publish(event.SnapshotEvent{BaseEvent: event.BaseEvent{Ts: time.Now()}})
}
