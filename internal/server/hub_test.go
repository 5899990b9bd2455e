package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mintdeck/mintdeck/internal/models"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func testStats() StatsPayload {
	return StatsPayload{
		Memory:    MemoryUsage{AllocBytes: 1, SysBytes: 2},
		UptimeSec: 3,
		Timestamp: time.Now().UnixMilli(),
	}
}

// newHubServer exposes a hub over a bare upgrade handler so the tests
// exercise the registry without the auth stack in the way.
func newHubServer(t *testing.T, h *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Register(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, within time.Duration) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(within)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestHubSendsConnectedAckFirst(t *testing.T) {
	h := NewHub(time.Hour, testStats, zap.NewNop())
	url := newHubServer(t, h)

	conn := dial(t, url)
	f := readFrame(t, conn, time.Second)
	assert.Equal(t, msgConnected, f.Type)
	assert.Equal(t, 1, h.Count())
}

func TestHubStatsTick(t *testing.T) {
	h := NewHub(100*time.Millisecond, testStats, zap.NewNop())
	url := newHubServer(t, h)

	conn := dial(t, url)
	require.Equal(t, msgConnected, readFrame(t, conn, time.Second).Type)

	f := readFrame(t, conn, time.Second)
	assert.Equal(t, msgStats, f.Type)

	var stats StatsPayload
	require.NoError(t, json.Unmarshal(f.Data, &stats))
	assert.Equal(t, uint64(1), stats.Memory.AllocBytes)
	assert.Equal(t, int64(3), stats.UptimeSec)
}

func TestHubSubscriberChurn(t *testing.T) {
	h := NewHub(100*time.Millisecond, testStats, zap.NewNop())
	url := newHubServer(t, h)

	c1 := dial(t, url)
	c2 := dial(t, url)
	c3 := dial(t, url)
	for _, c := range []*websocket.Conn{c1, c2, c3} {
		require.Equal(t, msgConnected, readFrame(t, c, time.Second).Type)
	}
	require.Equal(t, 3, h.Count())

	// Kill one transport; the others must keep receiving stats and the
	// registry must settle at 2.
	require.NoError(t, c2.Close())

	assert.Eventually(t, func() bool { return h.Count() == 2 },
		2*time.Second, 20*time.Millisecond)

	for _, c := range []*websocket.Conn{c1, c3} {
		f := readFrame(t, c, time.Second)
		assert.Equal(t, msgStats, f.Type)
	}
}

func TestHubLogFanOutIsImmediate(t *testing.T) {
	// Hour-long interval: anything received now came from the append
	// path, not the timer.
	h := NewHub(time.Hour, testStats, zap.NewNop())
	url := newHubServer(t, h)

	c1 := dial(t, url)
	c2 := dial(t, url)
	require.Equal(t, msgConnected, readFrame(t, c1, time.Second).Type)
	require.Equal(t, msgConnected, readFrame(t, c2, time.Second).Type)

	entry := models.LogEntry{
		ID:          7,
		TimestampMs: time.Now().UnixMilli(),
		Category:    models.CategoryProxy,
		Level:       models.LevelInfo,
		Message:     "proxied mint info",
	}
	h.BroadcastLog(entry)

	for _, c := range []*websocket.Conn{c1, c2} {
		f := readFrame(t, c, time.Second)
		require.Equal(t, msgLog, f.Type)

		var got models.LogEntry
		require.NoError(t, json.Unmarshal(f.Data, &got))
		assert.Equal(t, entry, got)
	}
}

func TestHubShutdownDisconnectsAll(t *testing.T) {
	h := NewHub(time.Hour, testStats, zap.NewNop())
	url := newHubServer(t, h)

	c1 := dial(t, url)
	require.Equal(t, msgConnected, readFrame(t, c1, time.Second).Type)

	h.Shutdown()
	assert.Eventually(t, func() bool { return h.Count() == 0 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, c1.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := c1.ReadMessage()
	assert.Error(t, err)
}
