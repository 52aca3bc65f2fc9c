package hyperliquid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/config"
)

// newFeedServer upgrades every connection, checks the subscription and then
// pushes the given frames.
func newFeedServer(t *testing.T, connections *atomic.Int32, frames ...string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)

		var sub wsRequest
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if sub.Method != "subscribe" || sub.Subscription == nil || sub.Subscription.Type != "allMids" {
			return
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Keep the connection open until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestWebSocketClient_ReceivesAllMids(t *testing.T) {
	var connections atomic.Int32
	server := newFeedServer(t, &connections,
		`{"channel":"subscriptionResponse","data":{"method":"subscribe","subscription":{"type":"allMids"}}}`,
		`{"channel":"allMids","data":{"mids":{"BTC":"67000.5","ETH":"3100"}}}`,
		`not json`,
		`{"channel":"allMids","data":{"mids":{"BTC":"67001"}}}`,
	)
	defer server.Close()

	book := NewPriceBook(clock.NewReal())
	client := NewWebSocketClient(wsURL(server.URL), config.LiveFeedConfig{PingInterval: time.Second}, book)
	require.NoError(t, client.Connect())
	assert.True(t, client.IsConnected())

	assert.Eventually(t, func() bool {
		tick, ok := book.LatestTick("BTC")
		return ok && tick.Price == "67001"
	}, 2*time.Second, 10*time.Millisecond)

	tick, ok := book.LatestTick("ETH")
	require.True(t, ok)
	assert.Equal(t, "3100", tick.Price)

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
	assert.Equal(t, int32(1), connections.Load())
}

func TestWebSocketClient_ConnectFailure(t *testing.T) {
	client := NewWebSocketClient("ws://127.0.0.1:1/ws", config.LiveFeedConfig{}, NewPriceBook(nil))
	err := client.Connect()
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.False(t, client.IsConnected())
}

func TestWebSocketClient_ConnectAfterClose(t *testing.T) {
	client := NewWebSocketClient("ws://127.0.0.1:1/ws", config.LiveFeedConfig{}, NewPriceBook(nil))
	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Connect(), ErrWebSocketClosed)
}

func TestWebSocketClient_Backoff(t *testing.T) {
	client := NewWebSocketClient("", config.LiveFeedConfig{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 5 * time.Second,
	}, NewPriceBook(nil))

	assert.Equal(t, DefaultWebSocketURL, client.url)
	assert.Equal(t, time.Second, client.backoff(1))
	assert.Equal(t, 2*time.Second, client.backoff(2))
	assert.Equal(t, 4*time.Second, client.backoff(3))
	assert.Equal(t, 5*time.Second, client.backoff(4))
	assert.Equal(t, 5*time.Second, client.backoff(20))
}

func TestWebSocketClient_HandleMessage(t *testing.T) {
	book := NewPriceBook(nil)
	client := NewWebSocketClient("", config.LiveFeedConfig{}, book)

	require.NoError(t, client.handleMessage([]byte(`{"channel":"pong"}`)))
	require.NoError(t, client.handleMessage([]byte(`{"channel":"allMids","data":{"mids":{"SOL":"150"}}}`)))
	assert.Equal(t, 1, book.Len())

	assert.Error(t, client.handleMessage([]byte(`{"channel":"error","data":"bad subscription"}`)))
	assert.Error(t, client.handleMessage([]byte(`{"channel":"allMids","data":{"mids":[1,2]}}`)))
	assert.Error(t, client.handleMessage([]byte(`garbage`)))
}
