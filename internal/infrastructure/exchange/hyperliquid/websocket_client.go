package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
)

const (
	DefaultWebSocketURL = "wss://api.hyperliquid.xyz/ws"
	DefaultPingInterval = 30 * time.Second
	WriteWait           = 10 * time.Second
	ReadBufferSize      = 1024
	WriteBufferSize     = 4096
)

// WebSocketClient mantiene la suscripcion allMids y vuelca cada update en el PriceBook
type WebSocketClient struct {
	url  string
	book *PriceBook

	pingInterval      time.Duration
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	mu             sync.RWMutex
	writeMu        sync.Mutex // gorilla permite un solo escritor concurrente
	conn           *websocket.Conn
	isConnected    bool
	isReconnecting bool
	reconnectCount int
	reconnectTimer *time.Timer
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

// NewWebSocketClient crea el cliente del feed en vivo
func NewWebSocketClient(wsURL string, cfg config.LiveFeedConfig, book *PriceBook) *WebSocketClient {
	ctx, cancel := context.WithCancel(context.Background())
	if wsURL == "" {
		wsURL = DefaultWebSocketURL
	}
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = DefaultPingInterval
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := cfg.MaxReconnectDelay
	if maxDelay < delay {
		maxDelay = delay
	}
	return &WebSocketClient{
		url:               wsURL,
		book:              book,
		pingInterval:      ping,
		reconnectDelay:    delay,
		maxReconnectDelay: maxDelay,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Connect dials the feed and subscribes to allMids
func (w *WebSocketClient) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isConnected {
		return nil
	}
	if w.ctx.Err() != nil {
		return ErrWebSocketClosed
	}

	u, err := url.Parse(w.url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	dialer := websocket.Dialer{
		ReadBufferSize:   ReadBufferSize,
		WriteBufferSize:  WriteBufferSize,
		HandshakeTimeout: WriteWait,
	}
	conn, _, err := dialer.DialContext(w.ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	subscribe := wsRequest{Method: "subscribe", Subscription: &wsSubscription{Type: infoTypeAllMids}}
	if err := writeJSON(&w.writeMu, conn, subscribe); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: subscribe: %v", ErrConnectionFailed, err)
	}

	// El servidor cierra conexiones sin trafico; cualquier mensaje extiende el plazo
	_ = conn.SetReadDeadline(time.Now().Add(2 * w.pingInterval))

	w.conn = conn
	w.isConnected = true
	metrics.UpdateWebSocketConnectionStatus(true)

	done := make(chan struct{})
	w.wg.Add(2)
	go w.readMessages(conn, done)
	go w.pingLoop(conn, done)

	logging.Info(w.ctx, "Live feed connected", logging.Fields{
		"url":          w.url,
		"subscription": infoTypeAllMids,
	})
	return nil
}

// Close stops reconnection and closes the current connection
func (w *WebSocketClient) Close() error {
	w.mu.Lock()
	w.cancel()
	w.isConnected = false
	w.isReconnecting = false
	w.reconnectCount = 0
	if w.reconnectTimer != nil {
		w.reconnectTimer.Stop()
		w.reconnectTimer = nil
	}
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	var err error
	if conn != nil {
		w.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(WriteWait))
		err = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.writeMu.Unlock()
		_ = conn.Close()
	}

	w.wg.Wait()
	metrics.UpdateWebSocketConnectionStatus(false)
	return err
}

func (w *WebSocketClient) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isConnected
}

// GetReconnectionStatus retorna si hay una reconexion en curso y el numero de intentos
func (w *WebSocketClient) GetReconnectionStatus() (isReconnecting bool, attemptCount int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isReconnecting, w.reconnectCount
}

func (w *WebSocketClient) readMessages(conn *websocket.Conn, done chan struct{}) {
	defer w.wg.Done()
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Error(w.ctx, "Live feed unexpected close", logging.Fields{
					"error": err.Error(),
					"url":   w.url,
				})
			}
			w.scheduleReconnect(conn, "read_error")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * w.pingInterval))

		if err := w.handleMessage(data); err != nil {
			logging.Warn(w.ctx, "Error handling live feed message", logging.Fields{
				"error": err.Error(),
				"url":   w.url,
			})
		}
	}
}

func (w *WebSocketClient) handleMessage(data []byte) error {
	var env wsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	switch env.Channel {
	case infoTypeAllMids:
		var payload allMidsData
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("invalid allMids payload: %w", err)
		}
		metrics.RecordLiveTicks(w.book.Apply(payload.Mids))
	case "subscriptionResponse":
		logging.Debug(w.ctx, "Live feed subscription acknowledged", logging.Fields{"url": w.url})
	case "pong":
	case "error":
		return fmt.Errorf("feed error: %s", string(env.Data))
	}
	return nil
}

// pingLoop sends the JSON ping Hyperliquid expects; protocol pings are not enough
func (w *WebSocketClient) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := writeJSON(&w.writeMu, conn, wsRequest{Method: "ping"}); err != nil {
				w.scheduleReconnect(conn, "ping_failed")
				return
			}
		}
	}
}

// scheduleReconnect reconnects with a doubling delay capped at maxReconnectDelay.
// Only the goroutines of the current connection may trigger it.
func (w *WebSocketClient) scheduleReconnect(failed *websocket.Conn, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil || w.conn != failed || w.isReconnecting {
		return
	}

	_ = failed.Close()
	w.conn = nil
	w.isConnected = false
	w.isReconnecting = true
	w.reconnectCount++
	metrics.UpdateWebSocketConnectionStatus(false)
	metrics.RecordWebSocketReconnectionAttempt(reason)

	delay := w.backoff(w.reconnectCount)
	logging.Info(w.ctx, "Scheduling live feed reconnection", logging.Fields{
		"delay_seconds": delay.Seconds(),
		"attempt":       w.reconnectCount,
		"reason":        reason,
		"url":           w.url,
	})

	w.reconnectTimer = time.AfterFunc(delay, w.performReconnect)
}

func (w *WebSocketClient) backoff(attempt int) time.Duration {
	delay := w.reconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= w.maxReconnectDelay {
			return w.maxReconnectDelay
		}
	}
	return delay
}

func (w *WebSocketClient) performReconnect() {
	w.mu.Lock()
	if !w.isReconnecting || w.ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	attempt := w.reconnectCount
	w.isReconnecting = false
	w.mu.Unlock()

	if err := w.Connect(); err != nil {
		logging.Warn(w.ctx, "Live feed reconnection attempt failed", logging.Fields{
			"attempt": attempt,
			"error":   err.Error(),
			"url":     w.url,
		})
		w.retryLater()
		return
	}

	w.mu.Lock()
	w.reconnectCount = 0
	w.mu.Unlock()
	logging.Info(w.ctx, "Live feed reconnected", logging.Fields{
		"attempts_taken": attempt,
		"url":            w.url,
	})
}

// retryLater schedules another attempt after a failed dial
func (w *WebSocketClient) retryLater() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil || w.isConnected || w.isReconnecting {
		return
	}
	w.isReconnecting = true
	w.reconnectCount++
	metrics.RecordWebSocketReconnectionAttempt("dial_failed")
	w.reconnectTimer = time.AfterFunc(w.backoff(w.reconnectCount), w.performReconnect)
}

func writeJSON(mu *sync.Mutex, conn *websocket.Conn, v interface{}) error {
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return conn.WriteJSON(v)
}
