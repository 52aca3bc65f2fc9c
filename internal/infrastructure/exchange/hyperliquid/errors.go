package hyperliquid

import "errors"

var (
	ErrEmptySymbol      = errors.New("hyperliquid: symbol is required")
	ErrInvalidRequest   = errors.New("hyperliquid: invalid request")
	ErrConnectionFailed = errors.New("connection to hyperliquid failed")
	ErrWebSocketClosed  = errors.New("websocket connection closed")
)
