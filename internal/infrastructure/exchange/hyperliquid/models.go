package hyperliquid

import (
	"encoding/json"

	"sparkline-service/internal/domain/entities"
)

const (
	infoTypeCandleSnapshot = "candleSnapshot"
	infoTypeAllMids        = "allMids"
)

// InfoRequest es el sobre comun de todas las consultas al endpoint /info
type InfoRequest struct {
	Type string      `json:"type"`
	Req  interface{} `json:"req,omitempty"`
}

// CandleSnapshotRequest son los parametros de candleSnapshot (tiempos en ms)
type CandleSnapshotRequest struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// CandleSnapshot es una vela tal como la devuelve la API.
// Los precios llegan como strings decimales.
type CandleSnapshot struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Trades    int    `json:"n"`
}

// ToCandle converts the wire candle. Unparseable numbers become zero so the
// candle is rejected later by entities.Candle.Validate.
func (s CandleSnapshot) ToCandle() entities.Candle {
	return entities.Candle{
		OpenTime:  s.OpenTime,
		CloseTime: s.CloseTime,
		Open:      parseNumber(s.Open),
		High:      parseNumber(s.High),
		Low:       parseNumber(s.Low),
		Close:     parseNumber(s.Close),
		Volume:    parseNumber(s.Volume),
	}
}

func parseNumber(raw string) float64 {
	v, _ := entities.ParseDecimal(raw)
	return v
}

// --- WebSocket ---

type wsSubscription struct {
	Type string `json:"type"`
}

// wsRequest covers subscribe and ping messages
type wsRequest struct {
	Method       string          `json:"method"`
	Subscription *wsSubscription `json:"subscription,omitempty"`
}

// wsEnvelope is every server push: {"channel": ..., "data": ...}
type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type allMidsData struct {
	Mids map[string]string `json:"mids"`
}
