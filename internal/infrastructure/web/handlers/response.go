package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"sparkline-service/internal/application/dto"
)

// maxBodyBytes limita el body de los POST/PUT
const maxBodyBytes = 256 << 10

// writeJSONResponse escribe una respuesta JSON
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers already sent, only the body can carry the failure
		_, _ = w.Write([]byte(`{"error":"ENCODING_ERROR","message":"Failed to encode response"}`))
	}
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSONResponse(w, statusCode, dto.NewErrorResponseWithCode(http.StatusText(statusCode), message, code))
}

// decodeSymbolsRequest lee y valida el body de prefetch, hydrate y visibility
func decodeSymbolsRequest(r *http.Request) (*dto.SymbolsRequest, error) {
	var req dto.SymbolsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyBody
		}
		return nil, err
	}
	if req.MarketType == "" {
		req.MarketType = "perp"
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

var errEmptyBody = errors.New("request body is required")

// errorCode maps validation errors to stable codes for clients
func errorCode(err error) string {
	switch {
	case errors.Is(err, dto.ErrInvalidMarketType):
		return "INVALID_MARKET_TYPE"
	case errors.Is(err, dto.ErrNoSymbols):
		return "NO_SYMBOLS"
	case errors.Is(err, dto.ErrTooManySymbols):
		return "TOO_MANY_SYMBOLS"
	default:
		return "INVALID_REQUEST"
	}
}
