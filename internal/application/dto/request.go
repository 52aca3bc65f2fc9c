package dto

import (
	"errors"
	"fmt"
	"strings"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/pkg/utils"
)

// MaxSymbolsPerRequest limita el tamaño de listas en una sola request
const MaxSymbolsPerRequest = 500

var (
	ErrInvalidMarketType = errors.New("invalid market type")
	ErrNoSymbols         = errors.New("at least one symbol is required")
	ErrTooManySymbols    = errors.New("too many symbols")
)

// SymbolsRequest is the body of prefetch, hydrate and visibility requests
type SymbolsRequest struct {
	Symbols    []string `json:"symbols"`
	MarketType string   `json:"market_type"`
}

// ParseMarketType valida el tipo de mercado recibido por HTTP
func ParseMarketType(raw string) (entities.MarketType, error) {
	mt := entities.MarketType(strings.ToLower(strings.TrimSpace(raw)))
	if !mt.Valid() {
		return "", fmt.Errorf("%w: %q (expected perp or spot)", ErrInvalidMarketType, raw)
	}
	return mt, nil
}

// NewListRequest builds a request from the list endpoint query parameters
func NewListRequest(marketParam, symbolsParam string) (*SymbolsRequest, error) {
	if marketParam == "" {
		marketParam = string(entities.MarketPerp)
	}
	req := &SymbolsRequest{Symbols: utils.SplitCSV(symbolsParam), MarketType: marketParam}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate normalises the request in place. Symbols keep their case since
// spot and dex symbols are case sensitive upstream.
func (r *SymbolsRequest) Validate() error {
	mt, err := ParseMarketType(r.MarketType)
	if err != nil {
		return err
	}
	r.MarketType = string(mt)

	clean := make([]string, 0, len(r.Symbols))
	seen := make(map[string]bool, len(r.Symbols))
	for _, s := range r.Symbols {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		clean = append(clean, s)
	}
	if len(clean) == 0 {
		return ErrNoSymbols
	}
	if len(clean) > MaxSymbolsPerRequest {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManySymbols, len(clean), MaxSymbolsPerRequest)
	}
	r.Symbols = clean
	return nil
}

// Market returns the validated market type
func (r *SymbolsRequest) Market() entities.MarketType {
	return entities.MarketType(r.MarketType)
}
