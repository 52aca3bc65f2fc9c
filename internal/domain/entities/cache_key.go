package entities

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCacheKey = errors.New("invalid cache key")

// CacheKey identifies one sparkline. Its string form is "<marketType>:<symbol>".
type CacheKey struct {
	MarketType MarketType
	Symbol     string
}

func NewCacheKey(marketType MarketType, symbol string) CacheKey {
	return CacheKey{MarketType: marketType, Symbol: symbol}
}

func (k CacheKey) String() string {
	return string(k.MarketType) + ":" + k.Symbol
}

// ParseCacheKey splits on the first colon only, so dex prefixed symbols
// such as "perp:xyz:TSLA" keep their own colon.
func ParseCacheKey(raw string) (CacheKey, error) {
	idx := strings.Index(raw, ":")
	if idx <= 0 || idx == len(raw)-1 {
		return CacheKey{}, fmt.Errorf("%w: %q", ErrInvalidCacheKey, raw)
	}
	return CacheKey{MarketType: MarketType(raw[:idx]), Symbol: raw[idx+1:]}, nil
}

// KeysFor builds cache keys for a list of symbols sharing a market type.
func KeysFor(marketType MarketType, symbols []string) []CacheKey {
	keys := make([]CacheKey, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		keys = append(keys, CacheKey{MarketType: marketType, Symbol: s})
	}
	return keys
}
