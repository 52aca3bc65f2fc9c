package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/resilience"
)

type rawInfoRequest struct {
	Type string                `json:"type"`
	Req  CandleSnapshotRequest `json:"req"`
}

func respondJSON(t *testing.T, w http.ResponseWriter, status int, payload interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(payload))
}

func buildCandlePayload(coin string, start int64, n int, step int64) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		open := start + int64(i)*step
		out = append(out, map[string]interface{}{
			"t": open,
			"T": open + step - 1,
			"s": coin,
			"i": "15m",
			"o": strconv.Itoa(100 + i),
			"c": strconv.Itoa(101 + i),
			"h": strconv.Itoa(102 + i),
			"l": strconv.Itoa(99 + i),
			"v": "12.5",
			"n": 42,
		})
	}
	return out
}

// newTestClient uses a millisecond backoff so retry tests stay fast
func newTestClient(url string) *RestClient {
	policy := resilience.NewPolicy(ServiceName, config.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond})
	return NewRestClient(config.HyperliquidConfig{RestURL: url, Timeout: 2 * time.Second}, policy)
}

func candleRequest() interfaces.CandleRequest {
	end := time.UnixMilli(1_700_086_400_000)
	return interfaces.CandleRequest{
		Symbol:    "BTC",
		Interval:  "15m",
		StartTime: end.Add(-24 * time.Hour),
		EndTime:   end,
	}
}

func TestNewRestClient_Defaults(t *testing.T) {
	client := NewRestClient(config.HyperliquidConfig{}, nil)

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.Nil(t, client.limiter)
	assert.Equal(t, 4, client.policy.MaxAttempts())
}

func TestRestClient_FetchCandles_Success(t *testing.T) {
	req := candleRequest()
	var got rawInfoRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/info", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respondJSON(t, w, http.StatusOK, buildCandlePayload("BTC", got.Req.StartTime, 96, 15*60*1000))
	}))
	defer server.Close()

	candles, err := newTestClient(server.URL).FetchCandles(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "candleSnapshot", got.Type)
	assert.Equal(t, "BTC", got.Req.Coin)
	assert.Equal(t, "15m", got.Req.Interval)
	assert.Equal(t, req.StartTime.UnixMilli(), got.Req.StartTime)
	assert.Equal(t, req.EndTime.UnixMilli(), got.Req.EndTime)

	require.Len(t, candles, 96)
	assert.Equal(t, req.StartTime.UnixMilli(), candles[0].OpenTime)
	assert.InDelta(t, 101.0, candles[0].Close, 1e-9)
	assert.InDelta(t, 196.0, candles[95].Close, 1e-9)
	assert.InDelta(t, 12.5, candles[0].Volume, 1e-9)
}

func TestRestClient_FetchCandles_MalformedNumbersAreZeroed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, []map[string]interface{}{
			{"t": 1000, "T": 1999, "s": "BTC", "i": "15m", "o": "1", "c": "oops", "h": "1", "l": "1", "v": "1"},
		})
	}))
	defer server.Close()

	candles, err := newTestClient(server.URL).FetchCandles(context.Background(), candleRequest())
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Error(t, candles[0].Validate())
}

func TestRestClient_FetchCandles_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		responses []int
		wantCalls int32
		wantErrIs error
		wantOK    bool
	}{
		{
			name:      "rate limited then ok",
			responses: []int{http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusOK},
			wantCalls: 3,
			wantOK:    true,
		},
		{
			name:      "rate limited until retries are exhausted",
			responses: []int{429, 429, 429, 429, 429, 429},
			wantCalls: 4,
			wantErrIs: resilience.ErrRateLimited,
		},
		{
			name:      "server error is attempted once",
			responses: []int{http.StatusBadGateway, http.StatusOK},
			wantCalls: 1,
			wantErrIs: resilience.ErrUpstream,
		},
		{
			name:      "client error is attempted once",
			responses: []int{http.StatusUnprocessableEntity, http.StatusOK},
			wantCalls: 1,
			wantErrIs: resilience.ErrNonRetryable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				status := tt.responses[n-1]
				if status != http.StatusOK {
					respondJSON(t, w, status, map[string]string{"error": http.StatusText(status)})
					return
				}
				respondJSON(t, w, http.StatusOK, buildCandlePayload("BTC", 1000, 2, 1000))
			}))
			defer server.Close()

			candles, err := newTestClient(server.URL).FetchCandles(context.Background(), candleRequest())

			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantOK {
				require.NoError(t, err)
				assert.Len(t, candles, 2)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErrIs)
			assert.Contains(t, err.Error(), "BTC")
		})
	}
}

func TestRestClient_FetchCandles_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchCandles(context.Background(), candleRequest())
	assert.ErrorIs(t, err, resilience.ErrUpstream)
	assert.False(t, resilience.IsRateLimited(err))
}

func TestRestClient_FetchCandles_InvalidRequest(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")

	_, err := client.FetchCandles(context.Background(), interfaces.CandleRequest{Interval: "15m"})
	assert.ErrorIs(t, err, ErrEmptySymbol)

	req := candleRequest()
	req.EndTime = req.StartTime
	_, err = client.FetchCandles(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRestClient_FetchCandles_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url).FetchCandles(context.Background(), candleRequest())
	assert.ErrorIs(t, err, resilience.ErrUpstream)
}

func TestRestClient_AllMids(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rawInfoRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "allMids", req.Type)
		respondJSON(t, w, http.StatusOK, map[string]string{"BTC": "67012.5", "ETH": "3120.1", "kPEPE": "0.00095"})
	}))
	defer server.Close()

	mids, err := newTestClient(server.URL).AllMids(context.Background())
	require.NoError(t, err)
	assert.Len(t, mids, 3)
	assert.Equal(t, "0.00095", mids["kPEPE"])
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
