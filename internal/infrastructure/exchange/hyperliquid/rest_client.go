package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
	"sparkline-service/internal/infrastructure/ratelimit"
	"sparkline-service/internal/infrastructure/resilience"
)

const (
	ServiceName     = "hyperliquid"
	DefaultBaseURL  = "https://api.hyperliquid.xyz"
	DefaultTimeout  = 10 * time.Second
	infoPath        = "/info"
	outboundLimiter = "hyperliquid_outbound"
)

// RestClient consulta el endpoint /info de Hyperliquid.
// Implementa interfaces.CandleSource.
type RestClient struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
	policy         *resilience.Policy
	limiter        *ratelimit.TokenBucket
	logger         logging.ExternalAPILogger
}

var _ interfaces.CandleSource = (*RestClient)(nil)

type Option func(*RestClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *RestClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter replaces the outbound token bucket; nil disables outbound limiting
func WithLimiter(tb *ratelimit.TokenBucket) Option {
	return func(c *RestClient) { c.limiter = tb }
}

// NewRestClient crea el cliente REST. Un policy nil usa los valores de retry por defecto.
func NewRestClient(cfg config.HyperliquidConfig, policy *resilience.Policy, opts ...Option) *RestClient {
	baseURL := strings.TrimRight(cfg.RestURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if policy == nil {
		policy = resilience.NewPolicy(ServiceName, config.GetDefaultConfig().Retry)
	}

	c := &RestClient{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		requestTimeout: timeout,
		policy:         policy,
		logger:         logging.ExternalAPI(),
	}
	if cfg.RequestsCapacity > 0 && cfg.RequestsRefillRate > 0 {
		c.limiter = ratelimit.NewTokenBucket(cfg.RequestsCapacity, cfg.RequestsRefillRate)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCandles obtiene las velas de [StartTime, EndTime] con retry ante rate limit
func (c *RestClient) FetchCandles(ctx context.Context, req interfaces.CandleRequest) ([]entities.Candle, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, ErrEmptySymbol
	}
	if req.Interval == "" || !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("%w: interval %q, window %s..%s", ErrInvalidRequest, req.Interval, req.StartTime, req.EndTime)
	}

	payload := InfoRequest{
		Type: infoTypeCandleSnapshot,
		Req: CandleSnapshotRequest{
			Coin:      req.Symbol,
			Interval:  req.Interval,
			StartTime: req.StartTime.UnixMilli(),
			EndTime:   req.EndTime.UnixMilli(),
		},
	}

	snapshots, err := resilience.Execute(ctx, c.policy, func(ctx context.Context) ([]CandleSnapshot, error) {
		var out []CandleSnapshot
		if err := c.doInfoRequest(ctx, payload, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", req.Symbol, err)
	}

	candles := make([]entities.Candle, 0, len(snapshots))
	for _, s := range snapshots {
		candles = append(candles, s.ToCandle())
	}
	return candles, nil
}

// AllMids devuelve el precio medio actual de cada coin
func (c *RestClient) AllMids(ctx context.Context) (map[string]string, error) {
	mids, err := resilience.Execute(ctx, c.policy, func(ctx context.Context) (map[string]string, error) {
		out := make(map[string]string)
		if err := c.doInfoRequest(ctx, InfoRequest{Type: infoTypeAllMids}, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mids: %w", err)
	}
	return mids, nil
}

// doInfoRequest performs one POST /info attempt and classifies the outcome
func (c *RestClient) doInfoRequest(ctx context.Context, payload InfoRequest, out interface{}) error {
	endpoint := infoPath + ":" + payload.Type

	if c.limiter != nil && !c.limiter.Allow() {
		metrics.RecordRateLimitWait(outboundLimiter)
		if err := c.limiter.Wait(ctx, 1); err != nil {
			return err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", resilience.ErrNonRetryable, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+infoPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", resilience.ErrNonRetryable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.RequestStarted(ctx, ServiceName, endpoint, http.MethodPost)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.RecordExternalAPICall(ServiceName, endpoint, 0, duration.Seconds())
		c.logger.RequestFailed(ctx, ServiceName, endpoint, 0, err, duration)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: request timeout after %s", resilience.ErrUpstream, c.requestTimeout)
		}
		return fmt.Errorf("%w: %v", resilience.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	metrics.RecordExternalAPICall(ServiceName, endpoint, resp.StatusCode, duration.Seconds())

	if resp.StatusCode != http.StatusOK {
		statusErr := resilience.ClassifyStatus(endpoint, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")))
		if resp.StatusCode == http.StatusTooManyRequests {
			metrics.RecordUpstreamRateLimitDrop(endpoint)
		}
		c.logger.RequestFailed(ctx, ServiceName, endpoint, resp.StatusCode, statusErr, duration)
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.RequestFailed(ctx, ServiceName, endpoint, resp.StatusCode, err, duration)
		return fmt.Errorf("%w: failed to decode %s response: %w", resilience.ErrUpstream, payload.Type, err)
	}

	c.logger.RequestCompleted(ctx, ServiceName, endpoint, resp.StatusCode, duration)
	return nil
}

// parseRetryAfter only understands the delta-seconds form
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
