package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"sparkline-service/internal/application/dto"
	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/logging"
)

// SparklineHandler maneja los endpoints de sparklines
type SparklineHandler struct {
	service interfaces.SparklineService
	mapper  *dto.SparklineMapper
	clock   clock.Clock
}

// NewSparklineHandler crea una nueva instancia del handler
func NewSparklineHandler(service interfaces.SparklineService, mapper *dto.SparklineMapper, clk clock.Clock) *SparklineHandler {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &SparklineHandler{service: service, mapper: mapper, clock: clk}
}

// GetSparkline handles GET /api/v1/sparklines/{market}/{symbol}.
// Responde 202 cuando la serie todavía se está cargando.
func (h *SparklineHandler) GetSparkline(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	market, err := dto.ParseMarketType(vars["market"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), errorCode(err))
		return
	}
	symbol := vars["symbol"]
	if symbol == "" {
		writeError(w, http.StatusBadRequest, dto.ErrNoSymbols.Error(), errorCode(dto.ErrNoSymbols))
		return
	}
	live, _ := strconv.ParseBool(r.URL.Query().Get("live"))

	key := entities.NewCacheKey(market, symbol)
	series, hasLive, ok := h.lookup(r.Context(), key, live)
	if !ok {
		writeJSONResponse(w, http.StatusAccepted, dto.PendingResponse{
			Key:          key.String(),
			Status:       "pending",
			CacheVersion: h.service.CacheVersion(),
		})
		return
	}

	writeJSONResponse(w, http.StatusOK, h.mapper.ToSparklineData(key, series, hasLive, h.clock.Now()))
}

// ListSparklines handles GET /api/v1/sparklines?market=perp&symbols=BTC,ETH
func (h *SparklineHandler) ListSparklines(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req, err := dto.NewListRequest(query.Get("market"), query.Get("symbols"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), errorCode(err))
		return
	}
	live, _ := strconv.ParseBool(query.Get("live"))

	now := h.clock.Now()
	items := make([]dto.SparklineData, 0, len(req.Symbols))
	var pending []string
	for _, key := range entities.KeysFor(req.Market(), req.Symbols) {
		series, hasLive, ok := h.lookup(r.Context(), key, live)
		if !ok {
			pending = append(pending, key.String())
			continue
		}
		items = append(items, h.mapper.ToSparklineData(key, series, hasLive, now))
	}

	writeJSONResponse(w, http.StatusOK, h.mapper.ToListResponse(items, pending, h.service.CacheVersion()))
}

func (h *SparklineHandler) lookup(ctx context.Context, key entities.CacheKey, live bool) (entities.Series, bool, bool) {
	if live {
		merged, ok := h.service.GetLiveSparkline(ctx, key)
		return merged.Series, merged.HasLivePoint, ok
	}
	series, ok := h.service.GetSparklineData(ctx, key)
	return series, false, ok
}

// Prefetch handles POST /api/v1/sparklines/prefetch
func (h *SparklineHandler) Prefetch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSymbolsRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), errorCode(err))
		return
	}

	h.service.PrefetchSparklines(r.Context(), req.Symbols, req.Market())
	writeJSONResponse(w, http.StatusAccepted, dto.AcceptedResponse{
		Message:    "prefetch scheduled",
		MarketType: req.MarketType,
		Symbols:    req.Symbols,
	})
}

// Hydrate handles POST /api/v1/sparklines/hydrate. Bloquea hasta que la
// lectura del tier persistente termina; el fetch queda en segundo plano.
func (h *SparklineHandler) Hydrate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSymbolsRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), errorCode(err))
		return
	}

	if err := h.service.HydrateFromCache(r.Context(), req.Symbols, req.Market()); err != nil {
		logging.WarnWithError(r.Context(), "Hydrate request aborted", err, logging.Fields{
			logging.FieldItemCount: len(req.Symbols),
		})
		writeError(w, http.StatusServiceUnavailable, "hydrate aborted", "HYDRATE_ABORTED")
		return
	}

	writeJSONResponse(w, http.StatusOK, dto.AcceptedResponse{
		Message:    "hydrated",
		MarketType: req.MarketType,
		Symbols:    req.Symbols,
	})
}

// SetVisibility handles PUT /api/v1/visibility
func (h *SparklineHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSymbolsRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), errorCode(err))
		return
	}

	h.service.SetVisibleItems(r.Context(), req.Symbols, req.Market())
	writeJSONResponse(w, http.StatusOK, dto.AcceptedResponse{
		Message:    "visibility updated",
		MarketType: req.MarketType,
		Symbols:    req.Symbols,
	})
}

// ClearVisibility handles DELETE /api/v1/visibility
func (h *SparklineHandler) ClearVisibility(w http.ResponseWriter, r *http.Request) {
	h.service.ClearVisibility(r.Context())
	writeJSONResponse(w, http.StatusOK, dto.AcceptedResponse{Message: "visibility cleared"})
}

// SetFetching handles POST /api/v1/fetching/{action} with action pause or resume
func (h *SparklineHandler) SetFetching(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["action"] {
	case "pause":
		h.service.PauseFetching()
	case "resume":
		h.service.ResumeFetching()
	default:
		writeError(w, http.StatusNotFound, "unknown fetching action", "UNKNOWN_ACTION")
		return
	}
	writeJSONResponse(w, http.StatusOK, dto.LifecycleResponse{
		Event:          "fetching_" + mux.Vars(r)["action"],
		RefreshTrigger: h.service.RefreshTrigger(),
		Paused:         h.service.Stats().Paused,
	})
}
