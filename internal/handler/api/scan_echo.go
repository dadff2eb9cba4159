package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	models "SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	"SignalScan/internal/service/metrics"
	"SignalScan/internal/service/ratelimit"
	"SignalScan/internal/usecase"
	pkgcache "SignalScan/pkg/cache"
	xhttp "SignalScan/pkg/http"
	applogger "SignalScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// lastScanKey caches the most recent report so a restarted instance
// behind redis can still serve it.
const lastScanKey = "scan:latest"

const lastScanTTL = time.Minute

// ScanEchoHandler exposes the scanner over HTTP: trigger scans, read
// stored signals, look up live quotes and inspect runtime status.
type ScanEchoHandler struct {
	logger   *applogger.Logger
	orch     *usecase.ScanOrchestrator
	window   *ratelimit.Window
	store    domrepo.SignalStore
	quotes   *usecase.QuoteCollector
	sched    *usecase.ScanScheduler
	cache    pkgcache.Service
	cacheTTL time.Duration
}

func NewScanEchoHandler(logger *applogger.Logger, orch *usecase.ScanOrchestrator, window *ratelimit.Window) *ScanEchoHandler {
	metrics.Register()
	return &ScanEchoHandler{logger: logger, orch: orch, window: window, cacheTTL: 15 * time.Second}
}

// SetStore wires the signal store backing the read endpoints. Without a
// store those endpoints serve the in-memory report of the last scan.
func (h *ScanEchoHandler) SetStore(s domrepo.SignalStore) { h.store = s }

// SetQuotes wires the live quote collector.
func (h *ScanEchoHandler) SetQuotes(q *usecase.QuoteCollector) { h.quotes = q }

// SetScheduler wires the background scheduler for status reporting.
func (h *ScanEchoHandler) SetScheduler(s *usecase.ScanScheduler) { h.sched = s }

// SetCache enables response caching on the read endpoints. Zero ttl
// keeps the current one.
func (h *ScanEchoHandler) SetCache(c pkgcache.Service, ttl time.Duration) {
	h.cache = c
	if ttl > 0 {
		h.cacheTTL = ttl
	}
}

func (h *ScanEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.HealthCheck)

	g := e.Group("/api")
	g.POST("/scan", h.Scan)
	g.GET("/scan/last", h.LastScan)
	g.GET("/signals/latest", h.LatestSignals)
	g.GET("/signals/:symbol", h.SymbolSignals)
	g.GET("/quotes/:symbol", h.Quote)
	g.GET("/status", h.Status)
}

// HealthCheck is the liveness probe.
func (h *ScanEchoHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Scan triggers a synchronous scan and returns the full report.
// Overlapping requests get 409 instead of queueing behind the lock.
func (h *ScanEchoHandler) Scan(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.ScanAPILatency.WithLabelValues("scan").Observe(time.Since(start).Seconds()) }()

	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	opts := usecase.ScanOptions{
		Symbols:     req.Symbols,
		Timeframe:   domrepo.NormalizeTimeframe(req.Timeframe),
		MinStrength: req.MinStrength,
		TopResults:  req.TopResults,
		MaxStocks:   req.MaxStocks,
	}

	report, err := h.orch.Scan(c.Request().Context(), opts)
	if err != nil {
		if errors.Is(err, usecase.ErrScanInProgress) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("a scan is already running"))
		}
		h.logger.Error("scan usecase error", applogger.Error(err))
		metrics.ScanAPIErrors.WithLabelValues("scan").Inc()
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(report); err == nil {
			if err := h.cache.Set(c.Request().Context(), lastScanKey, string(b), lastScanTTL); err != nil {
				h.logger.Warn("scan cache_set_error", applogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, report)
}

// LastScan returns the report of the most recent completed scan. The
// in-memory report wins; the cache covers restarts.
func (h *ScanEchoHandler) LastScan(c echo.Context) error {
	if report := h.orch.LastReport(); report != nil {
		return xhttp.SuccessResponse(c, report)
	}
	if h.cache != nil {
		var cached string
		if err := h.cache.Get(c.Request().Context(), lastScanKey, &cached); err == nil {
			return xhttp.SuccessResponse(c, json.RawMessage(cached))
		}
	}
	return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no scan has completed yet"))
}

func (h *ScanEchoHandler) LatestSignals(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.ScanAPILatency.WithLabelValues("signals_latest").Observe(time.Since(start).Seconds())
	}()

	req := &models.LatestSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.Timeframe)

	cacheKey := pkgcache.GenerateKeyWithParams("signals:latest", string(tf), req.Limit)
	if h.cache != nil {
		var cached string
		switch err := h.cache.Get(c.Request().Context(), cacheKey, &cached); {
		case err == nil:
			h.logger.Debug("latest_signals cache_hit", applogger.String("key", cacheKey))
			return xhttp.SuccessResponse(c, json.RawMessage(cached))
		case !errors.Is(err, pkgcache.ErrCacheMiss):
			h.logger.Warn("latest_signals cache_get_error", applogger.Error(err))
		default:
			h.logger.Debug("latest_signals cache_miss", applogger.String("key", cacheKey))
		}
	}

	signals, err := h.latestSignals(c.Request().Context(), tf, req.Limit)
	if err != nil {
		h.logger.Error("latest signals query error", applogger.Error(err))
		metrics.ScanAPIErrors.WithLabelValues("signals_latest").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if b, err := json.Marshal(signals); err == nil {
			if err := h.cache.Set(c.Request().Context(), cacheKey, string(b), h.cacheTTL); err != nil {
				h.logger.Warn("latest_signals cache_set_error", applogger.Error(err))
			}
		}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, signals)
}

// latestSignals reads from the store when wired and otherwise serves the
// in-memory report of the last scan, so the endpoint keeps working when
// storage is disabled.
func (h *ScanEchoHandler) latestSignals(ctx context.Context, tf domrepo.Timeframe, limit int) ([]*models.TradeSignal, error) {
	if h.store != nil {
		return h.store.QueryLatest(ctx, tf, limit)
	}
	report := h.orch.LastReport()
	if report == nil || report.Timeframe != string(tf) {
		return []*models.TradeSignal{}, nil
	}
	out := make([]*models.TradeSignal, 0, len(report.Results))
	for i := range report.Results {
		if len(out) == limit {
			break
		}
		out = append(out, &report.Results[i])
	}
	return out, nil
}

func (h *ScanEchoHandler) SymbolSignals(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.ScanAPILatency.WithLabelValues("signals_symbol").Observe(time.Since(start).Seconds())
	}()

	req := &models.SymbolSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("signal storage is disabled"))
	}
	var tf domrepo.Timeframe
	if req.Timeframe != "" {
		tf = domrepo.NormalizeTimeframe(req.Timeframe)
	}
	var from, to time.Time
	if req.From != "" || req.To != "" {
		from = xhttp.ParseTimeDefault(req.From, time.Time{})
		to = xhttp.ParseTimeDefault(req.To, time.Time{})
		from, to = xhttp.AlignFromTo(from, to, string(tf))
	}

	signals, err := h.store.QueryBySymbol(c.Request().Context(), req.Symbol, tf, from, to, req.Limit)
	if err != nil {
		h.logger.Error("symbol signals query error", applogger.String("symbol", req.Symbol), applogger.Error(err))
		metrics.ScanAPIErrors.WithLabelValues("signals_symbol").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, signals)
}

func (h *ScanEchoHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.quotes == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("live quotes are disabled"))
	}
	q, ok := h.quotes.Latest(req.Symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no quote for %s", req.Symbol))
	}
	return xhttp.SuccessResponse(c, q)
}

type rateLimitStatus struct {
	InWindow int `json:"in_window"`
	Total    int `json:"total"`
}

type statusResponse struct {
	Scanning        bool                     `json:"scanning"`
	UniverseSize    int                      `json:"universe_size"`
	RateLimit       rateLimitStatus          `json:"rate_limit"`
	StreamConnected bool                     `json:"stream_connected"`
	Storage         string                   `json:"storage,omitempty"`
	Scheduler       *usecase.SchedulerStatus `json:"scheduler,omitempty"`
}

// Status reports scanner runtime state: lock, rate-limit window usage,
// stream connectivity, storage health and scheduler counters.
func (h *ScanEchoHandler) Status(c echo.Context) error {
	st := statusResponse{
		Scanning:     h.orch.Running(),
		UniverseSize: len(h.orch.Universe()),
		RateLimit: rateLimitStatus{
			InWindow: h.window.InWindow(),
			Total:    h.window.Total(),
		},
	}
	if h.quotes != nil {
		st.StreamConnected = h.quotes.IsConnected()
	}
	if h.sched != nil {
		s := h.sched.Status()
		st.Scheduler = &s
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			st.Storage = "unavailable"
		} else {
			st.Storage = "ok"
		}
	}
	return xhttp.SuccessResponse(c, st)
}
