package telemetry

import (
	"expvar"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

var (
	apiRequestsTotal         = expvar.NewInt("api_requests_total")
	apiRequestsErrorsTotal   = expvar.NewInt("api_requests_errors_total")
	apiRequestLatencyMsTotal = expvar.NewInt("api_request_latency_ms_total")
	apiRequestLatencySamples = expvar.NewInt("api_request_latency_samples_total")
	apiRequestsByRoute       = expvar.NewMap("api_requests_by_route")
	apiRequestErrorsByRoute  = expvar.NewMap("api_request_errors_by_route")
	syncRunsTotal            = expvar.NewInt("sync_runs_total")
	syncCoinFailuresTotal    = expvar.NewInt("sync_coin_failures_total")
	syncCoinsTotal           = expvar.NewInt("sync_coins_total")
	candleCacheHitsTotal     = expvar.NewInt("candle_cache_hits_total")
	candleCacheMissesTotal   = expvar.NewInt("candle_cache_misses_total")
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// APIRequestMetricsMiddleware records request volume, error rate, and latency per chi route.
func APIRequestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		key := r.Method + " " + requestRoute(r)

		apiRequestsTotal.Add(1)
		apiRequestsByRoute.Add(key, 1)

		if recorder.status >= http.StatusBadRequest {
			apiRequestsErrorsTotal.Add(1)
			apiRequestErrorsByRoute.Add(key, 1)
		}

		apiRequestLatencyMsTotal.Add(time.Since(start).Milliseconds())
		apiRequestLatencySamples.Add(1)
	})
}

func requestRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	if p := strings.TrimSpace(r.URL.Path); p != "" {
		return p
	}
	return "/unknown"
}

// SyncRun records one SyncMany pass.
func SyncRun(coins, failures int) {
	syncRunsTotal.Add(1)
	syncCoinsTotal.Add(int64(coins))
	syncCoinFailuresTotal.Add(int64(failures))
}

func CandleCacheHit()  { candleCacheHitsTotal.Add(1) }
func CandleCacheMiss() { candleCacheMissesTotal.Add(1) }
