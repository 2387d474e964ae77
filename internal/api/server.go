package api

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"github.com/kjannette/coinledger/internal/charts"
	"github.com/kjannette/coinledger/internal/external"
	"github.com/kjannette/coinledger/internal/httputil"
	"github.com/kjannette/coinledger/internal/models"
	"github.com/kjannette/coinledger/internal/telemetry"
)

const maxDaysParam = 3650

type PriceStore interface {
	Read(ctx context.Context, coinID string) (models.PriceSeries, error)
}

type Syncer interface {
	GetUpToDateSeries(ctx context.Context, coinID, vsCurrency string, maxDays int) (models.PriceSeries, error)
}

type Ledger interface {
	Insert(ctx context.Context, inv models.Investment) (bool, error)
	BulkInsert(ctx context.Context, invs []models.Investment) (models.BulkResult, error)
	ListByCoin(ctx context.Context, coinID string) ([]models.Investment, error)
	ListAll(ctx context.Context) ([]models.Investment, error)
	Delete(ctx context.Context, coinID string, date civil.Date, investor string) error
}

type ChartBuilder interface {
	Compare(ctx context.Context, coins []string) (*charts.Comparison, error)
	Candles(ctx context.Context, coinID string, days int) (*charts.CandleSet, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Prices     PriceStore
	Sync       Syncer
	Ledger     Ledger
	Charts     ChartBuilder
	DB         Pinger
	VsCurrency string
	MaxDays    int
	Logger     *slog.Logger
}

type Server struct {
	prices     PriceStore
	sync       Syncer
	ledger     Ledger
	charts     ChartBuilder
	db         Pinger
	vsCurrency string
	maxDays    int
	log        *slog.Logger
	router     chi.Router
	httpServer *http.Server
	apiKey     string
}

func NewServer(deps Deps, port int, apiKey, corsOrigin string) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.VsCurrency == "" {
		deps.VsCurrency = "usd"
	}
	if deps.MaxDays <= 0 {
		deps.MaxDays = 365
	}
	s := &Server{
		prices:     deps.Prices,
		sync:       deps.Sync,
		ledger:     deps.Ledger,
		charts:     deps.Charts,
		db:         deps.DB,
		vsCurrency: deps.VsCurrency,
		maxDays:    deps.MaxDays,
		log:        deps.Logger.With("component", "api"),
		apiKey:     apiKey,
	}

	r := chi.NewRouter()
	r.Use(telemetry.APIRequestMetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler { return corsMiddleware(next, corsOrigin) })
	r.Use(s.authMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)
	r.Handle("/debug/vars", expvar.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/prices/{coin}", s.handlePrices)
		r.Get("/prices/{coin}/stored", s.handleStoredPrices)

		r.Get("/investments", s.handleListInvestments)
		r.Post("/investments", s.handleCreateInvestment)
		r.Post("/investments/import", s.handleImportInvestments)
		r.Get("/investments/export", s.handleExportInvestments)
		r.Get("/investments/{coin}", s.handleCoinInvestments)
		r.Delete("/investments/{coin}/{date}/{investor}", s.handleDeleteInvestment)

		r.Get("/profit", s.handleProfit)
		r.Get("/profit/export", s.handleProfitExport)

		r.Get("/charts/compare", s.handleCompare)
		r.Get("/charts/candles/{coin}", s.handleCandles)
	})
	s.router = r

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.apiKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- request helpers ---

func coinParam(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(pathParam(r, "coin")))
}

// pathParam returns the decoded route segment. chi matches on the escaped
// path when one is present, so "a%2Fb" arrives undecoded.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// parseDays reads ?days=, falling back to def. ok is false for a value that
// is not a positive integer.
func parseDays(r *http.Request, def int) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("days"))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxDaysParam {
		n = maxDaysParam
	}
	return n, true
}

func decodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUpstreamError maps market-data failures: an unknown coin is a 404,
// exhausted retries a 502, anything else a 500.
func (s *Server) writeUpstreamError(w http.ResponseWriter, what string, err error) {
	var se *external.StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "unknown coin")
	case errors.As(err, &se), errors.Is(err, httputil.ErrRetriesExhausted):
		s.log.Warn(what+" failed upstream", "err", err)
		writeError(w, http.StatusBadGateway, "market data unavailable")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.log.Error(what+" failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to "+what)
	}
}
