// Package server exposes the HTTP JSON API, health endpoints and the
// Prometheus scrape handler.
//
// Endpoints:
//   - GET /v1/account   - scalar account summary plus referral standing
//   - GET /v1/positions - open positions
//   - GET /v1/vaults    - vault deposits
//   - GET /v1/orders    - resting orders
//   - GET /v1/trades    - recent trades
//   - GET /v1/funding   - funding totals and per-coin breakdown
//   - GET /v1/interval  - current refresh interval
//   - PUT /v1/interval  - reconfigure the refresh interval
//   - GET /healthz, /readyz, /metrics
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hyperwatch/internal/account"
	"hyperwatch/internal/coordinator"
	"hyperwatch/internal/observability"
	"hyperwatch/internal/sensor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxRequestBodySize = 1 << 20 // 1 MB

// Snapshots is the read-and-reconfigure surface the API needs from the
// refresh coordinator.
type Snapshots interface {
	Latest() (*account.State, error)
	Interval() time.Duration
	SetInterval(d time.Duration) error
}

// Server serves the JSON API over the configured listener.
type Server struct {
	addr      string
	wallet    string // short form, for the account projection
	snapshots Snapshots
	health    *observability.HealthChecker
	metrics   *observability.Metrics
	log       zerolog.Logger
	http      *http.Server
}

func New(addr, wallet string, snapshots Snapshots, health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *Server {
	s := &Server{
		addr:      addr,
		wallet:    wallet,
		snapshots: snapshots,
		health:    health,
		metrics:   metrics,
		log:       log,
	}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed for handler tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/v1/account", s.instrument("account", s.handleAccount)).Methods(http.MethodGet)
	r.HandleFunc("/v1/positions", s.instrument("positions", s.handlePositions)).Methods(http.MethodGet)
	r.HandleFunc("/v1/vaults", s.instrument("vaults", s.handleVaults)).Methods(http.MethodGet)
	r.HandleFunc("/v1/orders", s.instrument("orders", s.handleOrders)).Methods(http.MethodGet)
	r.HandleFunc("/v1/trades", s.instrument("trades", s.handleTrades)).Methods(http.MethodGet)
	r.HandleFunc("/v1/funding", s.instrument("funding", s.handleFunding)).Methods(http.MethodGet)
	r.HandleFunc("/v1/interval", s.instrument("interval", s.handleGetInterval)).Methods(http.MethodGet)
	r.HandleFunc("/v1/interval", s.instrument("interval", s.handlePutInterval)).Methods(http.MethodPut)

	if s.health != nil {
		r.HandleFunc("/healthz", s.health.LivenessHandler).Methods(http.MethodGet)
		r.HandleFunc("/readyz", s.health.ReadinessHandler).Methods(http.MethodGet)
	}
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// Run starts the listener and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("http shutdown")
		}
	}()

	s.log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// Handlers
// ============================================================================

// accountMetric is one scalar from the metric table, rendered with its
// display metadata.
type accountMetric struct {
	Key       string  `json:"key"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit,omitempty"`
	Precision int     `json:"precision"`
	Value     float64 `json:"value"`
}

type accountResponse struct {
	Wallet      string                  `json:"wallet,omitempty"`
	RefreshedAt time.Time               `json:"refreshed_at"`
	Metrics     []accountMetric         `json:"metrics"`
	Referral    account.ReferralSummary `json:"referral"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	state, ok := s.snapshot(w)
	if !ok {
		return
	}

	resp := accountResponse{
		Wallet:      s.wallet,
		RefreshedAt: state.RefreshedAt,
		Metrics:     make([]accountMetric, 0, len(sensor.Account)),
		Referral:    state.Referral,
	}
	for _, d := range sensor.Account {
		resp.Metrics = append(resp.Metrics, accountMetric{
			Key: d.Key, Name: d.Name, Unit: d.Unit, Precision: d.Precision,
			Value: d.Value(state),
		})
	}
	s.respond(w, http.StatusOK, resp)
}

// positionView is a position plus its funding attributes, joined from
// the per-coin funding breakdown when one exists.
type positionView struct {
	account.Position
	FundingRate           float64 `json:"funding_rate"`
	Funding24h            float64 `json:"funding_24h"`
	EstimatedDailyFunding float64 `json:"estimated_daily_funding"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	state, ok := s.snapshot(w)
	if !ok {
		return
	}

	views := make([]positionView, 0, len(state.Positions))
	for _, p := range state.Positions {
		v := positionView{Position: p}
		if f, ok := state.FundingByCoin[p.Coin]; ok {
			v.FundingRate = f.FundingRate
			v.Funding24h = f.Funding24h
			v.EstimatedDailyFunding = f.EstimatedDailyFunding(p.PositionValue)
		}
		views = append(views, v)
	}

	s.respond(w, http.StatusOK, map[string]interface{}{
		"refreshed_at": state.RefreshedAt,
		"positions":    views,
	})
}

func (s *Server) handleVaults(w http.ResponseWriter, r *http.Request) {
	state, ok := s.snapshot(w)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"refreshed_at":       state.RefreshedAt,
		"total_vault_equity": state.TotalVaultEquity,
		"vaults":             state.Vaults,
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	state, ok := s.snapshot(w)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"refreshed_at": state.RefreshedAt,
		"open_orders":  state.OpenOrders,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	state, ok := s.snapshot(w)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"refreshed_at":  state.RefreshedAt,
		"recent_trades": state.RecentTrades,
	})
}

func (s *Server) handleFunding(w http.ResponseWriter, r *http.Request) {
	state, ok := s.snapshot(w)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"refreshed_at":    state.RefreshedAt,
		"funding_24h":     state.Funding24h,
		"funding_7d":      state.Funding7d,
		"funding_30d":     state.Funding30d,
		"funding_by_coin": state.FundingByCoin,
	})
}

type intervalResponse struct {
	Seconds int `json:"seconds"`
}

func (s *Server) handleGetInterval(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, intervalResponse{Seconds: int(s.snapshots.Interval() / time.Second)})
}

func (s *Server) handlePutInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalResponse
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.snapshots.SetInterval(time.Duration(req.Seconds) * time.Second); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respond(w, http.StatusOK, intervalResponse{Seconds: int(s.snapshots.Interval() / time.Second)})
}

// ============================================================================
// Helpers
// ============================================================================

// snapshot resolves the latest account state or writes the appropriate
// error response: 503 before the first refresh, 502 when the last
// refresh failed with nothing to fall back to.
func (s *Server) snapshot(w http.ResponseWriter) (*account.State, bool) {
	state, err := s.snapshots.Latest()
	if err == nil {
		return state, true
	}

	var refreshErr *coordinator.RefreshError
	if errors.As(err, &refreshErr) {
		s.respondError(w, http.StatusBadGateway, err.Error())
	} else {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	}
	return nil, false
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn().Err(err).Msg("encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}

// instrument wraps a handler with request counting and latency metrics.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		s.metrics.HTTPRequests.WithLabelValues(endpoint, http.StatusText(rec.status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
