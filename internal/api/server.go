// Package api exposes a sale over HTTP.
//
// Mutations require a bearer token whose subject is the calling account.
// Queries are public. Committed events are pushed to websocket clients
// connected on /ws/events.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/host"
	"presale-ledger/internal/observability"
	"presale-ledger/internal/presale"
)

// Sale is the part of host.Host the API serves.
type Sale interface {
	Execute(ctx context.Context, sender string, funds []domain.Coin, msg presale.ExecuteMsg) (*domain.SaleEvent, error)
	Migrate(ctx context.Context, sender string) (*domain.SaleEvent, error)
	Config(ctx context.Context) (*domain.Config, error)
	State(ctx context.Context) (*domain.SaleState, error)
	Rates(ctx context.Context) ([]domain.Rate, error)
	IsWhitelisted(ctx context.Context, addr string) (bool, error)
	Valuation(ctx context.Context, addr string) (decimal.Decimal, error)
	Contributions(ctx context.Context, addr string) ([]domain.Coin, error)
	Allocation(ctx context.Context, addr string) (decimal.Decimal, error)
	Events(ctx context.Context, sender string, start, end int64) ([]*domain.SaleEvent, error)
}

var _ Sale = (*host.Host)(nil)

// Server routes HTTP requests to a sale.
type Server struct {
	sale   Sale
	hub    *Hub
	auth   *Authenticator
	logger zerolog.Logger
}

// NewServer creates a Server. hub may be nil to disable /ws/events.
func NewServer(sale Sale, hub *Hub, auth *Authenticator, logger zerolog.Logger) *Server {
	return &Server{
		sale:   sale,
		hub:    hub,
		auth:   auth,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Router returns the HTTP handler of the server.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
	if s.hub != nil {
		r.Handle("/ws/events", s.hub).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	v1.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	v1.HandleFunc("/rates", s.handleRates).Methods(http.MethodGet)
	v1.HandleFunc("/whitelist/{account}", s.handleIsWhitelisted).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/valuation", s.handleValuation).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/contributions", s.handleContributions).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/allocation", s.handleAllocation).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	calls := v1.NewRoute().Subrouter()
	calls.Use(s.auth.Middleware)
	calls.Handle("/buy", s.execute(presale.ActionBuy)).Methods(http.MethodPost)
	calls.Handle("/claim", s.execute(presale.ActionClaimTokens)).Methods(http.MethodPost)
	calls.Handle("/refund", s.execute(presale.ActionRequestRefund)).Methods(http.MethodPost)
	calls.Handle("/admin/end-sale", s.execute(presale.ActionEndSale)).Methods(http.MethodPost)
	calls.Handle("/admin/whitelist", s.execute(presale.ActionAddToWhitelist)).Methods(http.MethodPost)
	calls.Handle("/admin/whitelist", s.execute(presale.ActionRemoveFromWhitelist)).Methods(http.MethodDelete)
	calls.Handle("/admin/reclaim", s.execute(presale.ActionReclaimUnsoldTokens)).Methods(http.MethodPost)
	calls.Handle("/admin/withdraw", s.execute(presale.ActionWithdrawFunds)).Methods(http.MethodPost)
	calls.Handle("/admin/admin", s.execute(presale.ActionUpdateAdmin)).Methods(http.MethodPost)
	calls.Handle("/admin/pause", s.execute(presale.ActionUpdatePause)).Methods(http.MethodPost)
	calls.HandleFunc("/admin/migrate", s.handleMigrate).Methods(http.MethodPost)

	return r
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	callerKey
)

// requestID tags each request with an X-Request-ID, generating one if absent.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// statusWriter remembers the status code written.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Websocket upgrades need the original writer's Hijacker.
		if r.URL.Path == "/ws/events" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		id, _ := r.Context().Value(requestIDKey).(string)
		s.logger.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
