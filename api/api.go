// Package api exposes a Ledger over HTTP. Every route except /healthz
// needs a bearer JWT whose participant claim identifies the caller.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/xraph/tally"
)

// API serves a Ledger over HTTP.
type API struct {
	router    *mux.Router
	ledger    *tally.Ledger
	jwtSecret []byte
	logger    *slog.Logger

	basePath       string
	allowedOrigins []string
	metrics        http.Handler
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithBasePath mounts the protected routes under path (default "/api").
func WithBasePath(path string) Option {
	return func(a *API) {
		if path != "" {
			a.basePath = path
		}
	}
}

// WithAllowedOrigins restricts CORS to the given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(a *API) { a.allowedOrigins = origins }
}

// WithMetrics serves h unauthenticated at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// New builds the router for l. Tokens are verified with jwtSecret.
func New(l *tally.Ledger, jwtSecret []byte, opts ...Option) *API {
	a := &API{
		router:         mux.NewRouter(),
		ledger:         l,
		jwtSecret:      jwtSecret,
		logger:         slog.Default(),
		basePath:       "/api",
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(a)
	}

	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	// Public endpoints
	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	if a.metrics != nil {
		a.router.Handle("/metrics", a.metrics).Methods("GET")
	}

	// Protected endpoints
	protected := a.router.PathPrefix(a.basePath).Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/groups", a.handleCreateGroup).Methods("POST")
	protected.HandleFunc("/groups", a.handleListGroups).Methods("GET")
	protected.HandleFunc("/groups/{group_id}", a.handleGetGroup).Methods("GET")
	protected.HandleFunc("/groups/{group_id}/members", a.handleAddMembers).Methods("POST")
	protected.HandleFunc("/groups/{group_id}/expenses", a.handleRecordExpense).Methods("POST")
	protected.HandleFunc("/groups/{group_id}/settlements", a.handleRecordSettlement).Methods("POST")
	protected.HandleFunc("/groups/{group_id}/entries", a.handleListEntries).Methods("GET")
	protected.HandleFunc("/groups/{group_id}/simplify", a.handleSimplify).Methods("POST")
	protected.HandleFunc("/groups/{group_id}/balances", a.handleGroupBalances).Methods("GET")
	protected.HandleFunc("/groups/{group_id}/balances/{participant}", a.handleBalance).Methods("GET")
	protected.HandleFunc("/groups/{group_id}/totals", a.handleTotals).Methods("GET")
	protected.HandleFunc("/balances", a.handleCounterpartyBalances).Methods("GET")
	protected.HandleFunc("/positions", a.handlePositions).Methods("GET")
	protected.HandleFunc("/activity", a.handleActivity).Methods("GET")
}

// Handler returns the router wrapped in CORS handling.
func (a *API) Handler() http.Handler {
	// Credentials stay off while the wildcard origin is allowed.
	corsOptions := cors.Options{
		AllowedOrigins:   a.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: len(a.allowedOrigins) > 0 && a.allowedOrigins[0] != "*",
	}
	return cors.New(corsOptions).Handler(a.router)
}
