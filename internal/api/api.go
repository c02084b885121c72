package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/thedatamonk/spendly/internal/intent"
	"github.com/thedatamonk/spendly/internal/ledger"
	"github.com/thedatamonk/spendly/internal/metrics"
)

// pinger is implemented by stores backed by a remote database.
type pinger interface {
	Ping(ctx context.Context) error
}

type API struct {
	router     *mux.Router
	store      ledger.Store
	translator intent.Translator
	logger     *zap.Logger
	bind       string
}

func New(bind string, store ledger.Store, tr intent.Translator, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &API{
		router:     mux.NewRouter(),
		store:      store,
		translator: tr,
		logger:     logger,
		bind:       bind,
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.Use(a.logRequests)

	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	a.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	a.router.HandleFunc("/parse", a.handleParse).Methods("POST")

	a.router.HandleFunc("/obligations", a.handleListObligations).Methods("GET")
	a.router.HandleFunc("/obligations", a.handleCreateObligation).Methods("POST")
	a.router.HandleFunc("/obligations/{id}", a.handleGetObligation).Methods("GET")
	a.router.HandleFunc("/obligations/{id}", a.handleUpdateObligation).Methods("PATCH")
	a.router.HandleFunc("/obligations/{id}", a.handleDeleteObligation).Methods("DELETE")
	a.router.HandleFunc("/obligations/{id}/transactions", a.handleAddTransaction).Methods("POST")
	a.router.HandleFunc("/obligations/{id}/settle", a.handleSettleObligation).Methods("POST")
}

// Handler is the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	// Note: When AllowedOrigins is "*", AllowCredentials must be false
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening", zap.String("addr", "http://"+a.bind))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := a.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "detail": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
