// Package server exposes the dashboard's HTTP API: catalog and book proxies,
// the instrument selection endpoint, and live book reads.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daszybak/polymarket_dashboard/internal/book"
	"github.com/daszybak/polymarket_dashboard/internal/cache"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/clob"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/gamma"
)

// Feed is the slice of the market data session the API needs.
type Feed interface {
	Select(ctx context.Context, tokenIDs []string) error
	Books() *book.Store
}

type Config struct {
	ListenAddr string
}

type Server struct {
	gamma    *gamma.Client
	clob     *clob.Client
	feed     Feed
	cache    *cache.Cache
	registry *prometheus.Registry
	log      *slog.Logger

	httpServer *http.Server
}

func New(cfg Config, gammaClient *gamma.Client, clobClient *clob.Client, feed Feed, c *cache.Cache, registry *prometheus.Registry, log *slog.Logger) *Server {
	s := &Server{
		gamma:    gammaClient,
		clob:     clobClient,
		feed:     feed,
		cache:    c,
		registry: registry,
		log:      log.With("component", "server"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table; exposed for handler tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/all", s.handleAllEvents).Methods(http.MethodGet)
	api.HandleFunc("/orderbook", s.handleOrderbook).Methods(http.MethodGet)
	api.HandleFunc("/polymarket-auth", s.handleDeriveAuth).Methods(http.MethodPost)
	api.HandleFunc("/selection", s.handleSetSelection).Methods(http.MethodPut)
	api.HandleFunc("/selection", s.handleClearSelection).Methods(http.MethodDelete)
	api.HandleFunc("/books/{token_id}", s.handleBook).Methods(http.MethodGet)

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	s.log.Info("listening", "addr", s.httpServer.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
