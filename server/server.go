// Package server binds ledger operations to HTTP with JSON bodies.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	maxBodySize       = 1 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Ledger is a set of ledger operations served over HTTP. Implemented by
// service.Service.
type Ledger interface {
	Register(caller ledger.Identity) error
	Status(id ledger.Identity) (ledger.UserState, error)
	RatingTimestamps(caller, id ledger.Identity) (ledger.Timestamps, error)
	Rate(caller, id ledger.Identity, rating float32) error
	PatchState(caller ledger.Identity, patches []ledger.Patch) error
	Policy() (*ledger.ThrottlePolicy, error)
}

// Prm groups parameters of the Server.
type Prm struct {
	// Optional.
	Logger *zap.Logger

	// Required.
	Ledger Ledger

	// Name of the request header carrying authenticated caller identity.
	// Required.
	CallerHeader string

	// Source of the /metrics data. Optional: /metrics is not served if nil.
	Gatherer prometheus.Gatherer
}

// Server is an http.Handler serving ledger operations.
type Server struct {
	log          *zap.Logger
	ledger       Ledger
	callerHeader string
	router       *mux.Router
}

// New constructs Server from the given parameters.
func New(prm Prm) (*Server, error) {
	switch {
	case prm.Ledger == nil:
		return nil, errors.New("missing ledger")
	case prm.CallerHeader == "":
		return nil, errors.New("missing caller header name")
	}

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	s := &Server{
		log:          prm.Logger,
		ledger:       prm.Ledger,
		callerHeader: http.CanonicalHeaderKey(prm.CallerHeader),
		router:       mux.NewRouter(),
	}

	s.router.Use(requestIDMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/register", s.register).Methods(http.MethodPost)
	s.router.HandleFunc("/status/{identity}", s.status).Methods(http.MethodGet)
	s.router.HandleFunc("/timestamps/{identity}", s.timestamps).Methods(http.MethodGet)
	s.router.HandleFunc("/rate/{identity}", s.rate).Methods(http.MethodPost)
	s.router.HandleFunc("/patch", s.patch).Methods(http.MethodPost)
	s.router.HandleFunc("/policy", s.policy).Methods(http.MethodGet)

	if prm.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(prm.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr and serves requests until ctx is done, then shuts the
// HTTP server down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info("HTTP server started", zap.String("address", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
