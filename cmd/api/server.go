package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mcclellann/cuotas/pkg/ledger"
	"github.com/mcclellann/cuotas/pkg/metrics"
)

// Server holds the ledger instance and the HTTP collaborators.
type Server struct {
	ledger   *ledger.Ledger
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

func NewServer(l *ledger.Ledger, logger *zap.Logger, m *metrics.Metrics, g prometheus.Gatherer) *Server {
	return &Server{ledger: l, logger: logger, metrics: m, gatherer: g}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.instrument)

	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.healthHandler).Methods("GET")

	api.HandleFunc("/clients", s.listClientsHandler).Methods("GET")
	api.HandleFunc("/clients", s.registerClientHandler).Methods("POST")
	api.HandleFunc("/clients/{id}", s.getClientHandler).Methods("GET")
	api.HandleFunc("/clients/{id}", s.updateClientHandler).Methods("PUT")
	api.HandleFunc("/clients/{id}", s.deleteClientHandler).Methods("DELETE")
	api.HandleFunc("/clients/{id}/delinquency", s.markDelinquentHandler).Methods("POST")
	api.HandleFunc("/clients/{id}/status", s.recomputeStatusHandler).Methods("POST")

	api.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	api.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	// Registered before /loans/{id} so "quote" is not taken for an id.
	api.HandleFunc("/loans/quote", s.quoteHandler).Methods("GET")
	api.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	api.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	api.HandleFunc("/loans/{id}/schedule", s.loanScheduleHandler).Methods("GET")

	api.HandleFunc("/payments", s.listPaymentsHandler).Methods("GET")
	api.HandleFunc("/payments", s.applyPaymentHandler).Methods("POST")
	api.HandleFunc("/payments/{id}", s.getPaymentHandler).Methods("GET")
	api.HandleFunc("/payments/{id}", s.deletePaymentHandler).Methods("DELETE")

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request duration per route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		elapsed := time.Since(start)
		s.metrics.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed))
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Error: "database unavailable"})
		return
	}
	s.ok(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}, "")
}
