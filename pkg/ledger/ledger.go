package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mcclellann/cuotas/pkg/apperrors"
	"github.com/mcclellann/cuotas/pkg/metrics"
	"github.com/mcclellann/cuotas/pkg/store"
)

// Ledger handles the business logic for clients, loans and payments.
type Ledger struct {
	storage store.Storage
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for state transitions and rejections.
func WithLogger(l *zap.Logger) Option {
	return func(led *Ledger) { led.logger = l }
}

// WithMetrics sets the collectors updated by ledger operations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(led *Ledger) { led.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(led *Ledger) { led.now = now }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: s,
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = metrics.New(prometheus.NewRegistry())
	}
	return l
}

// Ping reports whether the underlying storage is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.storage.Ping(ctx)
}

// internal wraps unexpected storage failures; classified errors pass through.
func internal(op string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(op, err)
}

// notFoundOr maps store.ErrNotFound to a NotFound error for entity id.
func notFoundOr(op, entity string, id any, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(entity, id)
	}
	return internal(op, err)
}
