package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors exported by the service.
type Metrics struct {
	LoansCreated            prometheus.Counter
	PaymentsRecorded        *prometheus.CounterVec
	PaymentsRejected        *prometheus.CounterVec
	LoansPaidOff            prometheus.Counter
	ClientsMarkedDelinquent prometheus.Counter
	LoansMarkedDelinquent   prometheus.Counter
	AmountDisbursed         prometheus.Counter
	RequestDuration         *prometheus.HistogramVec
}

// New registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to keep runs isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoansCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "cuotas_loans_created_total",
			Help: "Total number of loans issued",
		}),
		PaymentsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cuotas_payments_recorded_total",
			Help: "Total number of installment payments recorded",
		}, []string{"method"}),
		PaymentsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cuotas_payments_rejected_total",
			Help: "Total number of installment payments rejected",
		}, []string{"reason"}),
		LoansPaidOff: f.NewCounter(prometheus.CounterOpts{
			Name: "cuotas_loans_paid_off_total",
			Help: "Total number of loans fully repaid",
		}),
		ClientsMarkedDelinquent: f.NewCounter(prometheus.CounterOpts{
			Name: "cuotas_clients_marked_delinquent_total",
			Help: "Total number of delinquency markings",
		}),
		LoansMarkedDelinquent: f.NewCounter(prometheus.CounterOpts{
			Name: "cuotas_loans_marked_delinquent_total",
			Help: "Total number of loans moved to delinquent",
		}),
		AmountDisbursed: f.NewCounter(prometheus.CounterOpts{
			Name: "cuotas_principal_disbursed_total",
			Help: "Sum of principal issued across all loans",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cuotas_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
