package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts circulation activity for the /metrics endpoint.
type Metrics struct {
	BooksAdded       prometheus.Counter
	LoansCreated     prometheus.Counter
	LoansReturned    prometheus.Counter
	LateFeeCentsOwed prometheus.Counter
	LateFeeCentsPaid prometheus.Counter
	RequestsTotal    *prometheus.CounterVec
}

// NewMetrics registers the circulation metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BooksAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "circulation_books_added_total",
			Help: "Number of books admitted to the catalog.",
		}),
		LoansCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "circulation_loans_created_total",
			Help: "Number of borrow operations completed.",
		}),
		LoansReturned: factory.NewCounter(prometheus.CounterOpts{
			Name: "circulation_loans_returned_total",
			Help: "Number of return operations completed.",
		}),
		LateFeeCentsOwed: factory.NewCounter(prometheus.CounterOpts{
			Name: "circulation_late_fee_cents_assessed_total",
			Help: "Late fees assessed at return time, in cents.",
		}),
		LateFeeCentsPaid: factory.NewCounter(prometheus.CounterOpts{
			Name: "circulation_late_fee_cents_paid_total",
			Help: "Late fees captured by the payment gateway, in cents.",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_http_requests_total",
			Help: "HTTP requests by method, path, and status.",
		}, []string{"method", "path", "status"}),
	}
}
