// Package monitoring exposes the service's prometheus metrics.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hoangtm/cinebook/internal/domain"
)

var (
	bookingStageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinebook",
		Name:      "booking_stage_total",
		Help:      "Booking wizard stage entries.",
	}, []string{"stage"})

	paymentOutcomeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinebook",
		Name:      "payment_outcome_total",
		Help:      "Payment sessions by terminal status.",
	}, []string{"status"})

	paymentPollTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cinebook",
		Name:      "payment_poll_total",
		Help:      "Payment status polls against the provider.",
	})

	ticketsMaterializedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cinebook",
		Name:      "tickets_materialized_total",
		Help:      "Tickets created upstream after a settled payment.",
	})

	ticketsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cinebook",
		Name:      "tickets_skipped_total",
		Help:      "Seats skipped during materialization because another booking won them.",
	})
)

func StageEntered(stage domain.Stage) {
	bookingStageTotal.WithLabelValues(string(stage)).Inc()
}

func PaymentOutcome(status domain.PaymentStatus) {
	paymentOutcomeTotal.WithLabelValues(string(status)).Inc()
}

func PaymentPolled() {
	paymentPollTotal.Inc()
}

func TicketsMaterialized(n int) {
	ticketsMaterializedTotal.Add(float64(n))
}

func TicketSkipped() {
	ticketsSkippedTotal.Inc()
}
