// Package monitoring exposes Prometheus metrics for the ticket
// sales flows. Counters are registered through promauto and served
// from the /metrics endpoint in main.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_commits_total",
			Help: "Checkout commit attempts by outcome",
		},
		[]string{"status"},
	)

	ticketTransfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_transfers_total",
			Help: "Ticket transfer attempts by outcome",
		},
		[]string{"status"},
	)

	receiptRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_renders_total",
			Help: "Receipt renders by output format",
		},
		[]string{"format"},
	)

	expiredPurchases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expired_purchases_total",
			Help: "Payments expired by the scheduled reaper",
		},
	)
)

// TrackCommit records one checkout commit attempt.
func TrackCommit(status string) { checkoutCommits.WithLabelValues(status).Inc() }

// TrackTransfer records one ticket transfer attempt.
func TrackTransfer(status string) { ticketTransfers.WithLabelValues(status).Inc() }

// TrackRender records one receipt render.
func TrackRender(format string) { receiptRenders.WithLabelValues(format).Inc() }

// TrackExpired adds reaper-expired payments to the counter.
func TrackExpired(n int64) { expiredPurchases.Add(float64(n)) }
