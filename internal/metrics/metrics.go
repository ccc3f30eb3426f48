// Package metrics exposes Prometheus instrumentation for the escrow
// ledger and an Emitter adapter that feeds it from ledger domain events.
package metrics

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_events_created_total",
		Help: "Total number of events appended to the ledger registry.",
	})

	TicketsPurchased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_tickets_purchased_total",
		Help: "Total number of successful ticket purchases, labelled by asset.",
	}, []string{"asset"})

	RefundsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_refunds_issued_total",
		Help: "Total number of refunds paid out of escrow.",
	})

	FundsReleases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_funds_releases_total",
		Help: "Total number of post-event revenue releases to owners.",
	})

	EventsCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_events_canceled_total",
		Help: "Total number of events canceled by their owners.",
	})
)

// Emitter bumps the counters above on each ledger domain event. It is one
// of the sinks fanned out to by the ledger's MultiEmitter.
type Emitter struct{}

func (Emitter) EventCreated(uint64, common.Address, string) {
	EventsCreated.Inc()
}

func (Emitter) TicketPurchased(_ uint64, _ common.Address, _ *big.Int, asset common.Address) {
	TicketsPurchased.WithLabelValues(asset.Hex()).Inc()
}

func (Emitter) RefundIssued(uint64, common.Address, *big.Int) {
	RefundsIssued.Inc()
}

func (Emitter) FundsReleased(uint64, *big.Int) {
	FundsReleases.Inc()
}

func (Emitter) EventCanceled(uint64) {
	EventsCanceled.Inc()
}
