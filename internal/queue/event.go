// Package queue defines the domain-event payloads the ledger emits for
// downstream consumers, and the broker plumbing that carries them.
package queue

// Kinds of ledger domain events carried on the broker.
const (
	KindEventCreated    = "event.created"
	KindTicketPurchased = "ticket.purchased"
	KindRefundIssued    = "refund.issued"
	KindFundsReleased   = "funds.released"
	KindEventCanceled   = "event.canceled"
)

// LedgerEvent is the wire payload for every ledger domain event. Amounts
// are decimal strings in the asset's smallest unit so consumers never
// lose precision to float decoding.
type LedgerEvent struct {
	Kind      string `json:"kind"`
	EventID   uint64 `json:"event_id"`
	Owner     string `json:"owner,omitempty"`
	Buyer     string `json:"buyer,omitempty"`
	Name      string `json:"name,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Asset     string `json:"asset,omitempty"`
	EmittedAt string `json:"emitted_at"`
}
