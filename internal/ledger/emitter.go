package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Emitter receives the domain events produced by successful ledger
// transitions. Sinks (broker publisher, audit journal, metrics) implement
// it; emission happens after state and funds have settled, and sink
// failures must never affect ledger state, so the methods return nothing.
type Emitter interface {
	EventCreated(id uint64, owner common.Address, name string)
	TicketPurchased(id uint64, buyer common.Address, amount *big.Int, asset common.Address)
	RefundIssued(id uint64, buyer common.Address, amount *big.Int)
	FundsReleased(id uint64, amount *big.Int)
	EventCanceled(id uint64)
}

// NopEmitter discards every domain event.
type NopEmitter struct{}

func (NopEmitter) EventCreated(uint64, common.Address, string)                      {}
func (NopEmitter) TicketPurchased(uint64, common.Address, *big.Int, common.Address) {}
func (NopEmitter) RefundIssued(uint64, common.Address, *big.Int)                    {}
func (NopEmitter) FundsReleased(uint64, *big.Int)                                   {}
func (NopEmitter) EventCanceled(uint64)                                             {}

// MultiEmitter fans a domain event out to every sink in order.
type MultiEmitter []Emitter

func (m MultiEmitter) EventCreated(id uint64, owner common.Address, name string) {
	for _, e := range m {
		e.EventCreated(id, owner, name)
	}
}

func (m MultiEmitter) TicketPurchased(id uint64, buyer common.Address, amount *big.Int, asset common.Address) {
	for _, e := range m {
		e.TicketPurchased(id, buyer, amount, asset)
	}
}

func (m MultiEmitter) RefundIssued(id uint64, buyer common.Address, amount *big.Int) {
	for _, e := range m {
		e.RefundIssued(id, buyer, amount)
	}
}

func (m MultiEmitter) FundsReleased(id uint64, amount *big.Int) {
	for _, e := range m {
		e.FundsReleased(id, amount)
	}
}

func (m MultiEmitter) EventCanceled(id uint64) {
	for _, e := range m {
		e.EventCanceled(id)
	}
}
