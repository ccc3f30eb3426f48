// Package ledger implements the event escrow state machine: an append-only
// arena of event records, per-event per-buyer tickets, and escrowed funds
// accounting across the supported payment assets.
//
// Every mutating operation validates, applies its state changes under the
// ledger lock, and only then performs the external value transfer with the
// lock released. While the transfer is in flight the buyer is marked
// pending, so a transfer callback that re-enters the ledger sees the
// already-updated flags and gets a clean rejection instead of a double
// payout or a payout of funds not yet received. If the transfer itself
// fails, the operation re-acquires the lock and restores the prior state,
// so each call is all-or-nothing.
package ledger

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avelmor/ticket-escrow/internal/asset"
	"github.com/avelmor/ticket-escrow/internal/clock"
)

// Ledger owns the event registry, the ticket registry and the escrow
// accounting. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	clk     clock.Clock
	assets  *asset.Registry
	emit    Emitter
	events  []*event
	byOwner map[common.Address][]uint64
}

// Option configures a Ledger at construction.
type Option func(*Ledger)

// WithEmitter sets the sink for emitted domain events.
func WithEmitter(e Emitter) Option {
	return func(l *Ledger) {
		if e != nil {
			l.emit = e
		}
	}
}

// New builds a ledger over the fixed supported-asset set. The registry and
// clock are the only construction inputs the core depends on.
func New(assets *asset.Registry, clk clock.Clock, opts ...Option) *Ledger {
	l := &Ledger{
		clk:     clk,
		assets:  assets,
		emit:    NopEmitter{},
		byOwner: make(map[common.Address][]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateEventInput carries the creation parameters. TicketPrice is given
// in 18-decimal terms together with the asset's decimal precision; the
// ledger stores the asset-native amount.
type CreateEventInput struct {
	Owner         common.Address
	Name          string
	ImageRef      string
	Details       string
	Location      string
	StartTime     time.Time
	EndTime       time.Time
	StartClock    string
	EndClock      string
	TicketPrice   *big.Int
	AssetDecimals uint8
	PaymentAsset  common.Address
	Capacity      uint32
	MinimumAge    uint8
	Policy        RefundPolicy
	RefundBuffer  time.Duration
}

// CreateEvent validates the input, appends a new event record and returns
// its sequential id. No state is touched on any precondition violation.
func (l *Ledger) CreateEvent(in CreateEventInput) (uint64, error) {
	if len(in.Name) == 0 || len(in.Name) > MaxNameLength {
		return 0, ErrInvalidName
	}
	now := l.clk.Now()
	if !in.StartTime.After(now) {
		return 0, ErrStartNotFuture
	}
	if in.EndTime.Sub(in.StartTime) < MinEventDuration {
		return 0, ErrDurationTooShort
	}
	a, err := l.assets.Get(in.PaymentAsset)
	if err != nil {
		return 0, ErrUnsupportedAsset
	}
	if in.AssetDecimals != a.Decimals() {
		return 0, ErrInvalidDecimals
	}
	price, err := normalizePrice(in.TicketPrice, in.AssetDecimals)
	if err != nil {
		return 0, err
	}
	buffer := in.RefundBuffer
	if in.Policy != RefundCustom || buffer <= 0 {
		buffer = DefaultRefundBuffer
	}

	l.mu.Lock()
	id := uint64(len(l.events))
	l.events = append(l.events, &event{
		id:           id,
		owner:        in.Owner,
		name:         in.Name,
		imageRef:     in.ImageRef,
		details:      in.Details,
		location:     in.Location,
		startTime:    in.StartTime.UTC(),
		endTime:      in.EndTime.UTC(),
		startClock:   in.StartClock,
		endClock:     in.EndClock,
		price:        price,
		decimals:     in.AssetDecimals,
		assetAddr:    in.PaymentAsset,
		capacity:     in.Capacity,
		minimumAge:   in.MinimumAge,
		policy:       in.Policy,
		refundBuffer: buffer,
		createdAt:    now,
		active:       true,
		fundsHeld:    new(big.Int),
		tickets:      make(map[common.Address]bool),
		pending:      make(map[common.Address]bool),
	})
	l.byOwner[in.Owner] = append(l.byOwner[in.Owner], id)
	l.mu.Unlock()

	l.emit.EventCreated(id, in.Owner, in.Name)
	return id, nil
}

// normalizePrice converts an 18-decimal price to the asset-native amount.
// Prices that lose precision under the conversion are rejected.
func normalizePrice(price *big.Int, decimals uint8) (*big.Int, error) {
	if price == nil || price.Sign() < 0 || decimals > 18 {
		return nil, ErrInvalidPrice
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
	native, rem := new(big.Int).QuoRem(price, scale, new(big.Int))
	if rem.Sign() != 0 {
		return nil, ErrInvalidPrice
	}
	return native, nil
}

// BuyTicket purchases exactly one ticket for the caller. For native-asset
// events the attached value must equal the ticket price exactly; for token
// events no value may be attached and the price is pulled via the token's
// allowance mechanism.
func (l *Ledger) BuyTicket(eventID uint64, buyer common.Address, attachedValue *big.Int) error {
	l.mu.Lock()
	ev, err := l.lookup(eventID)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := l.purchasable(ev, buyer); err != nil {
		l.mu.Unlock()
		return err
	}
	a, err := l.assets.Get(ev.assetAddr)
	if err != nil {
		l.mu.Unlock()
		return ErrUnsupportedAsset
	}
	if ev.assetAddr == asset.NativeAddress {
		if attachedValue == nil || attachedValue.Cmp(ev.price) != 0 {
			l.mu.Unlock()
			return ErrIncorrectAmount
		}
	} else if attachedValue != nil && attachedValue.Sign() != 0 {
		l.mu.Unlock()
		return ErrIncorrectAmount
	}

	amount := new(big.Int).Set(ev.price)
	ev.tickets[buyer] = true
	ev.attendees = append(ev.attendees, buyer)
	ev.fundsHeld.Add(ev.fundsHeld, amount)
	ev.pending[buyer] = true
	l.mu.Unlock()

	pullErr := a.Pull(buyer, amount)

	l.mu.Lock()
	delete(ev.pending, buyer)
	if pullErr != nil {
		l.undoPurchase(ev, buyer, amount)
		l.mu.Unlock()
		return fmt.Errorf("pull payment: %w", pullErr)
	}
	l.mu.Unlock()

	l.emit.TicketPurchased(eventID, buyer, amount, ev.assetAddr)
	return nil
}

// OnTokenReceived is the push-with-callback entry point: a registered token
// asset has already moved amount into escrow on the payer's initiative and
// hands over the target event id. The ledger validates the purchase the
// same way as BuyTicket but issues no pull; returning an error makes the
// token undo its transfer.
func (l *Ledger) OnTokenReceived(token, from common.Address, amount *big.Int, eventID uint64) error {
	l.mu.Lock()
	if !l.assets.Supported(token) {
		l.mu.Unlock()
		return ErrUnsupportedAsset
	}
	ev, err := l.lookup(eventID)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if ev.assetAddr != token {
		l.mu.Unlock()
		return ErrWrongAsset
	}
	if err := l.purchasable(ev, from); err != nil {
		l.mu.Unlock()
		return err
	}
	if amount == nil || amount.Cmp(ev.price) != 0 {
		l.mu.Unlock()
		return ErrIncorrectAmount
	}

	ev.tickets[from] = true
	ev.attendees = append(ev.attendees, from)
	ev.fundsHeld.Add(ev.fundsHeld, amount)
	l.mu.Unlock()

	// Sinks may read the ledger back, so the lock must be released first.
	l.emit.TicketPurchased(eventID, from, new(big.Int).Set(amount), token)
	return nil
}

// CancelEvent marks the event canceled and inactive. Escrowed funds are
// untouched; attendees must request refunds individually. A second cancel
// fails rather than silently succeeding.
func (l *Ledger) CancelEvent(eventID uint64, caller common.Address) error {
	l.mu.Lock()
	ev, err := l.lookup(eventID)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if ev.owner != caller {
		l.mu.Unlock()
		return ErrNotOwner
	}
	if ev.canceled {
		l.mu.Unlock()
		return ErrAlreadyCanceled
	}
	ev.canceled = true
	ev.active = false
	l.mu.Unlock()

	l.emit.EventCanceled(eventID)
	return nil
}

// RequestRefund returns the caller's payment and clears their ticket.
// Refunds are accepted while the event is canceled, or while the current
// time is still before the policy's cutoff. The refund is atomic: either
// the funds move and the ticket clears, or neither happens.
func (l *Ledger) RequestRefund(eventID uint64, buyer common.Address) error {
	l.mu.Lock()
	ev, err := l.lookup(eventID)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if !ev.tickets[buyer] {
		l.mu.Unlock()
		return ErrNoTicket
	}
	if ev.pending[buyer] {
		l.mu.Unlock()
		return ErrSettlementPending
	}
	if ev.fundsReleased {
		l.mu.Unlock()
		return ErrAlreadyReleased
	}
	if !ev.canceled {
		cutoff, open := ev.refundCutoff()
		if !open || !l.clk.Now().Before(cutoff) {
			l.mu.Unlock()
			return ErrRefundWindowClosed
		}
	}
	a, err := l.assets.Get(ev.assetAddr)
	if err != nil {
		l.mu.Unlock()
		return ErrUnsupportedAsset
	}

	amount := new(big.Int).Set(ev.price)
	delete(ev.tickets, buyer)
	ev.removeAttendee(buyer)
	ev.fundsHeld.Sub(ev.fundsHeld, amount)
	ev.pending[buyer] = true
	l.mu.Unlock()

	pushErr := a.Push(buyer, amount)

	l.mu.Lock()
	delete(ev.pending, buyer)
	if pushErr != nil {
		l.undoRefund(ev, buyer, amount)
		l.mu.Unlock()
		return fmt.Errorf("refund payout: %w", pushErr)
	}
	l.mu.Unlock()

	l.emit.RefundIssued(eventID, buyer, amount)
	return nil
}

// ReleaseFunds pays the entirety of the remaining escrowed revenue to the
// event owner once the event has ended. Terminal for fund movement: once
// released, no further refunds or releases are possible.
func (l *Ledger) ReleaseFunds(eventID uint64, caller common.Address) error {
	l.mu.Lock()
	ev, err := l.lookup(eventID)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if ev.owner != caller {
		l.mu.Unlock()
		return ErrNotOwner
	}
	if !l.clk.Now().After(ev.endTime) {
		l.mu.Unlock()
		return ErrEventNotEnded
	}
	if ev.fundsReleased {
		l.mu.Unlock()
		return ErrAlreadyReleased
	}
	if ev.fundsHeld.Sign() == 0 {
		l.mu.Unlock()
		return ErrNothingToRelease
	}
	a, err := l.assets.Get(ev.assetAddr)
	if err != nil {
		l.mu.Unlock()
		return ErrUnsupportedAsset
	}

	amount := new(big.Int).Set(ev.fundsHeld)
	ev.fundsHeld.SetInt64(0)
	ev.fundsReleased = true
	l.mu.Unlock()

	if err := a.Push(ev.owner, amount); err != nil {
		l.mu.Lock()
		ev.fundsReleased = false
		ev.fundsHeld.Add(ev.fundsHeld, amount)
		l.mu.Unlock()
		return fmt.Errorf("release payout: %w", err)
	}

	l.emit.FundsReleased(eventID, amount)
	return nil
}

// ArchiveEvent hides a settled event from active listings without erasing
// the record. Only allowed once escrow is empty or released, so archival
// can never strand buyer funds.
func (l *Ledger) ArchiveEvent(eventID uint64, caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev, err := l.lookup(eventID)
	if err != nil {
		return err
	}
	if ev.owner != caller {
		return ErrNotOwner
	}
	if ev.archived {
		return ErrAlreadyArchived
	}
	if !ev.fundsReleased && ev.fundsHeld.Sign() != 0 {
		return ErrFundsOutstanding
	}
	ev.archived = true
	ev.active = false
	return nil
}

// lookup returns the mutable record for an id. Caller holds the lock.
func (l *Ledger) lookup(eventID uint64) (*event, error) {
	if eventID >= uint64(len(l.events)) {
		return nil, ErrEventNotFound
	}
	return l.events[eventID], nil
}

// purchasable checks every non-payment precondition of a ticket purchase.
// Caller holds the lock.
func (l *Ledger) purchasable(ev *event, buyer common.Address) error {
	if ev.canceled {
		return ErrEventCanceled
	}
	if !ev.active {
		return ErrEventInactive
	}
	if l.clk.Now().After(ev.endTime) {
		return ErrEventExpired
	}
	if ev.tickets[buyer] {
		return ErrAlreadyPurchased
	}
	if ev.pending[buyer] {
		return ErrSettlementPending
	}
	if ev.capacity > 0 && uint32(len(ev.attendees)) >= ev.capacity {
		return ErrEventFull
	}
	return nil
}

// undoPurchase compensates a purchase whose payment pull failed. Caller
// holds the lock. The ticket and funds adjustments move together: if the
// ticket is already gone, the funds for it are gone too, and subtracting
// again would drive fundsHeld negative.
func (l *Ledger) undoPurchase(ev *event, buyer common.Address, amount *big.Int) {
	if !ev.tickets[buyer] {
		return
	}
	delete(ev.tickets, buyer)
	ev.removeAttendee(buyer)
	ev.fundsHeld.Sub(ev.fundsHeld, amount)
}

// undoRefund compensates a refund whose payout failed: the money never
// left escrow, so the ticket and the held funds are restored together.
// A ticket already present means its funds are already counted.
func (l *Ledger) undoRefund(ev *event, buyer common.Address, amount *big.Int) {
	if ev.tickets[buyer] {
		return
	}
	ev.tickets[buyer] = true
	ev.attendees = append(ev.attendees, buyer)
	ev.fundsHeld.Add(ev.fundsHeld, amount)
}
