package asset

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TransferSink receives the push-with-callback flow: a token moves funds
// into escrow on the payer's initiative and then invokes the sink with the
// target event id as auxiliary data. The ledger implements this interface.
type TransferSink interface {
	OnTokenReceived(token, from common.Address, amount *big.Int, eventID uint64) error
}

// Token is an ERC20-shaped fungible token book: balances, allowances and
// a fixed decimal precision. Pull is the transferFrom-shaped authorization
// pull into escrow, Push is the transfer-shaped payout from escrow.
type Token struct {
	mu         sync.Mutex
	addr       common.Address
	name       string
	symbol     string
	decimals   uint8
	escrow     common.Address
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int // payer -> amount approved for escrow
	sink       TransferSink
}

// NewToken returns an empty token book identified by addr. The escrow
// account is the only spender allowances are tracked for.
func NewToken(addr common.Address, name, symbol string, decimals uint8, escrow common.Address) *Token {
	return &Token{
		addr:       addr,
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		escrow:     escrow,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
	}
}

func (t *Token) Address() common.Address { return t.addr }

func (t *Token) Name() string { return t.name }

func (t *Token) Symbol() string { return t.symbol }

func (t *Token) Decimals() uint8 { return t.decimals }

// SetSink registers the callback target for TransferAndCall. Wired once
// at startup; a nil sink disables the callback flow.
func (t *Token) SetSink(sink TransferSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// Approve authorizes the escrow account to pull up to amount from owner.
// A fresh approval replaces any previous one.
func (t *Token) Approve(owner common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[owner] = new(big.Int).Set(amount)
	return nil
}

// Allowance reports how much the escrow account may still pull from owner.
func (t *Token) Allowance(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.allowances[owner]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Pull implements the transferFrom-shaped flow: it consumes allowance and
// moves amount from the payer to escrow. Allowance is checked before the
// balance so the two failures stay distinguishable.
func (t *Token) Pull(from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	allowance, ok := t.allowances[from]
	if !ok || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.move(from, t.escrow, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (t *Token) Push(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(t.escrow, to, amount)
}

func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Mint credits freshly created tokens to an account.
func (t *Token) Mint(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount)
	return nil
}

// TransferAndCall moves amount from the payer into escrow and then invokes
// the registered sink with eventID as auxiliary data. If the sink rejects,
// the transfer is undone so a failed purchase leaves the payer whole.
func (t *Token) TransferAndCall(from common.Address, amount *big.Int, eventID uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	sink := t.sink
	if sink == nil {
		t.mu.Unlock()
		return ErrUnknownAsset
	}
	if err := t.move(from, t.escrow, amount); err != nil {
		t.mu.Unlock()
		return err
	}
	// The sink re-enters token state via Push on failure paths, so the
	// lock must not be held across the callback.
	t.mu.Unlock()

	if err := sink.OnTokenReceived(t.addr, from, amount, eventID); err != nil {
		t.mu.Lock()
		undoErr := t.move(t.escrow, from, amount)
		t.mu.Unlock()
		if undoErr != nil {
			// The escrow balance moved while the callback ran; the payer's
			// funds are stranded until the payout that drained them settles.
			return errors.Join(err, fmt.Errorf("undo transfer: %w", undoErr))
		}
		return err
	}
	return nil
}

func (t *Token) move(from, to common.Address, amount *big.Int) error {
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	t.credit(to, amount)
	return nil
}

func (t *Token) credit(to common.Address, amount *big.Int) {
	if b, ok := t.balances[to]; ok {
		b.Add(b, amount)
		return
	}
	t.balances[to] = new(big.Int).Set(amount)
}
