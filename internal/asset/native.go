package asset

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Native is the balance book for the chain-native coin. The escrow account
// is fixed at construction; Pull debits a payer and credits escrow, Push
// debits escrow and credits a recipient.
type Native struct {
	mu       sync.Mutex
	symbol   string
	escrow   common.Address
	balances map[common.Address]*big.Int
}

// NewNative returns an empty native-coin book whose escrow account is the
// given address.
func NewNative(symbol string, escrow common.Address) *Native {
	return &Native{
		symbol:   symbol,
		escrow:   escrow,
		balances: make(map[common.Address]*big.Int),
	}
}

// Address returns the native sentinel (the zero address).
func (n *Native) Address() common.Address { return NativeAddress }

func (n *Native) Symbol() string { return n.symbol }

// Decimals is fixed at 18 for the native coin.
func (n *Native) Decimals() uint8 { return 18 }

func (n *Native) Pull(from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.move(from, n.escrow, amount)
}

func (n *Native) Push(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.move(n.escrow, to, amount)
}

func (n *Native) BalanceOf(addr common.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if b, ok := n.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Mint credits freshly created coin to an account. Used for seeding and
// by the administrative funding surface.
func (n *Native) Mint(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.credit(to, amount)
	return nil
}

// move transfers between two accounts under the held lock.
func (n *Native) move(from, to common.Address, amount *big.Int) error {
	bal, ok := n.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	n.credit(to, amount)
	return nil
}

func (n *Native) credit(to common.Address, amount *big.Int) {
	if b, ok := n.balances[to]; ok {
		b.Add(b, amount)
		return
	}
	n.balances[to] = new(big.Int).Set(amount)
}
