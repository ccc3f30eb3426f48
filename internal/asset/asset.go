// Package asset implements the payable-asset capability the ledger escrows
// value in. Every supported asset, the chain-native coin included, exposes
// the same two movements: Pull drags funds from a payer into escrow and
// Push pays funds out of escrow. The ledger core is written against the
// Asset interface and never against a concrete asset kind.
package asset

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress is the sentinel identifying the chain-native coin. Any
// other asset identifier denotes a fungible-token contract address.
var NativeAddress = common.Address{}

// Sentinel errors surfaced by asset operations. The ledger propagates
// them wrapped so callers can still match with errors.Is.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrUnknownAsset          = errors.New("unknown asset")
)

// Asset is the capability the ledger holds escrowed value in.
type Asset interface {
	// Address identifies the asset. The zero address is the native coin.
	Address() common.Address
	// Symbol is a short display identifier such as "ETH" or "USDm".
	Symbol() string
	// Decimals is the precision of the asset's smallest unit.
	Decimals() uint8
	// Pull moves amount from the payer into the escrow account. It must
	// either move the full amount or leave both balances untouched.
	Pull(from common.Address, amount *big.Int) error
	// Push moves amount from the escrow account to the recipient, with the
	// same all-or-nothing guarantee as Pull.
	Push(to common.Address, amount *big.Int) error
	// BalanceOf reports the current balance of an account. The returned
	// value is a copy and safe to mutate.
	BalanceOf(addr common.Address) *big.Int
}

// Registry is the supported-asset set. It is populated once at
// construction and never mutated afterwards; the ledger only reads it.
type Registry struct {
	assets map[common.Address]Asset
	order  []common.Address
}

// NewRegistry builds the fixed supported-asset set from the given assets.
// Registering the same address twice keeps the first entry.
func NewRegistry(assets ...Asset) *Registry {
	r := &Registry{assets: make(map[common.Address]Asset, len(assets))}
	for _, a := range assets {
		if _, ok := r.assets[a.Address()]; ok {
			continue
		}
		r.assets[a.Address()] = a
		r.order = append(r.order, a.Address())
	}
	return r
}

// Supported reports whether the identifier belongs to the supported set.
func (r *Registry) Supported(addr common.Address) bool {
	_, ok := r.assets[addr]
	return ok
}

// Get returns the asset registered under the identifier.
func (r *Registry) Get(addr common.Address) (Asset, error) {
	a, ok := r.assets[addr]
	if !ok {
		return nil, ErrUnknownAsset
	}
	return a, nil
}

// List returns the assets in registration order.
func (r *Registry) List() []Asset {
	out := make([]Asset, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.assets[addr])
	}
	return out
}

// checkAmount rejects nil and negative amounts before any balance math.
func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
