package utils

import (
	"crypto/rand"

	"github.com/ethereum/go-ethereum/common"
)

// NewAccountAddress derives a fresh 20-byte ledger address from secure
// random data.  Addresses identify accounts inside the ledger and asset
// books; they carry no key material.
func NewAccountAddress() (common.Address, error) {
	var buf [common.AddressLength]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(buf[:]), nil
}

// ParseAddress converts a 0x-hex string into a ledger address.  The ok
// result is false when the string is not a valid 20-byte hex address.
func ParseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}
