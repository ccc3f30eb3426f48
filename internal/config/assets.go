package config

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenSpec describes one fungible token of the supported-asset set.
// Specs come from the ASSET_TOKENS environment variable as a
// comma-separated list of "symbol:name:decimals:address" entries, e.g.
//
//	ASSET_TOKENS=USDm:Mock USD:6:0x00..01,TKX:Ticketex:18:0x00..02
//
// The native coin is always part of the set and is not listed here.
type TokenSpec struct {
	Symbol   string
	Name     string
	Decimals uint8
	Address  string
}

// LoadTokenSpecs parses ASSET_TOKENS.  An empty variable yields an empty
// list, meaning the ledger only supports the native coin.
func LoadTokenSpecs() ([]TokenSpec, error) {
	raw := strings.TrimSpace(getenv("ASSET_TOKENS", ""))
	if raw == "" {
		return nil, nil
	}
	var specs []TokenSpec
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed token spec %q", entry)
		}
		dec, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil || dec > 18 {
			return nil, fmt.Errorf("bad decimals in token spec %q", entry)
		}
		addr := strings.TrimSpace(parts[3])
		if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
			return nil, fmt.Errorf("bad address in token spec %q", entry)
		}
		specs = append(specs, TokenSpec{
			Symbol:   strings.TrimSpace(parts[0]),
			Name:     strings.TrimSpace(parts[1]),
			Decimals: uint8(dec),
			Address:  addr,
		})
	}
	return specs, nil
}
