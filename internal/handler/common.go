package handler // handler defines http handlers

import (
	"errors"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/avelmor/ticket-escrow/internal/utils"
)

// currentUserID extracts the user_id placed in context by JWTAuth and
// converts it to uint64. JWT numeric claims decode as float64.
func currentUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// callerAddress extracts the ledger address placed in context by JWTAuth.
// Ledger operations authorize against this address, never the user id.
func callerAddress(c echo.Context) (common.Address, error) {
	s, ok := c.Get("addr").(string)
	if !ok {
		return common.Address{}, errors.New("missing addr in context")
	}
	addr, ok := utils.ParseAddress(s)
	if !ok {
		return common.Address{}, errors.New("invalid addr in context")
	}
	return addr, nil
}

// parseEventID parses the :id path parameter.
func parseEventID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseAmount parses a base-10 integer amount in smallest units. Amounts
// travel as strings so 18-decimal values never hit float precision.
func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// displayAmount renders a smallest-unit amount in human units, e.g.
// 10500000 with 6 decimals becomes "10.5".
func displayAmount(amount *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
