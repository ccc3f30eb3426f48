package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avelmor/ticket-escrow/internal/asset"
	"github.com/avelmor/ticket-escrow/internal/ledger"
)

// ledgerErrorCode maps each ledger sentinel to an HTTP status and a
// stable machine-checkable code string. The code, not the message, is
// the contract clients match on.
var ledgerErrorCode = []struct {
	err    error
	status int
	code   string
}{
	{ledger.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
	{ledger.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
	{ledger.ErrStartNotFuture, http.StatusBadRequest, "start_not_future"},
	{ledger.ErrDurationTooShort, http.StatusBadRequest, "duration_too_short"},
	{ledger.ErrUnsupportedAsset, http.StatusBadRequest, "unsupported_asset"},
	{ledger.ErrInvalidDecimals, http.StatusBadRequest, "invalid_decimals"},
	{ledger.ErrInvalidPrice, http.StatusBadRequest, "invalid_price"},
	{ledger.ErrNotOwner, http.StatusForbidden, "not_owner"},
	{ledger.ErrNoTicket, http.StatusForbidden, "no_ticket"},
	{ledger.ErrEventCanceled, http.StatusConflict, "event_canceled"},
	{ledger.ErrEventInactive, http.StatusConflict, "event_inactive"},
	{ledger.ErrEventExpired, http.StatusConflict, "event_expired"},
	{ledger.ErrEventFull, http.StatusConflict, "event_full"},
	{ledger.ErrAlreadyPurchased, http.StatusConflict, "already_purchased"},
	{ledger.ErrAlreadyCanceled, http.StatusConflict, "already_canceled"},
	{ledger.ErrAlreadyReleased, http.StatusConflict, "already_released"},
	{ledger.ErrAlreadyArchived, http.StatusConflict, "already_archived"},
	{ledger.ErrRefundWindowClosed, http.StatusConflict, "refund_window_closed"},
	{ledger.ErrSettlementPending, http.StatusConflict, "settlement_pending"},
	{ledger.ErrEventNotEnded, http.StatusConflict, "event_not_ended"},
	{ledger.ErrNothingToRelease, http.StatusConflict, "nothing_to_release"},
	{ledger.ErrFundsOutstanding, http.StatusConflict, "funds_outstanding"},
	{ledger.ErrIncorrectAmount, http.StatusBadRequest, "incorrect_amount"},
	{ledger.ErrWrongAsset, http.StatusBadRequest, "wrong_asset"},
	{asset.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
	{asset.ErrInsufficientAllowance, http.StatusConflict, "insufficient_allowance"},
	{asset.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{asset.ErrUnknownAsset, http.StatusBadRequest, "unknown_asset"},
}

// ledgerError writes the JSON error response for a failed ledger or
// asset operation. Unrecognized errors surface as 500.
func ledgerError(c echo.Context, err error) error {
	for _, m := range ledgerErrorCode {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"code": m.code, "error": m.err.Error()})
		}
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"code": "internal", "error": "internal error"})
}
