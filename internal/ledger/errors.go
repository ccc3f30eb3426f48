// Sentinel errors for every rejected precondition. Each distinct failure
// mode the ledger can signal has its own value so that callers and the
// HTTP layer can match with errors.Is and render a precise message.
package ledger

import "errors"

// Creation-time validation errors. Always caller-fixable and always
// rejected before any state change.
var (
	ErrInvalidName      = errors.New("invalid event name")
	ErrStartNotFuture   = errors.New("start time not in the future")
	ErrDurationTooShort = errors.New("event duration too short")
	ErrUnsupportedAsset = errors.New("unsupported payment asset")
	ErrInvalidDecimals  = errors.New("decimals do not match payment asset")
	ErrInvalidPrice     = errors.New("invalid ticket price")
)

// Authorization errors.
var (
	ErrNotOwner = errors.New("caller is not the event owner")
	ErrNoTicket = errors.New("no ticket to refund")
)

// State-conflict errors. Distinguishable from validation errors so a
// client can tell "you sent garbage" from "the event moved on".
var (
	ErrEventNotFound      = errors.New("event not found")
	ErrEventInactive      = errors.New("event is not active")
	ErrEventCanceled      = errors.New("event is canceled")
	ErrEventExpired       = errors.New("event has ended")
	ErrEventFull          = errors.New("event is at capacity")
	ErrAlreadyPurchased   = errors.New("ticket already purchased")
	ErrAlreadyCanceled    = errors.New("event already canceled")
	ErrAlreadyReleased    = errors.New("funds already released")
	ErrAlreadyArchived    = errors.New("event already archived")
	ErrRefundWindowClosed = errors.New("refund window closed")
	ErrSettlementPending  = errors.New("a transfer for this ticket is still settling")
	ErrEventNotEnded      = errors.New("event has not ended")
	ErrNothingToRelease   = errors.New("nothing to release")
	ErrFundsOutstanding   = errors.New("escrowed funds outstanding")
)

// Value-transfer errors.
var (
	ErrIncorrectAmount = errors.New("incorrect payment amount")
	ErrWrongAsset      = errors.New("wrong payment asset")
)
