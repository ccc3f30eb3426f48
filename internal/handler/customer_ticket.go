package handler

import (
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/avelmor/ticket-escrow/internal/asset"
	"github.com/avelmor/ticket-escrow/internal/ledger"
	"github.com/avelmor/ticket-escrow/internal/utils"
)

// CustomerHandler exposes the buyer-side ledger operations: purchasing
// tickets (plain pull or token push-with-callback), requesting refunds
// and listing held tickets. The caller's ledger address comes from the
// access token.
type CustomerHandler struct {
	Ledger *ledger.Ledger
	Assets *asset.Registry
	Log    zerolog.Logger
}

func NewCustomerHandler(l *ledger.Ledger, reg *asset.Registry, log zerolog.Logger) *CustomerHandler {
	if l == nil || reg == nil {
		panic("nil dependency passed to NewCustomerHandler")
	}
	return &CustomerHandler{
		Ledger: l,
		Assets: reg,
		Log:    log.With().Str("component", "customer-handler").Logger(),
	}
}

// buyTicketReq carries the attached native value for native-asset events.
// Token-asset events need no body: the price is pulled via the token's
// allowance, which the buyer must have approved beforehand.
type buyTicketReq struct {
	AttachedValue string `json:"attached_value"`
}

// BuyTicket handles POST /v1/events/:id/tickets. Exactly one ticket per
// buyer per event; the attached value must equal the price exactly for
// native-asset events.
func (h *CustomerHandler) BuyTicket(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseEventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	var req buyTicketReq
	_ = c.Bind(&req) // empty body is fine for token-asset events

	var attached *big.Int
	if req.AttachedValue != "" {
		var ok bool
		attached, ok = parseAmount(req.AttachedValue)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"code": "invalid_amount", "error": "invalid attached value"})
		}
	}
	if err := h.Ledger.BuyTicket(id, caller, attached); err != nil {
		return ledgerError(c, err)
	}

	h.Log.Info().Uint64("event_id", id).Str("buyer", caller.Hex()).Msg("ticket purchased")
	return c.JSON(http.StatusCreated, echo.Map{"event_id": id, "buyer": caller.Hex()})
}

// tokenBuyReq names the token and the exact amount for the
// push-with-callback purchase flow.
type tokenBuyReq struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// BuyTicketViaToken handles POST /v1/events/:id/tickets/token: the token
// pushes the funds into escrow and invokes the ledger's receive hook with
// the event id, so no prior allowance is needed.
func (h *CustomerHandler) BuyTicketViaToken(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseEventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	var req tokenBuyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	tokenAddr, ok := utils.ParseAddress(req.Token)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token address"})
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid amount"})
	}

	a, err := h.Assets.Get(tokenAddr)
	if err != nil {
		return ledgerError(c, err)
	}
	token, ok := a.(*asset.Token)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "wrong_asset", "error": "asset does not support transfer-and-call"})
	}

	if err := token.TransferAndCall(caller, amount, id); err != nil {
		return ledgerError(c, err)
	}

	h.Log.Info().Uint64("event_id", id).Str("buyer", caller.Hex()).Str("token", tokenAddr.Hex()).Msg("ticket purchased via token callback")
	return c.JSON(http.StatusCreated, echo.Map{"event_id": id, "buyer": caller.Hex()})
}

// approveReq sets the escrow allowance on a token.
type approveReq struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// ApproveToken handles POST /v1/tokens/approve: grants the escrow account
// an allowance so a later token-asset purchase can pull the price.
func (h *CustomerHandler) ApproveToken(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req approveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	tokenAddr, ok := utils.ParseAddress(req.Token)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token address"})
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid amount"})
	}
	a, err := h.Assets.Get(tokenAddr)
	if err != nil {
		return ledgerError(c, err)
	}
	token, ok := a.(*asset.Token)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "native coin needs no allowance"})
	}
	if err := token.Approve(caller, amount); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": tokenAddr.Hex(), "allowance": token.Allowance(caller).String()})
}

// RequestRefund handles POST /v1/events/:id/refund. The ledger pays back
// exactly what the caller paid and clears the ticket atomically.
func (h *CustomerHandler) RequestRefund(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseEventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Ledger.RequestRefund(id, caller); err != nil {
		return ledgerError(c, err)
	}
	h.Log.Info().Uint64("event_id", id).Str("buyer", caller.Hex()).Msg("refund issued")
	return c.NoContent(http.StatusNoContent)
}

// MyTickets handles GET /v1/my/tickets: every event the caller currently
// holds a ticket for.
func (h *CustomerHandler) MyTickets(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	events := h.Ledger.ListTickets(caller)
	out := make([]eventResp, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResp(ev, false))
	}
	return c.JSON(http.StatusOK, out)
}
