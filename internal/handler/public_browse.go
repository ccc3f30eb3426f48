// Package handler exposes HTTP handlers for both authenticated and public
// endpoints. This file defines the unauthenticated browsing API: anyone can
// list active events, inspect a single event and check whether an address
// holds a ticket. Attendee lists are only included on the detail endpoint.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avelmor/ticket-escrow/internal/ledger"
	"github.com/avelmor/ticket-escrow/internal/utils"
)

// PublicHandler serves read-only ledger queries without authentication.
type PublicHandler struct {
	Ledger *ledger.Ledger
}

func NewPublicHandler(l *ledger.Ledger) *PublicHandler {
	return &PublicHandler{Ledger: l}
}

// ListEvents handles GET /v1/events: every active, non-canceled,
// non-archived event in creation order.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	events := h.Ledger.ListActive()
	out := make([]eventResp, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResp(ev, false))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "total": h.Ledger.EventCount()})
}

// GetEvent handles GET /v1/events/:id with the attendee list included.
func (h *PublicHandler) GetEvent(c echo.Context) error {
	id, ok := parseEventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := h.Ledger.GetEvent(id)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, toEventResp(ev, true))
}

// HasTicket handles GET /v1/events/:id/tickets/:address: whether the given
// ledger address currently holds a ticket for the event.
func (h *PublicHandler) HasTicket(c echo.Context) error {
	id, ok := parseEventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	addr, ok := utils.ParseAddress(c.Param("address"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid address"})
	}
	has, err := h.Ledger.HasTicket(id, addr)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id, "address": addr.Hex(), "has_ticket": has})
}
