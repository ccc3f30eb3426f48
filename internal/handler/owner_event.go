package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/avelmor/ticket-escrow/internal/ledger"
	"github.com/avelmor/ticket-escrow/internal/utils"
)

// OwnerHandler exposes the owner-side ledger operations: creating events
// and managing their lifecycle (cancel, release, archive). All methods
// assume JWT authentication and role validation already ran; the caller's
// ledger address comes from the token.
type OwnerHandler struct {
	Ledger   *ledger.Ledger
	Log      zerolog.Logger
	validate *validator.Validate
}

func NewOwnerHandler(l *ledger.Ledger, log zerolog.Logger) *OwnerHandler {
	if l == nil {
		panic("nil ledger passed to NewOwnerHandler")
	}
	return &OwnerHandler{
		Ledger:   l,
		Log:      log.With().Str("component", "owner-handler").Logger(),
		validate: validator.New(),
	}
}

// createEventReq carries the creation parameters. Times are RFC3339;
// ticket_price is a base-10 string in 18-decimal terms, normalized by the
// ledger to the payment asset's native precision.
type createEventReq struct {
	Name          string `json:"name" validate:"required,max=100"`
	ImageRef      string `json:"image_ref" validate:"max=512"`
	Details       string `json:"details" validate:"max=2048"`
	Location      string `json:"location" validate:"max=256"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
	StartClock    string `json:"start_clock" validate:"max=16"`
	EndClock      string `json:"end_clock" validate:"max=16"`
	TicketPrice   string `json:"ticket_price" validate:"required"`
	AssetDecimals uint8  `json:"asset_decimals"`
	PaymentAsset  string `json:"payment_asset" validate:"required"`
	Capacity      uint32 `json:"capacity"`
	MinimumAge    uint8  `json:"minimum_age"`
	RefundPolicy  uint8  `json:"refund_policy" validate:"lte=3"`
	RefundBuffer  string `json:"refund_buffer"` // Go duration string, custom policy only
}

// CreateEvent handles POST /v1/events. On success it returns 201 with the
// new sequential event id and the stored record.
func (h *OwnerHandler) CreateEvent(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "validation", "error": err.Error()})
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_time"})
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_time"})
	}
	price, ok := parseAmount(req.TicketPrice)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket_price"})
	}
	assetAddr, ok := utils.ParseAddress(req.PaymentAsset)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment_asset"})
	}
	var buffer time.Duration
	if req.RefundBuffer != "" {
		buffer, err = time.ParseDuration(req.RefundBuffer)
		if err != nil || buffer < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refund_buffer"})
		}
	}

	id, err := h.Ledger.CreateEvent(ledger.CreateEventInput{
		Owner:         caller,
		Name:          req.Name,
		ImageRef:      req.ImageRef,
		Details:       req.Details,
		Location:      req.Location,
		StartTime:     startTime,
		EndTime:       endTime,
		StartClock:    req.StartClock,
		EndClock:      req.EndClock,
		TicketPrice:   price,
		AssetDecimals: req.AssetDecimals,
		PaymentAsset:  assetAddr,
		Capacity:      req.Capacity,
		MinimumAge:    req.MinimumAge,
		Policy:        ledger.RefundPolicy(req.RefundPolicy),
		RefundBuffer:  buffer,
	})
	if err != nil {
		return ledgerError(c, err)
	}

	h.Log.Info().Uint64("event_id", id).Str("owner", caller.Hex()).Msg("event created")

	ev, err := h.Ledger.GetEvent(id)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusCreated, toEventResp(ev, false))
}

// CancelEvent handles POST /v1/events/:id/cancel. Escrowed funds are not
// touched; attendees request refunds individually afterwards.
func (h *OwnerHandler) CancelEvent(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseEventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Ledger.CancelEvent(id, caller); err != nil {
		return ledgerError(c, err)
	}
	h.Log.Info().Uint64("event_id", id).Msg("event canceled")
	return c.NoContent(http.StatusNoContent)
}

// ReleaseFunds handles POST /v1/events/:id/release, paying the remaining
// escrowed revenue to the owner after the event has ended.
func (h *OwnerHandler) ReleaseFunds(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseEventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Ledger.ReleaseFunds(id, caller); err != nil {
		return ledgerError(c, err)
	}
	h.Log.Info().Uint64("event_id", id).Msg("funds released")
	return c.NoContent(http.StatusNoContent)
}

// ArchiveEvent handles POST /v1/events/:id/archive, hiding a settled
// event from active listings without erasing the record.
func (h *OwnerHandler) ArchiveEvent(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseEventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Ledger.ArchiveEvent(id, caller); err != nil {
		return ledgerError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MyEvents handles GET /v1/my/events: the caller's created-event index.
func (h *OwnerHandler) MyEvents(c echo.Context) error {
	caller, err := callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	events := h.Ledger.ListByOwner(caller)
	out := make([]eventResp, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResp(ev, true))
	}
	return c.JSON(http.StatusOK, out)
}
