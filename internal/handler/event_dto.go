package handler

import (
	"time"

	"github.com/avelmor/ticket-escrow/internal/ledger"
)

// eventResp is the public JSON shape of a ledger event record. Amounts
// are decimal strings in smallest units; PriceDisplay renders the price
// in human units of the payment asset.
type eventResp struct {
	ID            uint64    `json:"id"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	ImageRef      string    `json:"image_ref,omitempty"`
	Details       string    `json:"details,omitempty"`
	Location      string    `json:"location,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	StartClock    string    `json:"start_clock,omitempty"`
	EndClock      string    `json:"end_clock,omitempty"`
	Price         string    `json:"price"`
	PriceDisplay  string    `json:"price_display"`
	Decimals      uint8     `json:"decimals"`
	Asset         string    `json:"asset"`
	Capacity      uint32    `json:"capacity,omitempty"`
	MinimumAge    uint8     `json:"minimum_age,omitempty"`
	RefundPolicy  uint8     `json:"refund_policy"`
	RefundBuffer  string    `json:"refund_buffer"`
	Active        bool      `json:"active"`
	Canceled      bool      `json:"canceled"`
	Archived      bool      `json:"archived"`
	FundsHeld     string    `json:"funds_held"`
	FundsReleased bool      `json:"funds_released"`
	AttendeeCount int       `json:"attendee_count"`
	Attendees     []string  `json:"attendees,omitempty"`
}

// toEventResp converts a ledger snapshot. The attendee list is included
// only when withAttendees is set; listings stay lean.
func toEventResp(ev ledger.Event, withAttendees bool) eventResp {
	resp := eventResp{
		ID:            ev.ID,
		Owner:         ev.Owner.Hex(),
		Name:          ev.Name,
		ImageRef:      ev.ImageRef,
		Details:       ev.Details,
		Location:      ev.Location,
		StartTime:     ev.StartTime,
		EndTime:       ev.EndTime,
		StartClock:    ev.StartClock,
		EndClock:      ev.EndClock,
		Price:         ev.Price.String(),
		PriceDisplay:  displayAmount(ev.Price, ev.Decimals),
		Decimals:      ev.Decimals,
		Asset:         ev.Asset.Hex(),
		Capacity:      ev.Capacity,
		MinimumAge:    ev.MinimumAge,
		RefundPolicy:  uint8(ev.Policy),
		RefundBuffer:  ev.RefundBuffer.String(),
		Active:        ev.Active,
		Canceled:      ev.Canceled,
		Archived:      ev.Archived,
		FundsHeld:     ev.FundsHeld.String(),
		FundsReleased: ev.FundsReleased,
		AttendeeCount: len(ev.Attendees),
	}
	if withAttendees {
		attendees := make([]string, 0, len(ev.Attendees))
		for _, a := range ev.Attendees {
			attendees = append(attendees, a.Hex())
		}
		resp.Attendees = attendees
	}
	return resp
}
