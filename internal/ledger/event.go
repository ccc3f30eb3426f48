package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Limits and default windows for event records.
const (
	// MaxNameLength bounds the event name.
	MaxNameLength = 100
	// MinEventDuration is the shortest allowed gap between start and end.
	MinEventDuration = time.Hour
	// DefaultRefundBuffer is the window before an event's start during
	// which refunds stay allowed even without cancellation.
	DefaultRefundBuffer = 5 * time.Hour
)

// RefundPolicy selects how the refund cutoff is derived for an event.
type RefundPolicy uint8

const (
	// RefundStandard allows refunds until DefaultRefundBuffer before start.
	RefundStandard RefundPolicy = iota
	// RefundFlexible allows refunds until the event starts.
	RefundFlexible
	// RefundStrict allows refunds only after cancellation.
	RefundStrict
	// RefundCustom allows refunds until the event's own buffer before start.
	RefundCustom
)

// event is the internal mutable record held in the arena. Snapshots handed
// to callers are built by snapshot().
type event struct {
	id           uint64
	owner        common.Address
	name         string
	imageRef     string
	details      string
	location     string
	startTime    time.Time
	endTime      time.Time
	startClock   string
	endClock     string
	price        *big.Int // asset-native smallest units
	decimals     uint8
	assetAddr    common.Address
	capacity     uint32
	minimumAge   uint8
	policy       RefundPolicy
	refundBuffer time.Duration
	createdAt    time.Time

	active        bool
	canceled      bool
	archived      bool
	fundsHeld     *big.Int
	fundsReleased bool

	tickets   map[common.Address]bool // source of truth for purchase checks
	pending   map[common.Address]bool // buyers with a transfer still settling
	attendees []common.Address        // derived enumeration index
}

// refundCutoff returns the instant at which non-cancellation refunds stop
// being accepted. Strict policy returns the zero time, meaning "never open".
func (e *event) refundCutoff() (time.Time, bool) {
	switch e.policy {
	case RefundFlexible:
		return e.startTime, true
	case RefundStrict:
		return time.Time{}, false
	case RefundCustom:
		return e.startTime.Add(-e.refundBuffer), true
	default:
		return e.startTime.Add(-DefaultRefundBuffer), true
	}
}

// removeAttendee prunes the enumeration index after a refund. Order of the
// remaining entries is preserved.
func (e *event) removeAttendee(addr common.Address) {
	for i, a := range e.attendees {
		if a == addr {
			e.attendees = append(e.attendees[:i], e.attendees[i+1:]...)
			return
		}
	}
}

// Event is the read-model snapshot of a ledger record. Amount fields are
// copies; mutating them does not touch ledger state.
type Event struct {
	ID           uint64
	Owner        common.Address
	Name         string
	ImageRef     string
	Details      string
	Location     string
	StartTime    time.Time
	EndTime      time.Time
	StartClock   string
	EndClock     string
	Price        *big.Int
	Decimals     uint8
	Asset        common.Address
	Capacity     uint32
	MinimumAge   uint8
	Policy       RefundPolicy
	RefundBuffer time.Duration
	CreatedAt    time.Time

	Active        bool
	Canceled      bool
	Archived      bool
	FundsHeld     *big.Int
	FundsReleased bool

	Attendees []common.Address
}

func (e *event) snapshot() Event {
	attendees := make([]common.Address, len(e.attendees))
	copy(attendees, e.attendees)
	return Event{
		ID:            e.id,
		Owner:         e.owner,
		Name:          e.name,
		ImageRef:      e.imageRef,
		Details:       e.details,
		Location:      e.location,
		StartTime:     e.startTime,
		EndTime:       e.endTime,
		StartClock:    e.startClock,
		EndClock:      e.endClock,
		Price:         new(big.Int).Set(e.price),
		Decimals:      e.decimals,
		Asset:         e.assetAddr,
		Capacity:      e.capacity,
		MinimumAge:    e.minimumAge,
		Policy:        e.policy,
		RefundBuffer:  e.refundBuffer,
		CreatedAt:     e.createdAt,
		Active:        e.active,
		Canceled:      e.canceled,
		Archived:      e.archived,
		FundsHeld:     new(big.Int).Set(e.fundsHeld),
		FundsReleased: e.fundsReleased,
		Attendees:     attendees,
	}
}
