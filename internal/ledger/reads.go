package ledger

import (
	"github.com/ethereum/go-ethereum/common"
)

// GetEvent returns a snapshot of a single event record, attendee list
// included.
func (l *Ledger) GetEvent(eventID uint64) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, err := l.lookup(eventID)
	if err != nil {
		return Event{}, err
	}
	return ev.snapshot(), nil
}

// ListActive returns every event that is still listed: not canceled and
// not archived. Records stay in the registry forever; this is a view,
// not the registry itself.
func (l *Ledger) ListActive() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, 0, len(l.events))
	for _, ev := range l.events {
		if ev.canceled || ev.archived {
			continue
		}
		out = append(out, ev.snapshot())
	}
	return out
}

// ListByOwner returns the caller's created-event index in creation order.
func (l *Ledger) ListByOwner(owner common.Address) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.byOwner[owner]
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.events[id].snapshot())
	}
	return out
}

// ListTickets returns every event the buyer currently holds a valid
// (non-refunded) ticket for.
func (l *Ledger) ListTickets(buyer common.Address) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.tickets[buyer] {
			out = append(out, ev.snapshot())
		}
	}
	return out
}

// HasTicket reports whether the address holds a ticket for the event.
func (l *Ledger) HasTicket(eventID uint64, addr common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, err := l.lookup(eventID)
	if err != nil {
		return false, err
	}
	return ev.tickets[addr], nil
}

// EventCount returns the number of records ever created, archived and
// canceled ones included.
func (l *Ledger) EventCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.events))
}
