package repository

import (
	"errors"
	"fmt"
)

// ErrLockOrder reports a lock acquisition that would break the global
// ordering. It is a programming error, never retried.
var ErrLockOrder = errors.New("lock order violation")

// LockOrder tracks the locks taken by one transaction: tickets before
// materials, and within each kind in ascending identifier order. Taking a
// lock already held is allowed.
type LockOrder struct {
	tickets       map[string]struct{}
	materials     map[string]struct{}
	lastTicket    string
	lastMaterial  string
	materialTaken bool
}

// NewLockOrder returns an empty tracker.
func NewLockOrder() *LockOrder {
	return &LockOrder{
		tickets:   make(map[string]struct{}),
		materials: make(map[string]struct{}),
	}
}

// Ticket checks whether the ticket lock may be taken and records it. It
// reports false when the lock is already held.
func (o *LockOrder) Ticket(id string) (bool, error) {
	if _, held := o.tickets[id]; held {
		return false, nil
	}
	if o.materialTaken {
		return false, fmt.Errorf("%w: ticket %s requested after a material lock", ErrLockOrder, id)
	}
	if len(o.tickets) > 0 && id < o.lastTicket {
		return false, fmt.Errorf("%w: ticket %s requested after ticket %s", ErrLockOrder, id, o.lastTicket)
	}
	o.tickets[id] = struct{}{}
	o.lastTicket = id
	return true, nil
}

// Material checks whether the material lock may be taken and records it.
// It reports false when the lock is already held.
func (o *LockOrder) Material(id string) (bool, error) {
	if _, held := o.materials[id]; held {
		return false, nil
	}
	if o.materialTaken && id < o.lastMaterial {
		return false, fmt.Errorf("%w: material %s requested after material %s", ErrLockOrder, id, o.lastMaterial)
	}
	o.materials[id] = struct{}{}
	o.lastMaterial = id
	o.materialTaken = true
	return true, nil
}

// Held lists every key recorded so far, tickets first.
func (o *LockOrder) Held() []string {
	keys := make([]string, 0, len(o.tickets)+len(o.materials))
	for id := range o.tickets {
		keys = append(keys, TicketLockKey(id))
	}
	for id := range o.materials {
		keys = append(keys, MaterialLockKey(id))
	}
	return keys
}

// TicketLockKey namespaces a ticket id for keyed locking.
func TicketLockKey(id string) string { return "ticket:" + id }

// MaterialLockKey namespaces a material id for keyed locking.
func MaterialLockKey(id string) string { return "material:" + id }
