package updates

import (
	"fmt"

	"github.com/updatewatch/agent/internal/pk"
)

// txHandle owns one in-flight daemon transaction. The validity flag guards
// against events for transactions the coordinator has already abandoned.
type txHandle struct {
	kind    pk.TxKind
	id      pk.TxID
	valid   bool
	lastErr *pk.ErrorEvent // most recent error event, consumed at Finished
}

func (h *txHandle) invalidate() {
	h.valid = false
}

// handleSet enforces at most one live transaction per kind.
type handleSet struct {
	byKind map[pk.TxKind]*txHandle
	byID   map[pk.TxID]*txHandle
}

func newHandleSet() *handleSet {
	return &handleSet{
		byKind: make(map[pk.TxKind]*txHandle),
		byID:   make(map[pk.TxID]*txHandle),
	}
}

// open registers a new live handle. It is an error to open a second handle
// of the same kind; callers must check live() first or coalesce.
func (s *handleSet) open(kind pk.TxKind, id pk.TxID) (*txHandle, error) {
	if existing, ok := s.byKind[kind]; ok && existing.valid {
		return nil, fmt.Errorf("transaction of kind %s already in flight", kind)
	}
	h := &txHandle{kind: kind, id: id, valid: true}
	s.byKind[kind] = h
	s.byID[id] = h
	return h, nil
}

// lookup finds the live handle for a transaction id. Events for unknown or
// invalidated transactions return false and are dropped by the caller.
func (s *handleSet) lookup(id pk.TxID) (*txHandle, bool) {
	h, ok := s.byID[id]
	if !ok || !h.valid {
		return nil, false
	}
	return h, true
}

// live reports whether a valid handle of the given kind exists.
func (s *handleSet) live(kind pk.TxKind) bool {
	h, ok := s.byKind[kind]
	return ok && h.valid
}

// close invalidates and removes a handle.
func (s *handleSet) close(h *txHandle) {
	h.invalidate()
	delete(s.byID, h.id)
	if s.byKind[h.kind] == h {
		delete(s.byKind, h.kind)
	}
}

// closeKind invalidates the live handle of the given kind, if any, so its
// remaining events are dropped. No-op when no such handle is live.
func (s *handleSet) closeKind(kind pk.TxKind) {
	if h, ok := s.byKind[kind]; ok && h.valid {
		s.close(h)
	}
}

// empty reports whether no transaction is in flight.
func (s *handleSet) empty() bool {
	return len(s.byID) == 0
}
