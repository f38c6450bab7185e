package reassembly

import (
	"time"

	"go.uber.org/zap"
)

// MaxStates bounds the number of concurrently tracked TCP flows
// (spec.md section 5: "≤ 65 535 live TCP flows").
const MaxStates = 65535

// MaxIdle is the duration after which an idle flow is evicted at a
// capture-window boundary.
const MaxIdle = 60 * time.Second

// MaxTCPWindow bounds how far ahead of seqStart a segment may sit
// before it is presumed un-reassemblable and dropped (spec.md section 4.E).
const MaxTCPWindow = 1 << 30

// Table is the hash index of live TCP flows plus the LRU list ordering
// them by last use, both owned here. There is exactly one Table per
// capture loop; per spec.md section 5 this whole package is driven from
// a single thread and holds no locks.
type Table struct {
	states map[Key]*state
	oldest *state
	newest *state

	handler Handler

	log   *zap.Logger
	stats Stats
}

// NewTable constructs an empty reassembly table. handler receives every
// completed DNS message (UDP datagrams never pass through here; see
// transport.HandleUDP for that fast path).
func NewTable(handler Handler) *Table {
	return &Table{
		states:  make(map[Key]*state),
		handler: handler,
		log:     zap.NewNop(),
	}
}

// SetLogger installs a structured logger for diagnostics. All drops
// remain silent at the protocol level regardless of the logger.
func (t *Table) SetLogger(l *zap.Logger) {
	if l != nil {
		t.log = l
	}
}

// Stats returns a snapshot of the table's counters.
func (t *Table) Stats() Stats {
	return t.stats
}

// Len reports the number of live flows.
func (t *Table) Len() int {
	return len(t.states)
}

func (t *Table) lookup(k Key) *state {
	return t.states[k]
}

// insert adds a new state to the index, enforcing MaxStates. Returns
// false (and does not insert) if the table is full.
func (t *Table) insert(s *state) bool {
	if len(t.states) >= MaxStates {
		t.stats.TableFull++
		t.log.Debug("tcp state table full, dropping new flow", zap.Int("max", MaxStates))

		return false
	}

	t.states[s.key] = s

	return true
}

// remove deletes a state from both the hash index and the LRU list,
// wherever it currently sits in the list.
func (t *Table) remove(s *state) {
	if _, ok := t.states[s.key]; !ok {
		return
	}

	t.unlink(s)
	delete(t.states, s.key)
}

// unlink detaches s from the LRU list without touching the hash index.
// Used both by remove() and by the per-segment handler, which detaches
// the acting state for the duration of its own processing.
func (t *Table) unlink(s *state) {
	if s.older != nil {
		s.older.newer = s.newer
	} else if t.oldest == s {
		t.oldest = s.newer
	}

	if s.newer != nil {
		s.newer.older = s.older
	} else if t.newest == s {
		t.newest = s.older
	}

	s.older, s.newer = nil, nil
}

// linkNewest appends s to the newest end of the LRU list. s must
// already be in the hash index (or about to be added to it).
func (t *Table) linkNewest(s *state) {
	s.older = t.newest
	s.newer = nil

	if t.newest != nil {
		t.newest.newer = s
	} else {
		t.oldest = s
	}

	t.newest = s
}

// ExpireIdle walks the LRU list from the oldest end and evicts every
// flow whose last use is before cutoff. Called once per capture window
// (spec.md section 4.G / 4.E "Expiry").
func (t *Table) ExpireIdle(cutoff time.Time) int {
	n := 0

	for t.oldest != nil && t.oldest.lastUse.Before(cutoff) {
		s := t.oldest
		t.unlink(s)
		delete(t.states, s.key)
		n++
	}

	if n > 0 {
		t.log.Debug("expired idle tcp flows", zap.Int("count", n))
	}

	return n
}
