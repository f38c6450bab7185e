package reassembly

import "time"

// state is the per-flow reassembly record (spec.md's TcpState). It is
// reachable from the table's hash index by key iff it is a member of
// the LRU list; it is temporarily detached from the list only while the
// per-segment handler for its own key is executing.
type state struct {
	key Key

	seqStart  uint32 // seq# of the length field of the next DNS message
	dnslenBuf [2]byte
	fin       bool
	lastUse   time.Time

	msgbuf  [maxTCPMsgs]*msgBuf
	msgbufs int
	segbuf  [maxTCPSegs]*segBuf

	older, newer *state // intrusive LRU links, borrowed by the table
}

// reset reinitializes a state to begin a new message stream at seq,
// discarding any in-flight messages and held segments. Used both for a
// fresh state and for a SYN arriving on an existing one (a new stream
// reusing the same 4-tuple).
func (s *state) reset(seq uint32) {
	s.seqStart = seq
	s.fin = false
	s.dnslenBuf = [2]byte{}

	for i := range s.msgbuf {
		s.msgbuf[i] = nil
	}

	s.msgbufs = 0

	for i := range s.segbuf {
		s.segbuf[i] = nil
	}
}

func newState(key Key, seq uint32) *state {
	s := &state{key: key}
	s.reset(seq)

	return s
}

func (s *state) freeMsgSlot() int {
	for i, m := range s.msgbuf {
		if m == nil {
			return i
		}
	}

	return -1
}

func (s *state) freeSegSlot() int {
	for i, sb := range s.segbuf {
		if sb == nil {
			return i
		}
	}

	return -1
}
