package reassembly

const (
	// maxTCPMsgs is the number of messages being reassembled at once,
	// per connection.
	maxTCPMsgs = 8
	// maxTCPSegs is the number of segments held pending a matching
	// message, per connection.
	maxTCPSegs = 8
	// maxTCPHoles is the number of holes tracked per message buffer.
	maxTCPHoles = 8
)

// hole describes a still-missing byte range [start, start+len) in a
// msgBuf's buffer. len == 0 marks the descriptor free.
type hole struct {
	start uint16
	len   uint16
}

// msgBuf is a partially (or, fleetingly, fully) reassembled DNS-over-TCP
// message. It owns a buffer sized exactly to dnslen and a fixed-size
// hole table whose union exactly covers the bytes not yet received.
type msgBuf struct {
	seq    uint32 // sequence number of the first payload byte of this message
	dnslen uint16
	buf    []byte
	holes  [maxTCPHoles]hole
	nholes int
}

func newMsgBuf(seq uint32, dnslen uint16, firstLen int, first []byte) *msgBuf {
	m := &msgBuf{
		seq:    seq,
		dnslen: dnslen,
		buf:    make([]byte, dnslen),
	}
	copy(m.buf, first[:firstLen])
	m.holes[0] = hole{start: uint16(firstLen), len: dnslen - uint16(firstLen)}
	m.nholes = 1

	return m
}

// complete reports whether every byte of the message has been received.
func (m *msgBuf) complete() bool {
	return m.nholes == 0
}

// fill applies an RFC 815 hole-punch for a segment covering
// [segoff, segoff+seglen) of this message's buffer, then copies the
// segment payload in. It returns false if a hole split was needed but
// no free hole descriptor was available, in which case the segment is
// dropped per spec.md section 4.E.
func (m *msgBuf) fill(segoff int, seglen int, segment []byte) bool {
	for i := 0; i < maxTCPHoles; i++ {
		h := m.holes[i]
		if h.len == 0 {
			continue // descriptor not in use
		}

		hStart, hLen := int(h.start), int(h.len)

		if segoff >= hStart+hLen {
			continue // segment wholly after this hole
		}

		if segoff+seglen <= hStart {
			continue // segment wholly before this hole
		}

		// The segment overlaps this hole: delete it, then reconstitute
		// whatever of it the segment didn't cover.
		m.holes[i] = hole{}
		m.nholes--

		if segoff+seglen < hStart+hLen {
			// Post-hole: reuses slot i, which is now free.
			m.holes[i] = hole{
				start: uint16(segoff + seglen),
				len:   uint16((hStart + hLen) - (segoff + seglen)),
			}
			m.nholes++
		}

		if segoff > hStart {
			// Pre-hole: needs a different free slot.
			j := m.freeHoleSlot()
			if j < 0 {
				return false
			}

			m.holes[j] = hole{start: uint16(hStart), len: uint16(segoff - hStart)}
			m.nholes++
		}

		if segoff >= hStart && (hLen == 0 || segoff+seglen < hStart+hLen) {
			// The segment doesn't extend past this hole's boundaries;
			// no other hole can overlap it.
			break
		}
	}

	copy(m.buf[segoff:segoff+seglen], segment[:seglen])

	return true
}

func (m *msgBuf) freeHoleSlot() int {
	for i, h := range m.holes {
		if h.len == 0 {
			return i
		}
	}

	return -1
}
