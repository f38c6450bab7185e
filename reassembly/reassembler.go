package reassembly

import (
	"github.com/b4ldr/dsc-collector/transport"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
)

// dispatch hands a completed DNS message to the configured Handler. The
// spew dump of the message tuple runs unconditionally, the same way the
// original's corresponding debug printout fires regardless of a
// separate debug flag (spec.md section 9, Open Questions) — its output
// is only observable through the logger at debug level, but the dump
// itself is computed on every call, whatever the logger's level.
func (t *Table) dispatch(payload []byte, tm transport.Message) {
	t.log.Debug("dns message reassembled", zap.String("flow", tm.String()), zap.String("dump", spew.Sdump(tm)))
	t.handler(payload, tm)
}

// HandleTCP implements component E's entry point (spec.md section 4.E):
// it demultiplexes on port 53, maintains per-flow state across
// SYN/RST/FIN, and feeds every payload byte into the hole-filling
// reassembler below. HandleTCP fills in tm's ports from hdr and sets
// tm.Proto to transport.ProtoTCP; tm's other fields are passed through
// unchanged to Handler once a message completes.
func (t *Table) HandleTCP(hdr transport.TCPHeader, payload []byte, tm transport.Message) {
	if hdr.SrcPort != transport.DNSPort && hdr.DstPort != transport.DNSPort {
		return
	}

	tm.SrcPort, tm.DstPort = hdr.SrcPort, hdr.DstPort
	tm.Proto = transport.ProtoTCP

	key := Key{SrcIP: tm.SrcIP, DstIP: tm.DstIP, SrcPort: hdr.SrcPort, DstPort: hdr.DstPort}

	s := t.lookup(key)
	if s == nil && !hdr.SYN {
		// No way to synchronize with this stream (commonly the final ACK
		// of a FIN exchange, or a long-lived connection that predates
		// capture start). Give up silently.
		return
	}

	if s != nil {
		t.unlink(s)
	}

	if hdr.RST {
		t.log.Debug("tcp RST", zap.Stringer("flow", key), zap.Uint32("seq", hdr.Seq))

		if s != nil {
			delete(t.states, key)
		}

		rkey := key.Reverse()
		if r := t.lookup(rkey); r != nil {
			t.unlink(r)
			delete(t.states, rkey)
		}

		return
	}

	seq := hdr.Seq

	if hdr.SYN {
		seq++ // skip the SYN itself

		if s != nil {
			s.reset(seq)
		} else {
			s = newState(key, seq)
			if !t.insert(s) {
				return
			}
		}
	}

	t.handleSegment(s, payload, seq, tm)

	if hdr.FIN && !s.fin {
		s.fin = true
	}

	if s.fin && s.msgbufs == 0 {
		delete(t.states, key)
		return
	}

	s.lastUse = tm.Timestamp
	t.linkNewest(s)
}

// handleSegment is adapted from the original's handle_tcp_segment. Given
// a run of payload bytes starting at sequence number seq, it either:
//   - fills the hole(s) of an already in-flight message this segment's
//     first byte belongs to, recursing on whatever extends past it;
//   - if no in-flight message matches and this segment sits exactly at
//     the stream position where the next message's length prefix
//     begins, captures that prefix and either fast-paths a segment
//     containing a complete message or opens a new msgbuf for it,
//     replaying any previously-held segments that now belong to it;
//   - otherwise holds the segment pending a matching msgbuf.
//
// The original checks the "does this complete a new message's length
// prefix" condition before checking for an existing in-flight match.
// Because that condition is an unsigned-wraparound test (seq - seqStart
// >= 2), it is true for any segment behind the current seqStart as well
// as ahead of it, which would misroute exactly the out-of-order,
// already-framed segments this package exists to reassemble. Checking
// the in-flight messages first is the only reordering on the original's
// dispatch; the body of each branch is unchanged.
//
// Recursion here is bounded: each call either returns without
// recursing, or consumes a strictly positive number of bytes before
// recursing on the remainder, or replays one of at most maxTCPSegs held
// segments. Depth therefore grows with the number of DNS messages packed
// into one segment (each consumes at least its 2-byte length prefix), so
// it is bounded by segment size, not by maxTCPMsgs or maxTCPHoles.
func (t *Table) handleSegment(s *state, segment []byte, seq uint32, tm transport.Message) {
	if len(segment) == 0 {
		return
	}

	if m, segoff, seglen := s.findMsgBuf(seq, len(segment)); m >= 0 {
		mb := s.msgbuf[m]
		if !mb.fill(segoff, seglen, segment) {
			t.stats.HoleSlotFull++
			t.log.Debug("out of hole descriptors, dropping segment", zap.Stringer("flow", s.key))

			return
		}

		if mb.complete() {
			tm.Proto = transport.ProtoTCP
			t.dispatch(mb.buf, tm)
			s.msgbuf[m] = nil
			s.msgbufs--
		}

		if seglen < len(segment) {
			t.handleSegment(s, segment[seglen:], seq+uint32(seglen), tm)
		}

		return
	}

	// A segment belongs at the current framing position only if it sits
	// exactly at, or one byte past, seqStart — i.e. it still carries (all
	// or the tail of) the next message's 2-byte length prefix. Treating
	// any other seqStart-relative position (ahead, not just the wrapped
	// "behind" case) as "the prefix must be known by now" would make the
	// unsigned-wraparound test always true and misroute genuinely-ahead
	// segments for messages whose header hasn't arrived yet.
	if o := seq - s.seqStart; o < 2 {
		l := 1
		if len(segment) > 1 && o == 0 {
			l = 2
		}

		copy(s.dnslenBuf[o:], segment[:l])
		segment = segment[l:]
		seq += uint32(l)

		if seq-s.seqStart >= 2 {
			dnslen := uint16(s.dnslenBuf[0])<<8 | uint16(s.dnslenBuf[1])
			s.seqStart += 2 + uint32(dnslen)

			if len(segment) >= int(dnslen) {
				// Segment contains a complete message: skip the
				// reassembly buffer entirely and hand it straight to
				// the handler.
				tm.Proto = transport.ProtoTCP
				t.dispatch(segment[:dnslen], tm)

				if len(segment) > int(dnslen) {
					t.handleSegment(s, segment[dnslen:], seq+uint32(dnslen), tm)
				}

				return
			}

			m := s.freeMsgSlot()
			if m < 0 {
				t.stats.MsgSlotFull++
				t.log.Debug("out of msgbufs", zap.Stringer("flow", s.key))

				return
			}

			s.msgbuf[m] = newMsgBuf(seq, dnslen, len(segment), segment)
			s.msgbufs++

			// Any already-held segments that belong to this now-known
			// message get replayed in.
			for i, sb := range s.segbuf {
				if sb == nil {
					continue
				}

				if sb.seq-seq < uint32(dnslen) {
					s.segbuf[i] = nil
					t.handleSegment(s, sb.buf, sb.seq, tm)
				}
			}
		}

		return
	}

	// Doesn't belong to any in-flight message and isn't at the current
	// framing position either: hold it in case a msgbuf for it shows up
	// later.
	if seq-s.seqStart > MaxTCPWindow {
		t.stats.WindowExceeded++
		t.log.Debug("segment outside tcp window, discarding", zap.Stringer("flow", s.key))

		return
	}

	sl := s.freeSegSlot()
	if sl < 0 {
		t.stats.SegSlotFull++
		t.log.Debug("out of segbufs", zap.Stringer("flow", s.key))

		return
	}

	s.segbuf[sl] = newSegBuf(seq, segment)
}

func (s *state) findMsgBuf(seq uint32, segLen int) (m, segoff, seglen int) {
	for i, mb := range s.msgbuf {
		if mb == nil {
			continue
		}

		off := int(seq - mb.seq)
		if off < 0 || off >= int(mb.dnslen) {
			continue
		}

		l := segLen
		if off+l > int(mb.dnslen) {
			l = int(mb.dnslen) - off
		}

		return i, off, l
	}

	return -1, 0, 0
}
