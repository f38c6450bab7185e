package ipdecode

import (
	"net/netip"

	"github.com/google/gopacket/layers"
)

const (
	ipv6HeaderLen = 40
	extHdrLen     = 2 // next-header + length byte; both count toward the 8x(length+1) total

	nextHdrHopByHop  = 0
	nextHdrRouting   = 43
	nextHdrFragment  = 44
	nextHdrESP       = 50
	nextHdrAH        = 51
	nextHdrDestOpts  = 60
)

// extAllowList is the strict set of IPv6 extension headers this core
// will walk past. Anything else (and Fragment, explicitly) stops the
// walk. Table-driven per spec.md section 9's design note, so adding an
// allow-listed header is one entry here.
var extAllowList = map[uint8]bool{
	nextHdrHopByHop: true,
	nextHdrRouting:  true,
	nextHdrDestOpts: true,
	nextHdrAH:       true,
	nextHdrESP:      true,
}

// decodeIPv6 walks the fixed 40-byte header then the extension header
// chain. AH and ESP are walked using the same "length = 8*(n+1)" byte
// encoding as the options-style headers (Hop-by-Hop/Routing/DestOpts),
// which is the behaviour of the implementation this was ported from.
// It is technically incorrect for ESP, whose header layout does not
// generally carry a length byte at this offset, but the deviation is
// preserved rather than silently "fixed" (spec.md section 9, Open
// Questions).
func decodeIPv6(pkt []byte) (Result, bool) {
	if len(pkt) < ipv6HeaderLen {
		return Result{}, false
	}

	payloadLen := int(beUint16(pkt[4:6]))
	nextHdr := pkt[6]
	offset := ipv6HeaderLen

	for extAllowList[nextHdr] || nextHdr == nextHdrFragment {
		if nextHdr == nextHdrFragment {
			log.Debug("rejecting IPv6 fragment")
			return Result{}, false
		}

		if offset+extHdrLen > len(pkt) {
			return Result{}, false
		}

		nh := pkt[offset]
		length := pkt[offset+1]
		extLen := 8 * (int(length) + 1)

		if extLen > payloadLen {
			return Result{}, false
		}

		nextHdr = nh
		offset += extLen
		payloadLen -= extLen
	}

	src, ok := netip.AddrFromSlice(pkt[8:24])
	if !ok {
		return Result{}, false
	}

	dst, ok := netip.AddrFromSlice(pkt[24:40])
	if !ok {
		return Result{}, false
	}

	if offset+payloadLen > len(pkt) {
		return Result{}, false
	}

	if payloadLen == 0 {
		return Result{}, false
	}

	return Result{
		SrcIP:     src,
		DstIP:     dst,
		IPVersion: 6,
		L4Proto:   layers.IPProtocol(nextHdr),
		Payload:   pkt[offset : offset+payloadLen],
	}, true
}
