package ipdecode

import (
	"net/netip"

	"github.com/google/gopacket/layers"
)

const ipOffsetMask = 0x1fff // low 13 bits of the flags+fragment-offset field

// decodeIPv4 parses a minimal IPv4 header: reads the header length and
// total length fields, rejects any packet whose fragment offset is
// non-zero (we never reassemble IP fragments, see spec.md section 1),
// and slices the payload using the header's own total-length field
// rather than the capture's snapshot length.
func decodeIPv4(pkt []byte) (Result, bool) {
	if len(pkt) < 20 {
		return Result{}, false
	}

	ihl := int(pkt[0]&0x0f) * 4
	if ihl < 20 || len(pkt) < ihl {
		return Result{}, false
	}

	flagsFrag := beUint16(pkt[6:8])
	if flagsFrag&ipOffsetMask != 0 {
		log.Debug("rejecting IPv4 fragment")
		return Result{}, false
	}

	totalLen := int(beUint16(pkt[2:4]))
	if totalLen < ihl || totalLen > len(pkt) {
		return Result{}, false
	}

	proto := layers.IPProtocol(pkt[9])

	src, ok := netip.AddrFromSlice(pkt[12:16])
	if !ok {
		return Result{}, false
	}

	dst, ok := netip.AddrFromSlice(pkt[16:20])
	if !ok {
		return Result{}, false
	}

	return Result{
		SrcIP:     src,
		DstIP:     dst,
		IPVersion: 4,
		L4Proto:   proto,
		Payload:   pkt[ihl:totalLen],
	}, true
}
