// Package ipdecode implements component C: splitting IPv4 from IPv6,
// walking the IPv6 extension header chain, and rejecting fragments.
package ipdecode

import (
	"net/netip"

	"go.uber.org/zap"

	"github.com/google/gopacket/layers"
)

var log = zap.NewNop()

// Init installs the logger used for decode-failure diagnostics.
func Init(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// Result is what component C hands downstream to the UDP path or the
// TCP reassembler.
type Result struct {
	SrcIP     netip.Addr
	DstIP     netip.Addr
	IPVersion uint8
	L4Proto   layers.IPProtocol
	Payload   []byte // the L4 header + payload, sized from the IP header's own length field
}

// Decode dispatches on the high nibble of pkt[0] (the IP version field),
// which is read without assuming word alignment.
func Decode(pkt []byte) (Result, bool) {
	if len(pkt) == 0 {
		return Result{}, false
	}

	switch pkt[0] >> 4 {
	case 4:
		return decodeIPv4(pkt)
	case 6:
		return decodeIPv6(pkt)
	default:
		return Result{}, false
	}
}

func beUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
