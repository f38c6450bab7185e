// Package transport holds the decoded layer-3/4 header tuple that is
// carried along the demux path from the datalink decoders down to the
// DNS handler, plus the UDP fast path.
package transport

import (
	"fmt"
	"net/netip"
	"time"
)

// Proto is the layer-4 protocol carried by a TransportMessage.
type Proto uint8

const (
	// ProtoUDP marks a UDP datagram.
	ProtoUDP Proto = iota
	// ProtoTCP marks a TCP segment.
	ProtoTCP
)

func (p Proto) String() string {
	switch p {
	case ProtoUDP:
		return "udp"
	case ProtoTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// Message is a decoded layer-3/4 header pair, created fresh for every
// frame and discarded once the DNS handler returns. It owns nothing
// beyond value fields, so it is safe to pass by value.
type Message struct {
	Timestamp time.Time
	SrcIP     netip.Addr
	DstIP     netip.Addr
	SrcPort   uint16
	DstPort   uint16
	IPVersion uint8 // 4 or 6
	Proto     Proto
}

func (m Message) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d (v%d/%s)",
		m.SrcIP, m.SrcPort, m.DstIP, m.DstPort, m.IPVersion, m.Proto)
}

// Handler is the seam to the downstream, out-of-scope DNS message parser.
// The core guarantees payload is either a single complete DNS-over-UDP
// datagram, or a single complete DNS-over-TCP message with its two-byte
// length prefix already stripped. payload is only valid for the duration
// of the call.
type Handler func(payload []byte, tm Message)

// DNSPort is the only port the core ever demultiplexes on.
const DNSPort = 53

// HandleUDP implements component D: it extracts source/destination ports
// from a UDP header, drops anything that isn't port 53 in either
// direction, and hands the UDP payload straight to handler.
//
// udp is the UDP header plus payload (8-byte header included); len(udp)
// must already reflect the UDP length field, not the capture snaplen.
func HandleUDP(udp []byte, tm Message, handler Handler) {
	if len(udp) < 8 {
		return
	}

	tm.SrcPort = beUint16(udp[0:2])
	tm.DstPort = beUint16(udp[2:4])
	tm.Proto = ProtoUDP

	if tm.SrcPort != DNSPort && tm.DstPort != DNSPort {
		return
	}

	handler(udp[8:], tm)
}

func beUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
