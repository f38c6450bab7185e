// Package reassembly implements component E: the TCP reassembly engine.
// It is the heart of this module — per-connection state, segment
// reordering and deduplication, hole tracking across interleaved DNS
// messages on a single stream, LRU idle expiry, and hard resource
// bounds under adversarial or lossy input.
//
// The algorithm is a direct port of the bounded msgbuf/segbuf/hole
// design in the original dsc pcap.c, not of gopacket's own tcpassembly
// stream-FSM reassembler: they solve different problems (gopacket's
// reassembles arbitrary byte streams behind a Stream interface; this
// one frames a sequence of independent, variable-length, length-prefixed
// messages with O(1) per-connection memory).
package reassembly

import (
	"net/netip"
	"strconv"
)

// Key is the 4-tuple identifying one direction of a TCP flow. Two keys
// are equal iff all four fields are bytewise equal; forward and reverse
// flows have distinct keys, since netip.Addr and plain integers compare
// by value this type is directly usable as a map key.
type Key struct {
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
}

// Reverse returns the key for the opposite direction of the same flow,
// used when a RST must tear down both directions' state.
func (k Key) Reverse() Key {
	return Key{SrcIP: k.DstIP, DstIP: k.SrcIP, SrcPort: k.DstPort, DstPort: k.SrcPort}
}

func (k Key) String() string {
	return k.SrcIP.String() + ":" + strconv.Itoa(int(k.SrcPort)) + " -> " +
		k.DstIP.String() + ":" + strconv.Itoa(int(k.DstPort))
}
