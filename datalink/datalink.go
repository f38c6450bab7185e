// Package datalink implements the four datalink decoders (component B):
// Ethernet, PPP, Null/Loop and Raw. Each decoder peels its header off a
// captured frame and returns the IP payload it found inside, or false if
// the frame was malformed, too short, or not carrying an IP payload this
// core understands.
//
// All multi-byte header fields are read through explicit big-endian
// helpers rather than struct casts: capture buffers are not guaranteed to
// be aligned, and a cast would be undefined behaviour for the unaligned
// case in languages that care about it. Go slices don't have that
// problem mechanically, but we keep the explicit-load style because it
// documents, at the call site, exactly which bytes of the frame are
// being interpreted as a field.
package datalink

import (
	"go.uber.org/zap"

	"github.com/google/gopacket/layers"
)

var log = zap.NewNop()

// Init installs the logger used for decode-failure diagnostics. All
// drops here are silent at the protocol level (see spec.md section 7);
// the logger is for operator visibility only, never control flow.
func Init(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

const (
	etherHeaderLen = 14
	etherTypeLen   = 2
	dot1QTagLen    = 4
	ethertype8021Q = 0x8100

	pppAddressVal = 0xff
	pppControlVal = 0x03
)

func beUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// isIPEtherType reports whether et is an EtherType (IPv4 or IPv6) this
// core descends into. PPP protocol numbers are checked in ppp.go.
func isIPEtherType(et layers.EthernetType) bool {
	return et == layers.EthernetTypeIPv4 || et == layers.EthernetTypeIPv6
}
