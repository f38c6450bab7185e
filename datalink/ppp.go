package datalink

import "github.com/google/gopacket/layers"

// PPP decodes PPP frames, optionally stripping the 2-byte
// address/control prefix and handling both the 1-byte (PFC-compressed)
// and 2-byte protocol field encodings.
type PPP struct{}

// Decode strips a PPP header from pkt and returns the IP payload.
func (PPP) Decode(pkt []byte) (ipPayload []byte, ok bool) {
	if len(pkt) < 2 {
		return nil, false
	}

	if pkt[0] == pppAddressVal && pkt[1] == pppControlVal {
		pkt = pkt[2:]
	}

	if len(pkt) < 2 {
		return nil, false
	}

	var proto layers.PPPType

	if pkt[0]%2 == 1 {
		// Protocol Field Compression: one byte.
		proto = layers.PPPType(pkt[0])
		pkt = pkt[1:]
	} else {
		proto = layers.PPPType(beUint16(pkt[0:2]))
		pkt = pkt[2:]
	}

	if proto != layers.PPPTypeIPv4 {
		return nil, false
	}

	return pkt, true
}
