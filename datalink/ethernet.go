package datalink

import (
	"go.uber.org/zap"

	"github.com/google/gopacket/layers"
)

// Ethernet decodes Ethernet II frames, with optional single 802.1Q VLAN
// tag support gated by an allow-list.
type Ethernet struct {
	// vlanAllow is the set of accepted VLAN IDs. An empty set accepts
	// all VLAN-tagged frames.
	vlanAllow map[uint16]struct{}

	// byteSwap controls whether the VLAN ID read from the tag is
	// byte-swapped before comparison against vlanAllow. This mirrors a
	// platform byte-order quirk in the original implementation: set
	// once at construction time and never toggled afterward, since the
	// source this was ported from never clears it either (spec.md
	// section 9, Open Questions).
	byteSwap bool
}

// NewEthernet constructs an Ethernet decoder. vlanIDs is the VLAN
// allow-list (nil or empty accepts every VLAN tag); byteSwap matches
// config.Config.VLANByteSwap.
func NewEthernet(vlanIDs []uint16, byteSwap bool) *Ethernet {
	e := &Ethernet{byteSwap: byteSwap}
	if len(vlanIDs) > 0 {
		e.vlanAllow = make(map[uint16]struct{}, len(vlanIDs))
		for _, id := range vlanIDs {
			e.vlanAllow[id] = struct{}{}
		}
	}

	return e
}

// Decode strips the Ethernet (and, if present, a single allow-listed
// 802.1Q) header from pkt and returns the IP payload.
func (e *Ethernet) Decode(pkt []byte) (ipPayload []byte, ok bool) {
	if len(pkt) < etherHeaderLen {
		return nil, false
	}

	etype := layers.EthernetType(beUint16(pkt[12:14]))
	pkt = pkt[etherHeaderLen:]

	if etype == ethertype8021Q {
		if !e.matchVLAN(pkt) {
			return nil, false
		}

		if len(pkt) < dot1QTagLen {
			return nil, false
		}

		etype = layers.EthernetType(beUint16(pkt[2:4]))
		pkt = pkt[dot1QTagLen:]
	}

	if !isIPEtherType(etype) {
		return nil, false
	}

	return pkt, true
}

// matchVLAN reports whether the VLAN tag starting at pkt[0:2] is in the
// allow-list. An empty allow-list matches everything.
func (e *Ethernet) matchVLAN(pkt []byte) bool {
	if len(e.vlanAllow) == 0 {
		return true
	}

	if len(pkt) < 2 {
		return false
	}

	vlan := beUint16(pkt[0:2])
	if e.byteSwap {
		vlan = (vlan>>8 | vlan<<8) & 0x0fff
	} else {
		vlan &= 0x0fff
	}

	log.Debug("vlan tag", zap.Uint16("vlan", vlan))

	_, ok := e.vlanAllow[vlan]

	return ok
}
