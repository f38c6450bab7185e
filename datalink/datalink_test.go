package datalink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ethFrame(etype uint16, payload []byte) []byte {
	f := make([]byte, etherHeaderLen+len(payload))
	copy(f[0:6], []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}) // dst mac
	copy(f[6:12], []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}) // src mac
	f[12] = byte(etype >> 8)
	f[13] = byte(etype)
	copy(f[14:], payload)

	return f
}

func TestEthernetAcceptsIPv4(t *testing.T) {
	e := NewEthernet(nil, false)
	payload := []byte{0x45, 0x00, 0x01, 0x02}

	out, ok := e.Decode(ethFrame(0x0800, payload))
	require.True(t, ok)
	require.Equal(t, payload, out)
}

func TestEthernetRejectsTooShort(t *testing.T) {
	e := NewEthernet(nil, false)
	_, ok := e.Decode(make([]byte, 10))
	require.False(t, ok)
}

func TestEthernetRejectsUnknownEtherType(t *testing.T) {
	e := NewEthernet(nil, false)
	_, ok := e.Decode(ethFrame(0x8035, []byte{1, 2, 3})) // RARP
	require.False(t, ok)
}

func TestEthernetVLANAllowList(t *testing.T) {
	inner := []byte{0x45, 0x00, 0xaa}
	frame := make([]byte, etherHeaderLen+4+len(inner))
	frame[12] = 0x81
	frame[13] = 0x00
	// VLAN tag: priority/cfi=0, id=42, then inner ethertype IPv4.
	frame[14] = 0x00
	frame[15] = 42
	frame[16] = 0x08
	frame[17] = 0x00
	copy(frame[18:], inner)

	e := NewEthernet([]uint16{42}, false)
	out, ok := e.Decode(frame)
	require.True(t, ok)
	require.Equal(t, inner, out)

	e2 := NewEthernet([]uint16{7}, false)
	_, ok = e2.Decode(frame)
	require.False(t, ok)
}

func TestPPPStripsAddressControlAndOneByteProto(t *testing.T) {
	payload := []byte{0x45, 0x00, 0x01}
	frame := append([]byte{0xff, 0x03, 0x21}, payload...) // PFC: proto=0x21 odd

	p := PPP{}
	out, ok := p.Decode(frame)
	require.True(t, ok)
	require.Equal(t, payload, out)
}

func TestPPPTwoByteProto(t *testing.T) {
	payload := []byte{0x45, 0x00, 0x01}
	frame := append([]byte{0x00, 0x21}, payload...)

	p := PPP{}
	out, ok := p.Decode(frame)
	require.True(t, ok)
	require.Equal(t, payload, out)
}

func TestNullAcceptsAFInet(t *testing.T) {
	payload := []byte{0x45, 0x00, 0x01}
	frame := append([]byte{2, 0, 0, 0}, payload...)

	d := NewNullOrLoop(0)
	out, ok := d.Decode(frame)
	require.True(t, ok)
	require.Equal(t, payload, out)
}

func TestNullRejectsUnknownFamily(t *testing.T) {
	frame := append([]byte{99, 0, 0, 0}, 1, 2, 3)

	d := NewNullOrLoop(0)
	_, ok := d.Decode(frame)
	require.False(t, ok)
}

func TestRawIsIdentity(t *testing.T) {
	payload := []byte{0x45, 0x00, 0x01}

	out, ok := Raw{}.Decode(payload)
	require.True(t, ok)
	require.Equal(t, payload, out)
}
