package transport

// TCPHeader is the subset of a TCP segment's fixed header that the
// reassembler needs: ports for the demux decision, the sequence number
// to place the segment in the stream, and the three flags that drive
// state transitions (SYN/RST/FIN). Options, if any, are skipped over
// via DataOffset but never interpreted.
type TCPHeader struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	SYN     bool
	RST     bool
	FIN     bool
}

const tcpHeaderLen = 20

// ParseTCPHeader reads the fixed 20-byte TCP header (plus any options,
// skipped via the data offset field) out of tcp and returns the
// remaining bytes as payload. ok is false if tcp is too short to
// contain a complete header, or the data offset claims more bytes than
// are present.
func ParseTCPHeader(tcp []byte) (hdr TCPHeader, payload []byte, ok bool) {
	if len(tcp) < tcpHeaderLen {
		return TCPHeader{}, nil, false
	}

	dataOffset := int(tcp[12]>>4) * 4
	if dataOffset < tcpHeaderLen || dataOffset > len(tcp) {
		return TCPHeader{}, nil, false
	}

	flags := tcp[13]

	hdr = TCPHeader{
		SrcPort: beUint16(tcp[0:2]),
		DstPort: beUint16(tcp[2:4]),
		Seq:     beUint32(tcp[4:8]),
		FIN:     flags&0x01 != 0,
		RST:     flags&0x04 != 0,
		SYN:     flags&0x02 != 0,
	}

	return hdr, tcp[dataOffset:], true
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
