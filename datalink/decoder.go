package datalink

// Decoder strips a single datalink-layer header and returns the payload
// to hand to the IP decoder (component C).
type Decoder interface {
	Decode(pkt []byte) (ipPayload []byte, ok bool)
}

var (
	_ Decoder = (*Ethernet)(nil)
	_ Decoder = PPP{}
	_ Decoder = NullOrLoop{}
	_ Decoder = Raw{}
)
