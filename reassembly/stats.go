package reassembly

import "github.com/b4ldr/dsc-collector/transport"

// Handler receives a reassembled DNS-over-TCP message, exactly as
// transport.Handler does for the UDP fast path.
type Handler = transport.Handler

// Stats accumulates the recoverable-silent drop counters this package
// produces (spec.md section 7: these never surface as errors, only as
// observable counters). All of them represent adversarial or
// resource-exhausted conditions, never protocol-legal ones.
type Stats struct {
	// TableFull counts SYNs dropped because the flow table already
	// holds MaxStates entries.
	TableFull uint64
	// MsgSlotFull counts new DNS messages dropped because a connection
	// already has maxTCPMsgs messages in flight.
	MsgSlotFull uint64
	// SegSlotFull counts segments dropped because a connection already
	// holds maxTCPSegs unmatched segments.
	SegSlotFull uint64
	// HoleSlotFull counts segments dropped because filling them would
	// need more than maxTCPHoles hole descriptors.
	HoleSlotFull uint64
	// WindowExceeded counts segments dropped because they sit further
	// ahead of the expected sequence number than MaxTCPWindow.
	WindowExceeded uint64
	// Malformed is reported alongside the other counters, but no code
	// path in this package increments it, so it is always zero.
	Malformed uint64
}
