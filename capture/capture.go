// Package capture implements component A: it opens a packet source
// (live interface or offline capture file), installs a BPF filter,
// and picks the right datalink decoder for whatever link-layer type the
// source reports. Live handles are opened with a 1 ms read timeout; they
// are not switched to non-blocking mode.
package capture

import (
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/b4ldr/dsc-collector/datalink"
)

var log = zap.NewNop()

// Init installs a structured logger for this package's diagnostics.
func Init(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// snaplen mirrors the original's PCAP_SNAPLEN: large enough to capture
// a full DNS-over-TCP message plus headers without truncation in the
// overwhelming majority of cases.
const snaplen = 65536

// MaxInterfaces bounds how many sources may be open at once (spec.md
// section 5).
const MaxInterfaces = 10

// Source wraps one opened pcap handle plus the datalink decoder picked
// for its link type.
type Source struct {
	Device  string
	Handle  *pcap.Handle
	Decoder datalink.Decoder
	Offline bool
}

// Open opens device (a capture file path or a live interface name),
// installs filterExpr as a BPF program, and selects a datalink decoder
// for the handle's reported link type. promisc is ignored for offline
// sources. vlanIDs and byteSwap configure the Ethernet decoder's VLAN
// allow-list, when the link type is Ethernet.
func Open(device string, promisc bool, filterExpr string, vlanIDs []uint16, byteSwap bool) (*Source, error) {
	offline := isRegularFile(device)

	handle, err := openHandle(device, promisc, offline)
	if err != nil {
		return nil, err
	}

	if err := handle.SetBPFFilter(filterExpr); err != nil {
		handle.Close()

		return nil, errors.Wrapf(err, "compiling BPF filter for %s", device)
	}

	dec, err := decoderFor(handle.LinkType(), vlanIDs, byteSwap)
	if err != nil {
		handle.Close()

		return nil, err
	}

	log.Debug("opened capture source",
		zap.String("device", device), zap.Bool("offline", offline),
		zap.Stringer("linktype", handle.LinkType()))

	return &Source{Device: device, Handle: handle, Decoder: dec, Offline: offline}, nil
}

func isRegularFile(device string) bool {
	fi, err := os.Stat(device)

	return err == nil && fi.Mode().IsRegular()
}

func openHandle(device string, promisc, offline bool) (*pcap.Handle, error) {
	if offline {
		h, err := pcap.OpenOffline(device)
		if err != nil {
			return nil, errors.Wrapf(err, "pcap_open_offline(%s)", device)
		}

		return h, nil
	}

	// to_ms=1, matching the original's comment on why a larger timeout
	// breaks multi-interface fairness under the always-read-every-fd
	// dispatch loop in the orchestrator.
	inactive, err := pcap.NewInactiveHandle(device)
	if err != nil {
		return nil, errors.Wrapf(err, "pcap_create(%s)", device)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(snaplen); err != nil {
		return nil, errors.Wrap(err, "setting snaplen")
	}

	if err := inactive.SetPromisc(promisc); err != nil {
		return nil, errors.Wrap(err, "setting promiscuous mode")
	}

	if err := inactive.SetTimeout(1 * time.Millisecond); err != nil {
		return nil, errors.Wrap(err, "setting read timeout")
	}

	h, err := inactive.Activate()
	if err != nil {
		return nil, errors.Wrapf(err, "pcap_open_live(%s)", device)
	}

	if err := h.SetDirection(pcap.DirectionInOut); err != nil {
		log.Debug("pcap_setdirection unsupported, ignoring", zap.Error(err))
	}

	return h, nil
}

func decoderFor(lt layers.LinkType, vlanIDs []uint16, byteSwap bool) (datalink.Decoder, error) {
	switch lt {
	case layers.LinkTypeEthernet:
		return datalink.NewEthernet(vlanIDs, byteSwap), nil
	case layers.LinkTypePPP:
		return datalink.PPP{}, nil
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		return datalink.NewNullOrLoop(0), nil
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		return datalink.Raw{}, nil
	default:
		return nil, errors.Errorf("unsupported data link type %d", lt)
	}
}

// ReadPacketData reads the next packet and its capture metadata, the
// Go analogue of a single pcap_dispatch callback invocation.
func (s *Source) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return s.Handle.ZeroCopyReadPacketData()
}

// Decode strips this source's datalink header off a captured frame,
// delegating to whichever Decoder Open selected for its link type.
func (s *Source) Decode(pkt []byte) ([]byte, bool) {
	return s.Decoder.Decode(pkt)
}

// Stats returns the underlying handle's kernel capture counters.
func (s *Source) Stats() (pcap.Stats, error) {
	return s.Handle.Stats()
}

// Name returns the device this source was opened against.
func (s *Source) Name() string {
	return s.Device
}

// IsOffline reports whether this source reads from a capture file
// rather than a live interface.
func (s *Source) IsOffline() bool {
	return s.Offline
}

// Close releases the underlying pcap handle.
func (s *Source) Close() {
	s.Handle.Close()
}
