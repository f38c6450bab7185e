package orchestrator

import (
	"io"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/stretchr/testify/require"

	"github.com/b4ldr/dsc-collector/capture"
	"github.com/b4ldr/dsc-collector/datalink"
	"github.com/b4ldr/dsc-collector/index"
	"github.com/b4ldr/dsc-collector/transport"
)

// fakeSource is an in-memory Source implementation, feeding a fixed list
// of (frame, timestamp) pairs and reporting constant kernel counters.
type fakeSource struct {
	name    string
	offline bool
	frames  [][]byte
	times   []time.Time
	next    int

	received, dropped uint64
}

func (f *fakeSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if f.next >= len(f.frames) {
		if f.offline {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}

		return nil, gopacket.CaptureInfo{}, pcap.NextErrorTimeoutExpired
	}

	data := f.frames[f.next]
	ci := gopacket.CaptureInfo{Timestamp: f.times[f.next], CaptureLength: len(data), Length: len(data)}
	f.next++

	return data, ci, nil
}

func (f *fakeSource) Decode(pkt []byte) ([]byte, bool) { return datalink.Raw{}.Decode(pkt) }
func (f *fakeSource) Stats() (pcap.Stats, error) {
	return pcap.Stats{PacketsReceived: int(f.received), PacketsDropped: int(f.dropped)}, nil
}
func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) IsOffline() bool { return f.offline }

var _ Source = (*fakeSource)(nil)

func udpDNSPacket(payload []byte) []byte {
	udp := make([]byte, 8+len(payload))
	udp[0], udp[1] = 0xc3, 0x50 // src port 50000
	udp[2], udp[3] = 0, 53      // dst port 53
	udp[4] = byte((8 + len(payload)) >> 8)
	udp[5] = byte(8 + len(payload))
	copy(udp[8:], payload)

	total := 20 + len(udp)
	pkt := make([]byte, total)
	pkt[0] = 0x45
	pkt[2], pkt[3] = byte(total>>8), byte(total)
	pkt[8] = 64 // TTL
	pkt[9] = 17 // UDP
	copy(pkt[12:16], []byte{198, 51, 100, 7})
	copy(pkt[16:20], []byte{192, 0, 2, 53})
	copy(pkt[20:], udp)

	return pkt
}

func TestRunOfflineDispatchesAndClosesWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)

	src := &fakeSource{
		name:    "capture.pcap",
		offline: true,
		frames:  [][]byte{udpDNSPacket([]byte("hello"))},
		times:   []time.Time{base},
	}

	var got []byte
	var windows []time.Time

	o, err := New([]Source{src}, func(payload []byte, tm transport.Message) {
		got = append([]byte(nil), payload...)
	}, func(start, finish time.Time, stats []index.InterfaceStats) {
		windows = append(windows, start)
	})
	require.NoError(t, err)

	require.NoError(t, o.Run(nil))
	require.Equal(t, []byte("hello"), got)
	require.Len(t, windows, 1)
	require.Equal(t, base.Truncate(Interval), windows[0])
}

func TestRunOfflineSpansMultipleWindows(t *testing.T) {
	w0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	src := &fakeSource{
		name:    "capture.pcap",
		offline: true,
		frames:  [][]byte{udpDNSPacket([]byte("a")), udpDNSPacket([]byte("b"))},
		times:   []time.Time{w0, w0.Add(Interval + time.Second)},
	}

	var closes int

	o, err := New([]Source{src}, func(payload []byte, tm transport.Message) {}, func(start, finish time.Time, stats []index.InterfaceStats) {
		closes++
	})
	require.NoError(t, err)

	require.NoError(t, o.Run(nil))
	require.Equal(t, 2, closes, "one close for the window the first packet lands in, one for the final partial window")
}

func TestNewRejectsTooManySources(t *testing.T) {
	sources := make([]Source, capture.MaxInterfaces+1)
	for i := range sources {
		sources[i] = &fakeSource{name: "eth0", offline: true}
	}

	_, err := New(sources, nil, nil)
	require.Error(t, err)
}

func TestNewRejectsMixedOfflineAndLive(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", offline: true},
		&fakeSource{name: "b", offline: false},
	}

	_, err := New(sources, nil, nil)
	require.Error(t, err)
}

func TestNewRejectsMultipleOfflineFiles(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a.pcap", offline: true},
		&fakeSource{name: "b.pcap", offline: true},
	}

	_, err := New(sources, nil, nil)
	require.Error(t, err, "an offline capture file must be the only configured source")
}

func TestNewRejectsNoSources(t *testing.T) {
	_, err := New(nil, nil, nil)
	require.Error(t, err)
}

func TestWindowStatsReportDeltasNotTotals(t *testing.T) {
	w0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	src := &fakeSource{
		name:     "eth0",
		offline:  true,
		frames:   [][]byte{udpDNSPacket([]byte("x")), udpDNSPacket([]byte("y"))},
		times:    []time.Time{w0, w0.Add(Interval + time.Second)},
		received: 100,
		dropped:  3,
	}

	var stats [][]index.InterfaceStats

	o, err := New([]Source{src}, func(payload []byte, tm transport.Message) {}, func(start, finish time.Time, s []index.InterfaceStats) {
		stats = append(stats, s)
	})
	require.NoError(t, err)

	require.NoError(t, o.Run(nil))
	require.Len(t, stats, 2)
	require.Len(t, stats[0], 1)
	require.Equal(t, uint64(1), stats[0][0].PktsCaptured, "pkts_captured counts frames actually dispatched this window, not the kernel's recv delta")
	require.Equal(t, uint64(100), stats[0][0].FilterReceived, "filter_received reports the raw kernel-stat delta")
	require.Equal(t, uint64(3), stats[0][0].KernelDropped)

	// The kernel counters did not move after the first window, so the
	// second window's deltas are zero even though the totals are not.
	require.Equal(t, uint64(1), stats[1][0].PktsCaptured)
	require.Equal(t, uint64(0), stats[1][0].FilterReceived)
	require.Equal(t, uint64(0), stats[1][0].KernelDropped)
}
