// Package orchestrator implements component G: the capture-window loop
// that ties components A through F together. It aligns measurement
// windows to a fixed interval, dispatches every captured frame down the
// datalink/IP/transport/reassembly chain, and closes out each window by
// expiring idle TCP flows and rotating kernel capture counters.
package orchestrator

import (
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/b4ldr/dsc-collector/capture"
	"github.com/b4ldr/dsc-collector/index"
	"github.com/b4ldr/dsc-collector/ipdecode"
	"github.com/b4ldr/dsc-collector/reassembly"
	"github.com/b4ldr/dsc-collector/transport"

	"github.com/google/gopacket/layers"
)

var log = zap.NewNop()

// Init installs a structured logger for this package's diagnostics.
func Init(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// Interval is the fixed measurement-window length (spec.md section 4.G),
// matching the original's INTERVAL constant.
const Interval = 60 * time.Second

// pollTimeout bounds how long a live-mode loop iteration sleeps before
// round-robining every interface again. It has no effect on correctness
// (every interface is always read regardless of what, if anything,
// became ready during the sleep) — see DESIGN.md for why this replaces
// a literal select(2)-over-pcap-fds port.
const pollTimeout = 250 * time.Millisecond

// WindowFunc is called once at the close of every measurement window,
// with the window's [start, finish) bounds and the interface stats
// captured at that instant.
type WindowFunc func(start, finish time.Time, stats []index.InterfaceStats)

// Source is the subset of *capture.Source the orchestrator drives. It is
// an interface, rather than a concrete *capture.Source, so the capture
// loop can be exercised in tests against a fake packet feed without a
// real pcap handle.
type Source interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	Decode(pkt []byte) ([]byte, bool)
	Stats() (pcap.Stats, error)
	Name() string
	IsOffline() bool
}

var _ Source = (*capture.Source)(nil)

// Orchestrator drives one or more Source values through the decode
// chain and calls onWindow at each Interval boundary.
type Orchestrator struct {
	sources  []Source
	handler  transport.Handler
	table    *reassembly.Table
	onWindow WindowFunc

	prevStats  []pcapCounters
	dispatched []uint64
}

type pcapCounters struct {
	PacketsReceived, PacketsDropped, PacketsIfDropped uint64
}

// New constructs an Orchestrator over sources, dispatching completed DNS
// messages to handler and reporting window boundaries to onWindow (which
// may be nil).
func New(sources []Source, handler transport.Handler, onWindow WindowFunc) (*Orchestrator, error) {
	if len(sources) == 0 {
		return nil, errors.New("no capture sources configured")
	}

	if len(sources) > capture.MaxInterfaces {
		return nil, errors.Errorf("too many capture sources: %d > %d", len(sources), capture.MaxInterfaces)
	}

	offline := 0
	for _, s := range sources {
		if s.IsOffline() {
			offline++
		}
	}

	// Mirrors the original's Pcap_init constraint: an offline capture
	// file replaces live interfaces entirely, and there is never more
	// than one of it.
	if offline > 0 && (offline != 1 || len(sources) != 1) {
		return nil, errors.New("an offline capture file must be the only configured source")
	}

	table := reassembly.NewTable(handler)
	table.SetLogger(log)

	return &Orchestrator{
		sources:    sources,
		handler:    handler,
		table:      table,
		onWindow:   onWindow,
		prevStats:  make([]pcapCounters, len(sources)),
		dispatched: make([]uint64, len(sources)),
	}, nil
}

// Run drives the capture loop until the offline source is exhausted, or,
// in live mode, until stop returns true (checked once per poll
// iteration; stop is not consulted in offline mode). In offline mode a
// read error other than EOF is returned; in live mode read errors are
// logged and the source is skipped for that round, so Run returns nil.
func (o *Orchestrator) Run(stop func() bool) error {
	if o.sources[0].IsOffline() {
		return o.runOffline()
	}

	return o.runLive(stop)
}

// runOffline dispatches every packet in the (single) offline source,
// seeding the window boundary from the first packet's timestamp and
// closing the final, necessarily partial, window once the file is
// exhausted, with its finish clamped to the last packet's timestamp.
// Mirrors the original's Pcap_start_time/Pcap_finish_time clamping
// around a capture file's actual packet timestamps.
func (o *Orchestrator) runOffline() error {
	src := o.sources[0]

	var windowStart time.Time
	var windowEnd time.Time
	var lastTS time.Time

	for {
		data, ci, err := src.ReadPacketData()
		if err == io.EOF {
			break
		}

		if err != nil {
			return errors.Wrap(err, "reading offline capture")
		}

		if windowStart.IsZero() {
			windowStart = ci.Timestamp.Truncate(Interval)
			windowEnd = windowStart.Add(Interval)
		}

		for !ci.Timestamp.Before(windowEnd) {
			o.closeWindow(windowStart, windowEnd)
			windowStart = windowEnd
			windowEnd = windowStart.Add(Interval)
		}

		o.dispatch(0, src, data, ci)
		lastTS = ci.Timestamp
	}

	if !windowStart.IsZero() {
		o.closeWindow(windowStart, lastTS)
	}

	return nil
}

// runLive drives a periodic round-robin read across every source,
// aligning window closes to Interval boundaries, until stop returns
// true. stop is checked once per poll iteration, not mid-dispatch.
func (o *Orchestrator) runLive(stop func() bool) error {
	now := time.Now()
	windowStart := now.Truncate(Interval)
	windowEnd := windowStart.Add(Interval)

	for {
		if stop != nil && stop() {
			o.closeWindow(windowStart, time.Now())
			return nil
		}

		sleep(pollTimeout)

		for i, src := range o.sources {
			for {
				data, ci, err := src.ReadPacketData()
				if err == pcap.NextErrorTimeoutExpired || err == io.EOF {
					break
				}

				if err != nil {
					log.Debug("read error, skipping source this round",
						zap.String("device", src.Name()), zap.Error(err))

					break
				}

				o.dispatch(i, src, data, ci)
			}
		}

		now = time.Now()
		for !now.Before(windowEnd) {
			o.closeWindow(windowStart, windowEnd)
			windowStart = windowEnd
			windowEnd = windowStart.Add(Interval)
		}
	}
}

// sleep blocks for d using a select(2)-style timed wait rather than
// time.Sleep, matching the original's choice of primitive even though,
// per DESIGN.md, no fd is actually multiplexed on here.
func sleep(d time.Duration) {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	_, _ = unix.Select(0, nil, nil, nil, &tv)
}

// dispatch runs one captured frame through the datalink, IP, and
// transport/reassembly layers, silently dropping it at whichever stage
// first fails to recognise it (spec.md section 7: recoverable-silent).
// It counts every frame handed to it as "dispatched", the Go analogue of
// the original's userland pkts_captured counter incremented by
// pcap_dispatch's callback count — independent of, and always <=, the
// kernel-side ps_recv closeWindow reads for filter_received.
func (o *Orchestrator) dispatch(i int, src Source, data []byte, ci gopacket.CaptureInfo) {
	o.dispatched[i]++

	ipPayload, ok := src.Decode(data)
	if !ok {
		return
	}

	res, ok := ipdecode.Decode(ipPayload)
	if !ok {
		return
	}

	tm := transport.Message{
		Timestamp: ci.Timestamp,
		SrcIP:     res.SrcIP,
		DstIP:     res.DstIP,
		IPVersion: res.IPVersion,
	}

	switch res.L4Proto {
	case layers.IPProtocolUDP:
		transport.HandleUDP(res.Payload, tm, o.handler)
	case layers.IPProtocolTCP:
		hdr, payload, ok := transport.ParseTCPHeader(res.Payload)
		if !ok {
			return
		}

		o.table.HandleTCP(hdr, payload, tm)
	}
}

// closeWindow expires idle TCP flows and rotates per-interface kernel
// counters (the Go analogue of ps0 <- ps1 in the original), then reports
// the window to onWindow if set.
func (o *Orchestrator) closeWindow(start, finish time.Time) {
	n := o.table.ExpireIdle(start)
	if n > 0 {
		log.Debug("window close: expired idle flows", zap.Int("count", n), zap.Time("window_start", start))
	}

	stats := make([]index.InterfaceStats, len(o.sources))

	for i, src := range o.sources {
		prev := o.prevStats[i]

		cur, err := src.Stats()

		received, dropped, ifdropped := prev.PacketsReceived, prev.PacketsDropped, prev.PacketsIfDropped
		if err != nil {
			log.Debug("pcap_stats failed", zap.String("device", src.Name()), zap.Error(err))
		} else {
			received = uint64(cur.PacketsReceived)
			dropped = uint64(cur.PacketsDropped)
			ifdropped = uint64(cur.PacketsIfDropped)
		}

		// pkts_captured is the local count of frames this process actually
		// handed to dispatch this window (the Go analogue of
		// pcap_dispatch's return value); filter_received is the kernel's
		// own post-BPF-filter count over the same window. The gap between
		// the two is packets the filter admitted but this process never
		// got to dispatch (e.g. a closed channel, a reader lagging behind
		// the kernel buffer) and is independent of the drop reasons
		// reassembly.Stats tracks further downstream.
		stats[i] = index.InterfaceStats{
			Name:           src.Name(),
			PktsCaptured:   o.dispatched[i],
			FilterReceived: received - prev.PacketsReceived,
			KernelDropped:  (dropped - prev.PacketsDropped) + (ifdropped - prev.PacketsIfDropped),
		}

		o.prevStats[i] = pcapCounters{PacketsReceived: received, PacketsDropped: dropped, PacketsIfDropped: ifdropped}
		o.dispatched[i] = 0
	}

	if o.onWindow != nil {
		o.onWindow(start, finish, stats)
	}
}

// Stats returns the reassembly table's drop counters.
func (o *Orchestrator) Stats() reassembly.Stats {
	return o.table.Stats()
}
