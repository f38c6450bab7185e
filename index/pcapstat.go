package index

// InterfaceNameIndexer iterates the configured capture interfaces by
// name, in the fixed order they were registered at startup (spec.md
// section 5: at most 10 interfaces).
type InterfaceNameIndexer struct {
	Names []string
}

// Iterator returns a restartable Iterator over the interface names.
func (n *InterfaceNameIndexer) Iterator() Iterator {
	return &sliceIterator{items: n.Names}
}

// pcapStatLabels is the fixed, three-slot dimension every interface's
// kernel counters are reported against.
var pcapStatLabels = []string{"pkts_captured", "filter_received", "kernel_dropped"}

// PcapStatIndexer iterates the three counters tracked per interface:
// frames this process dispatched to the decode chain (a userland count),
// packets the kernel's BPF filter admitted, and packets the kernel
// dropped.
type PcapStatIndexer struct{}

// Iterator returns a restartable Iterator over the three counter names.
func (PcapStatIndexer) Iterator() Iterator {
	return &sliceIterator{items: pcapStatLabels}
}

type sliceIterator struct {
	items []string
	next  int
}

func (it *sliceIterator) Reset() int {
	it.next = 0

	return len(it.items)
}

func (it *sliceIterator) Next() (idx int, label string, ok bool) {
	if it.next >= len(it.items) {
		return 0, "", false
	}

	idx = it.next
	label = it.items[idx]
	it.next++

	return idx, label, true
}

// InterfaceStats is one interface's counters for the window just
// closed (one userland count, two kernel deltas), the fields
// pcap_report's md_array walks via
// PcapStatIndexer.
type InterfaceStats struct {
	Name           string
	PktsCaptured   uint64
	FilterReceived uint64
	KernelDropped  uint64
}

// Values returns the three counters in PcapStatIndexer's slot order.
func (s InterfaceStats) Values() [3]uint64 {
	return [3]uint64{s.PktsCaptured, s.FilterReceived, s.KernelDropped}
}
