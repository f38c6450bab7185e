package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func drain(it Iterator) []string {
	var labels []string

	it.Reset()

	for {
		_, label, ok := it.Next()
		if !ok {
			break
		}

		labels = append(labels, label)
	}

	return labels
}

func TestEDNSVersionIndexerMalformedExcluded(t *testing.T) {
	var e EDNSVersionIndexer

	require.Equal(t, -1, e.Index(true, false, 0))
	require.Equal(t, []string{"none"}, drain(e.Iterator()), "a malformed message never grows the high-water mark")
}

func TestEDNSVersionIndexerNoEDNS(t *testing.T) {
	var e EDNSVersionIndexer

	require.Equal(t, 0, e.Index(false, false, 0))
	require.Equal(t, []string{"none"}, drain(e.Iterator()))
}

func TestEDNSVersionIndexerGrowsHighWaterMark(t *testing.T) {
	var e EDNSVersionIndexer

	require.Equal(t, 1, e.Index(false, true, 0))
	require.Equal(t, 3, e.Index(false, true, 2))
	require.Equal(t, 2, e.Index(false, true, 1))

	require.Equal(t, []string{"none", "0", "1", "2"}, drain(e.Iterator()))
}

func TestEDNSVersionIteratorIsRestartable(t *testing.T) {
	var e EDNSVersionIndexer
	e.Index(false, true, 0)

	it := e.Iterator()
	require.Equal(t, []string{"none", "0"}, drain(it))
	require.Equal(t, []string{"none", "0"}, drain(it), "Reset must allow a second full pass")
}

func TestInterfaceNameIndexer(t *testing.T) {
	idx := InterfaceNameIndexer{Names: []string{"eth0", "eth1"}}
	require.Equal(t, []string{"eth0", "eth1"}, drain(idx.Iterator()))
}

func TestPcapStatIndexer(t *testing.T) {
	var idx PcapStatIndexer
	require.Equal(t, []string{"pkts_captured", "filter_received", "kernel_dropped"}, drain(idx.Iterator()))
}

func TestInterfaceStatsValues(t *testing.T) {
	s := InterfaceStats{Name: "eth0", PktsCaptured: 10, FilterReceived: 8, KernelDropped: 1}
	require.Equal(t, [3]uint64{10, 8, 1}, s.Values())
}
