package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"github.com/b4ldr/dsc-collector/datalink"
)

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.pcap")
	require.NoError(t, os.WriteFile(path, []byte("not a real pcap file"), 0o644))

	require.True(t, isRegularFile(path))
	require.False(t, isRegularFile(filepath.Join(dir, "does-not-exist")))
	require.False(t, isRegularFile(dir), "a directory is not a regular file")
}

func TestDecoderForKnownLinkTypes(t *testing.T) {
	cases := []struct {
		lt   layers.LinkType
		want interface{}
	}{
		{layers.LinkTypeEthernet, &datalink.Ethernet{}},
		{layers.LinkTypePPP, datalink.PPP{}},
		{layers.LinkTypeNull, datalink.NullOrLoop{}},
		{layers.LinkTypeLoop, datalink.NullOrLoop{}},
		{layers.LinkTypeRaw, datalink.Raw{}},
	}

	for _, c := range cases {
		dec, err := decoderFor(c.lt, nil, false)
		require.NoError(t, err)
		require.IsType(t, c.want, dec)
	}
}

func TestDecoderForUnknownLinkTypeErrors(t *testing.T) {
	_, err := decoderFor(layers.LinkType(9999), nil, false)
	require.Error(t, err)
}

// minimalPcapFile writes a classic libpcap capture file (global header
// only, no packet records) for linkType and returns its path.
func minimalPcapFile(t *testing.T, linkType uint32) string {
	t.Helper()

	hdr := make([]byte, 24)
	putLE32(hdr[0:4], 0xa1b2c3d4) // magic
	putLE16(hdr[4:6], 2)          // version major
	putLE16(hdr[6:8], 4)          // version minor
	// thiszone, sigfigs left zero
	putLE32(hdr[16:20], 65535) // snaplen
	putLE32(hdr[20:24], linkType)

	path := filepath.Join(t.TempDir(), "capture.pcap")
	require.NoError(t, os.WriteFile(path, hdr, 0o644))

	return path
}

func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestOpenOfflineEmptyCapture(t *testing.T) {
	path := minimalPcapFile(t, 1) // DLT_EN10MB

	src, err := Open(path, false, "", nil, false)
	require.NoError(t, err)
	defer src.Close()

	require.True(t, src.Offline)
	require.Equal(t, path, src.Device)
	require.IsType(t, &datalink.Ethernet{}, src.Decoder)

	_, _, err = src.ReadPacketData()
	require.Error(t, err, "an empty capture file is immediately exhausted")
}

func TestOpenOfflineRejectsBadFilter(t *testing.T) {
	path := minimalPcapFile(t, 1)

	_, err := Open(path, false, "this is not a valid bpf expression(((", nil, false)
	require.Error(t, err)
}
