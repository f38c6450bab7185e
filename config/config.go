// Package config holds the plain configuration surface for the
// collector: nothing here reads a file, a flag set, or an environment
// variable itself — cmd/dsccap populates a Config and passes it down.
package config

import "github.com/pkg/errors"

// Config is the flat set of knobs every component in this module reads
// from, mirroring the original's process-wide global options (device
// list, promiscuous flag, BPF filter, VLAN allow-list) as one struct
// rather than package-level globals.
type Config struct {
	// Interfaces is the list of live device names to capture from.
	// Mutually exclusive with OfflineFile.
	Interfaces []string

	// OfflineFile is a single capture file to read instead of a live
	// interface. Mutually exclusive with Interfaces.
	OfflineFile string

	// Promisc puts live interfaces into promiscuous mode. Ignored for
	// OfflineFile.
	Promisc bool

	// BPFFilter is compiled and installed on every capture source. An
	// empty string matches everything.
	BPFFilter string

	// VLANIDs is the 802.1Q VLAN allow-list; empty accepts every tag.
	VLANIDs []uint16

	// VLANByteSwap mirrors the original's match_vlan byte-order quirk
	// (spec.md section 9, Open Questions): set once here, never
	// toggled at runtime.
	VLANByteSwap bool

	// Debug enables debug-level structured logging across every
	// component.
	Debug bool
}

// Validate reports whether c describes a usable capture configuration.
func (c *Config) Validate() error {
	if len(c.Interfaces) == 0 && c.OfflineFile == "" {
		return errors.New("must specify at least one interface or an offline capture file")
	}

	if len(c.Interfaces) > 0 && c.OfflineFile != "" {
		return errors.New("cannot specify both interfaces and an offline capture file")
	}

	if len(c.Interfaces) > 10 {
		return errors.New("at most 10 interfaces may be captured simultaneously")
	}

	if len(c.VLANIDs) > 100 {
		return errors.New("at most 100 VLAN IDs may be configured")
	}

	return nil
}

// Sources returns the device names this config captures from: either
// the single offline file, or the live interface list.
func (c *Config) Sources() []string {
	if c.OfflineFile != "" {
		return []string{c.OfflineFile}
	}

	return c.Interfaces
}
