// Package index implements component F: a small framework of restartable
// iterators over the dimensions a capture-window report is broken down
// by (EDNS version seen, capturing interface, kernel capture counters),
// plus the indexer functions that classify a decoded message or a
// capture-window observation into one of those dimensions.
//
// The original C pairs each dimension with a package-level static-cursor
// iterator function (next_iter lives in the function's own static
// storage, reset by calling it with a nil label pointer). That shape
// doesn't translate to a reusable Go value — a single mutable package
// variable per dimension would make every consumer of an Indexer share
// iteration state. Instead each dimension is a value implementing
// Iterator, constructed fresh (or Reset) per report.
package index

import "go.uber.org/zap"

var log = zap.NewNop()

// Init installs a structured logger for this package's diagnostics.
func Init(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// Iterator walks the distinct labelled slots of one reporting dimension.
// Reset returns the number of slots as of the call (a dimension like
// EDNS version can grow as new versions are observed, so this is not
// necessarily stable across Reset calls within one run). Next returns
// the next (index, label) pair and ok=false once exhausted; it must be
// safe to call Next again after it returns ok=false only following
// another Reset.
type Iterator interface {
	Reset() int
	Next() (idx int, label string, ok bool)
}
