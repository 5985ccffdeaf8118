// Package scheduler implements the lane-based admission and dispatch layer
// sitting in front of vault/handles operations (SPEC_FULL.md §4.4): five
// priority lanes with bounded queues and per-lane deadlines, exactly-once
// reply semantics, single-flight read dedup, a decrypted-chunk cache, and
// an attribute cache.
package scheduler

import (
	"time"

	"github.com/oxcryptfs/oxcryptfs/config"
)

// Lane categorizes an operation for admission control and dispatch
// priority. Lanes give categorical priority instead of a single global
// queue: metadata stays responsive under an I/O storm, and bulk reads
// cannot starve foreground work (§4.4).
type Lane int

const (
	// LaneControl (L0) is internal scheduler bookkeeping and shutdown
	// coordination; always dispatched first.
	LaneControl Lane = iota
	// LaneMetadata (L1) is foreground metadata operations: lookup,
	// getattr, access, statfs, readlink, readdir.
	LaneMetadata
	// LaneReadForeground (L2) is small/interactive reads.
	LaneReadForeground
	// LaneWriteStructural (L3) is writes, create, mkdir, unlink, rmdir,
	// rename, setattr/truncate.
	LaneWriteStructural
	// LaneBulk (L4) is large sequential reads, prefetch, and background
	// revalidation.
	LaneBulk
)

// LaneCount is the number of lanes in the system.
const LaneCount = 5

// String names the lane the way diagnostics/logging report it.
func (l Lane) String() string {
	switch l {
	case LaneControl:
		return "L0-Control"
	case LaneMetadata:
		return "L1-Metadata"
	case LaneReadForeground:
		return "L2-ReadForeground"
	case LaneWriteStructural:
		return "L3-WriteStructural"
	case LaneBulk:
		return "L4-Bulk"
	default:
		return "unknown-lane"
	}
}

// BulkReadThreshold is the read size above which a read is classified as
// bulk rather than foreground (256 KiB).
const BulkReadThreshold = 256 * 1024

// ClassifyRead returns LaneReadForeground for reads at or below
// BulkReadThreshold, LaneBulk above it.
func ClassifyRead(size int) Lane {
	if size > BulkReadThreshold {
		return LaneBulk
	}
	return LaneReadForeground
}

// ClassifyMetadata returns the lane for any metadata operation.
func ClassifyMetadata() Lane { return LaneMetadata }

// ClassifyStructural returns the lane for any write or structural
// operation.
func ClassifyStructural() Lane { return LaneWriteStructural }

// ClassifyControl returns the lane for internal bookkeeping operations.
func ClassifyControl() Lane { return LaneControl }

// capacityFor reads lane's queue capacity out of a config.LaneCapacities.
func capacityFor(c config.LaneCapacities, l Lane) int {
	switch l {
	case LaneControl:
		return c.Control
	case LaneMetadata:
		return c.Metadata
	case LaneReadForeground:
		return c.ReadForeground
	case LaneWriteStructural:
		return c.WriteStructural
	case LaneBulk:
		return c.Bulk
	default:
		return 0
	}
}

// deadlineFor reads lane's reply deadline out of a config.LaneDeadlines.
func deadlineFor(d config.LaneDeadlines, l Lane) time.Duration {
	switch l {
	case LaneControl:
		return d.Control
	case LaneMetadata:
		return d.Metadata
	case LaneReadForeground:
		return d.ReadForeground
	case LaneWriteStructural:
		return d.WriteStructural
	case LaneBulk:
		return d.Bulk
	default:
		return 0
	}
}

// LaneReservations are the minimum executor slots reserved for the
// lanes that must never be entirely starved by lower-priority work.
type LaneReservations struct {
	MetadataMin        int
	WriteStructuralMin int
}

// DefaultLaneReservations matches the §4.4 reservation table.
func DefaultLaneReservations() LaneReservations {
	return LaneReservations{MetadataMin: 1, WriteStructuralMin: 2}
}
