package pipeline

import "sync/atomic"

// Stats is a point-in-time snapshot of pipeline counters.
//
// Every analyzed frame ends up in exactly one of NoPose, Skipped, Applied,
// Stale or Discarded once Run has returned.
type Stats struct {
	Captured  uint64 `json:"captured"`  // Frames read from the source
	Analyzed  uint64 `json:"analyzed"`  // Frames queued for analysis
	Dropped   uint64 `json:"dropped"`   // Frames selected for analysis but dropped on a full queue
	NoPose    uint64 `json:"no_pose"`   // Detector found nobody or failed
	Skipped   uint64 `json:"skipped"`   // Feature extraction failed
	Applied   uint64 `json:"applied"`   // Results applied to the controller
	Stale     uint64 `json:"stale"`     // Results for an exercise no longer selected
	Discarded uint64 `json:"discarded"` // Results thrown away after cancellation
}

type counters struct {
	captured  atomic.Uint64
	analyzed  atomic.Uint64
	dropped   atomic.Uint64
	noPose    atomic.Uint64
	skipped   atomic.Uint64
	applied   atomic.Uint64
	stale     atomic.Uint64
	discarded atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Captured:  c.captured.Load(),
		Analyzed:  c.analyzed.Load(),
		Dropped:   c.dropped.Load(),
		NoPose:    c.noPose.Load(),
		Skipped:   c.skipped.Load(),
		Applied:   c.applied.Load(),
		Stale:     c.stale.Load(),
		Discarded: c.discarded.Load(),
	}
}
