package normalizer

import "time"

// Report summarizes one normalization run. Counters cover work actually
// performed; skipped groups and columns surface in the logs.
type Report struct {
	RunID   string
	Config  string
	Rows    int
	Columns int

	// Renamed counts alias headers rewritten to their primary name.
	Renamed int

	NAConvertedPre  int
	NAConvertedPost int

	GroupsApplied int
	GroupsSkipped int

	CellsFilled int

	Duration time.Duration
}
