package pipeline

import "time"

// RunStats tracks counters and totals across a batch run.
type RunStats struct {
	Total     int // sources after directory expansion
	Completed int // sources fully written

	Frames         int64
	AudioSamples   int64
	PaddedSamples  int64
	TrimmedSamples int64

	InputDuration    float64 // seconds, as probed
	TotalInputBytes  int64
	TotalOutputBytes int64
	Elapsed          time.Duration
}

// SizeRatio returns output size as a percentage of the summed input sizes.
func (s *RunStats) SizeRatio() int64 {
	if s.TotalInputBytes <= 0 {
		return 0
	}
	return s.TotalOutputBytes * 100 / s.TotalInputBytes
}
