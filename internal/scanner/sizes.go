package scanner

import "math"

// Size is the classification of one blob against the threshold.
type Size struct {
	KB        float64
	MB        float64
	Qualifies bool
}

// Classify converts a byte count into KB/MB rounded half-up to two
// decimals and decides whether it exceeds thresholdKB. The comparison is
// strict: a file of exactly thresholdKB does not qualify.
func Classify(sizeBytes int64, thresholdKB float64) Size {
	kb := float64(sizeBytes) / 1024
	mb := kb / 1024
	return Size{
		KB:        roundHalfUp2(kb),
		MB:        roundHalfUp2(mb),
		Qualifies: kb > thresholdKB,
	}
}

func roundHalfUp2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
