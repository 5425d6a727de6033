package audit

import "xdao.co/keyaudit/keybundle"

// DetectDrift compares each bundle with its predecessor in the order given.
// The sequence is never re-sorted; callers choose ascending or descending.
func DetectDrift(seq []keybundle.TimestampedBundle) DriftReport {
	rep := DriftReport{TotalBundles: len(seq)}
	if len(seq) < 2 {
		return rep
	}
	for i, next := range seq[1:] {
		prev := seq[i]
		if keybundle.Equal(prev.Bundle, next.Bundle) {
			continue
		}
		rep.MismatchedTransitions++
		rep.MismatchTimestamps = append(rep.MismatchTimestamps, next.Timestamp)
	}
	return rep
}
