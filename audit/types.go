package audit

import (
	"time"

	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/verify"
)

// Status is the outcome of one check row.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Sequence is a labelled run of bundles fetched from one environment.
type Sequence struct {
	Label   string
	Bundles []keybundle.TimestampedBundle
}

// DriftReport summarizes content changes between adjacent bundles.
type DriftReport struct {
	TotalBundles          int
	MismatchedTransitions int
	MismatchTimestamps    []time.Time
}

// CrossEnvironmentReport is the result of the identity key intersection.
// SharedFingerprints is sorted and empty on PASS.
type CrossEnvironmentReport struct {
	Status                 Status
	SharedFingerprintCount int
	SharedFingerprints     []string
	Message                string
}

// Row is the verification outcome of one bundle.
type Row struct {
	Timestamp time.Time
	Version   keybundle.Version
	Result    verify.Result
}

// Errors renders the row's codes, or "ok".
func (r Row) Errors() string { return r.Result.Joined() }

// SequenceReport is the single-sequence audit of one label.
//
// Rows and Drift are empty when Status is SKIP.
type SequenceReport struct {
	Label   string
	Status  Status
	Message string
	Rows    []Row
	Drift   DriftReport
}

// Failed returns the rows that carry at least one code.
func (r SequenceReport) Failed() []Row {
	var out []Row
	for _, row := range r.Rows {
		if !row.Result.OK() {
			out = append(out, row)
		}
	}
	return out
}

// CrossReport is the cross-environment audit: contamination first, then one
// report per side in argument order.
type CrossReport struct {
	Contamination CrossEnvironmentReport
	Sides         []SequenceReport
}
