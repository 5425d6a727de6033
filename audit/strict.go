package audit

import (
	"fmt"

	"xdao.co/keyaudit/compliance"
)

// Enforce applies mode to a finished sequence report.
//
// Permissive mode never rejects; findings stay in the report. Strict mode
// rejects any FAIL status. SKIP is not a failure in either mode.
func Enforce(rep SequenceReport, mode compliance.ComplianceMode) error {
	if mode != compliance.Strict {
		return nil
	}
	if rep.Status == StatusFail {
		return fmt.Errorf("strict mode: %s: %d of %d bundles failed verification", labelOr(rep.Label), len(rep.Failed()), len(rep.Rows))
	}
	return nil
}

// EnforceCross applies mode to a cross-environment report. Contamination is
// checked before either side.
func EnforceCross(rep CrossReport, mode compliance.ComplianceMode) error {
	if mode != compliance.Strict {
		return nil
	}
	if rep.Contamination.Status == StatusFail {
		return fmt.Errorf("strict mode: contamination: %d shared identity keys", rep.Contamination.SharedFingerprintCount)
	}
	for _, side := range rep.Sides {
		if err := Enforce(side, mode); err != nil {
			return err
		}
	}
	return nil
}

func labelOr(label string) string {
	if label == "" {
		return "contacts"
	}
	return label
}
