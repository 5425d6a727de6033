package audit

import (
	"fmt"
	"sort"

	"xdao.co/keyaudit/keybundle"
)

const (
	defaultLabelA = "a"
	defaultLabelB = "b"
)

// fingerprints collects the identity key fingerprints of seq. Bundles without
// an identity key contribute nothing.
func fingerprints(seq []keybundle.TimestampedBundle) map[string]struct{} {
	set := make(map[string]struct{}, len(seq))
	for _, tb := range seq {
		raw := keybundle.RawIdentityKey(tb.Bundle)
		if raw == nil {
			continue
		}
		set[keybundle.Fingerprint(raw)] = struct{}{}
	}
	return set
}

// DetectContamination reports identity keys present in both sequences.
// Identity keys are generated independently per environment, so any overlap
// means key material was carried across.
func DetectContamination(a, b Sequence) CrossEnvironmentReport {
	labelA, labelB := a.Label, b.Label
	if labelA == "" {
		labelA = defaultLabelA
	}
	if labelB == "" {
		labelB = defaultLabelB
	}

	setA := fingerprints(a.Bundles)
	setB := fingerprints(b.Bundles)

	var shared []string
	for fp := range setA {
		if _, ok := setB[fp]; ok {
			shared = append(shared, fp)
		}
	}
	sort.Strings(shared)

	if len(shared) == 0 {
		return CrossEnvironmentReport{
			Status: StatusPass,
			Message: fmt.Sprintf("No intermixed contacts. Found %d %s contacts and %d %s contacts",
				len(a.Bundles), labelA, len(b.Bundles), labelB),
		}
	}
	return CrossEnvironmentReport{
		Status:                 StatusFail,
		SharedFingerprintCount: len(shared),
		SharedFingerprints:     shared,
		Message: fmt.Sprintf("Found %d identity keys that are the same in both environments. The identity key should be unique per environment.",
			len(shared)),
	}
}
