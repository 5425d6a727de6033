package compliance

import (
	"fmt"
	"strings"
)

// ComplianceMode selects how an audit outcome maps to success.
//
// Permissive reports every finding and succeeds. Strict turns any FAIL row
// or contamination into an error, which the CLI surfaces as exit status 1.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("ComplianceMode(%d)", int(m))
	}
}

// ParseMode parses the --mode flag value. Empty selects Permissive.
func ParseMode(s string) (ComplianceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("invalid mode %q (expected permissive|strict)", s)
	}
}
