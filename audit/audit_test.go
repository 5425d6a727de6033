package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"xdao.co/keyaudit/bundlegen"
	"xdao.co/keyaudit/compliance"
	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
)

type AuditSuite struct {
	suite.Suite
	wallet *keys.PrivateKey
	a, b   keybundle.KeyBundle
	v2     keybundle.KeyBundle
	base   time.Time
}

func TestAuditSuite(t *testing.T) {
	suite.Run(t, new(AuditSuite))
}

func (s *AuditSuite) SetupTest() {
	secret := bytes.Repeat([]byte{0x31}, keys.SecretLength)
	var err error
	s.wallet, err = keys.PrivateKeyFromBytes(secret)
	s.Require().NoError(err)

	s.base = time.Unix(1690000000, 0).UTC()
	ga, err := bundlegen.NewV1(s.wallet, bundlegen.Options{Rand: &bundlegen.DeterministicReader{B: 1}, Now: s.base})
	s.Require().NoError(err)
	gb, err := bundlegen.NewV1(s.wallet, bundlegen.Options{Rand: &bundlegen.DeterministicReader{B: 90}, Now: s.base})
	s.Require().NoError(err)
	gv2, err := bundlegen.NewV2(s.wallet, bundlegen.Options{Rand: &bundlegen.DeterministicReader{B: 1}, Now: s.base})
	s.Require().NoError(err)
	s.a, s.b, s.v2 = ga.Bundle, gb.Bundle, gv2.Bundle
}

func (s *AuditSuite) seq(bundles ...keybundle.KeyBundle) []keybundle.TimestampedBundle {
	out := make([]keybundle.TimestampedBundle, len(bundles))
	for i, b := range bundles {
		out[i] = keybundle.TimestampedBundle{Timestamp: s.base.Add(time.Duration(i) * time.Minute), Bundle: b}
	}
	return out
}

// =============================================================================
// Drift
// =============================================================================

func (s *AuditSuite) TestDetectDrift() {
	s.Run("identical bundles never drift", func() {
		rep := DetectDrift(s.seq(s.a, s.a, s.a, s.a, s.a))
		s.Equal(5, rep.TotalBundles)
		s.Zero(rep.MismatchedTransitions)
		s.Empty(rep.MismatchTimestamps)
	})

	s.Run("two byte-identical adjacent bundles", func() {
		rep := DetectDrift(s.seq(s.a, s.a))
		s.Equal(DriftReport{TotalBundles: 2}, rep)
	})

	s.Run("alternating bundles drift on every transition", func() {
		for n := 1; n <= 6; n++ {
			var bundles []keybundle.KeyBundle
			for i := 0; i < n; i++ {
				if i%2 == 0 {
					bundles = append(bundles, s.a)
				} else {
					bundles = append(bundles, s.b)
				}
			}
			seq := s.seq(bundles...)
			rep := DetectDrift(seq)
			s.Equal(n, rep.TotalBundles)
			s.Equal(n-1, rep.MismatchedTransitions, "n=%d", n)
			s.Len(rep.MismatchTimestamps, n-1)
			for i, ts := range rep.MismatchTimestamps {
				s.Equal(seq[i+1].Timestamp, ts, "records the later timestamp")
			}
		}
	})

	s.Run("different variants are unequal", func() {
		rep := DetectDrift(s.seq(s.a, s.v2))
		s.Equal(1, rep.MismatchedTransitions)
	})

	s.Run("order is taken as given", func() {
		seq := s.seq(s.a, s.a, s.b)
		reversed := []keybundle.TimestampedBundle{seq[2], seq[1], seq[0]}
		rep := DetectDrift(reversed)
		s.Equal(1, rep.MismatchedTransitions)
		s.Equal(seq[1].Timestamp, rep.MismatchTimestamps[0])
	})

	s.Run("empty sequence", func() {
		s.Equal(DriftReport{}, DetectDrift(nil))
	})
}

// =============================================================================
// Contamination
// =============================================================================

func (s *AuditSuite) TestDetectContamination() {
	s.Run("disjoint identity keys pass", func() {
		rep := DetectContamination(
			Sequence{Label: "dev", Bundles: s.seq(s.a, s.a)},
			Sequence{Label: "prod", Bundles: s.seq(s.b)},
		)
		s.Equal(StatusPass, rep.Status)
		s.Zero(rep.SharedFingerprintCount)
		s.Equal("No intermixed contacts. Found 2 dev contacts and 1 prod contacts", rep.Message)
	})

	s.Run("one shared identity key fails", func() {
		rep := DetectContamination(
			Sequence{Label: "dev", Bundles: s.seq(s.a, s.b)},
			Sequence{Label: "prod", Bundles: s.seq(s.a)},
		)
		s.Equal(StatusFail, rep.Status)
		s.Equal(1, rep.SharedFingerprintCount)
		s.Equal([]string{keybundle.Fingerprint(keybundle.RawIdentityKey(s.a))}, rep.SharedFingerprints)
		s.Equal("Found 1 identity keys that are the same in both environments. The identity key should be unique per environment.", rep.Message)
	})

	s.Run("duplicates within one side count once", func() {
		rep := DetectContamination(
			Sequence{Bundles: s.seq(s.a, s.a, s.a)},
			Sequence{Bundles: s.seq(s.a, s.a)},
		)
		s.Equal(1, rep.SharedFingerprintCount)
	})

	s.Run("empty sides pass with default labels", func() {
		rep := DetectContamination(Sequence{}, Sequence{})
		s.Equal(StatusPass, rep.Status)
		s.Equal("No intermixed contacts. Found 0 a contacts and 0 b contacts", rep.Message)
	})

	s.Run("bundles without an identity key contribute nothing", func() {
		empty := &keybundle.BundleV1{}
		rep := DetectContamination(
			Sequence{Bundles: s.seq(empty)},
			Sequence{Bundles: s.seq(empty)},
		)
		s.Equal(StatusPass, rep.Status)
	})

	s.Run("shared fingerprints are sorted", func() {
		rep := DetectContamination(
			Sequence{Bundles: s.seq(s.b, s.a)},
			Sequence{Bundles: s.seq(s.a, s.b)},
		)
		s.Equal(2, rep.SharedFingerprintCount)
		s.True(rep.SharedFingerprints[0] < rep.SharedFingerprints[1])
	})
}

// =============================================================================
// Orchestration
// =============================================================================

func (s *AuditSuite) TestAuditSequence() {
	s.Run("empty sequence is skipped", func() {
		rep := AuditSequence("dev", s.wallet.Address(), nil)
		s.Equal(StatusSkip, rep.Status)
		s.Equal("No contacts to verify", rep.Message)
		s.Empty(rep.Rows)
		s.NoError(Enforce(rep, compliance.Strict))
	})

	s.Run("well-formed bundles pass", func() {
		rep := AuditSequence("dev", s.wallet.Address(), s.seq(s.a, s.b, s.v2))
		s.Equal(StatusPass, rep.Status)
		s.Require().Len(rep.Rows, 3)
		for _, row := range rep.Rows {
			s.Equal("ok", row.Errors())
		}
		s.Equal(keybundle.V2, rep.Rows[2].Version)
		s.Equal(2, rep.Drift.MismatchedTransitions)
	})

	s.Run("one malformed bundle fails the sequence", func() {
		broken := &keybundle.BundleV1{IdentityKey: &keybundle.PublicKey{Key: append([]byte{0x04}, make([]byte, 64)...)}}
		rep := AuditSequence("dev", s.wallet.Address(), s.seq(s.a, broken))
		s.Equal(StatusFail, rep.Status)
		s.Equal("ok", rep.Rows[0].Errors())
		s.Equal("idkey_sig_missing", rep.Rows[1].Errors())
		s.Len(rep.Failed(), 1)

		s.NoError(Enforce(rep, compliance.Permissive))
		s.Error(Enforce(rep, compliance.Strict))
	})

	s.Run("workers preserve input order", func() {
		bundles := []keybundle.KeyBundle{s.a, &keybundle.BundleV1{}, s.b, s.v2, &keybundle.BundleV2{}, s.a}
		seq := s.seq(bundles...)
		sequential := AuditSequence("dev", s.wallet.Address(), seq)
		parallel := AuditSequence("dev", s.wallet.Address(), seq, WithWorkers(4))
		s.Equal(sequential, parallel)
	})
}

func (s *AuditSuite) TestAuditCrossEnvironment() {
	s.Run("empty side is skipped while the other is audited", func() {
		rep := AuditCrossEnvironment(s.wallet.Address(),
			Sequence{Label: "dev", Bundles: s.seq(s.a)},
			Sequence{Label: "production"},
		)
		s.Equal(StatusPass, rep.Contamination.Status)
		s.Require().Len(rep.Sides, 2)
		s.Equal("dev", rep.Sides[0].Label)
		s.Equal(StatusPass, rep.Sides[0].Status)
		s.Equal(StatusSkip, rep.Sides[1].Status)
		s.NoError(EnforceCross(rep, compliance.Strict))
	})

	s.Run("shared identity key fails strict mode", func() {
		rep := AuditCrossEnvironment(s.wallet.Address(),
			Sequence{Label: "dev", Bundles: s.seq(s.a)},
			Sequence{Label: "production", Bundles: s.seq(s.a)},
		)
		s.Equal(StatusFail, rep.Contamination.Status)
		s.Equal(StatusPass, rep.Sides[0].Status)
		s.Equal(StatusPass, rep.Sides[1].Status)
		s.NoError(EnforceCross(rep, compliance.Permissive))
		s.ErrorContains(EnforceCross(rep, compliance.Strict), "contamination")
	})
}
