// Package audit drives the invariant checker over bundle sequences and runs
// the two comparison passes: drift over time and cross-environment overlap.
//
// Everything here is pure. Inputs are fully materialized sequences and the
// outputs are plain values; rendering belongs to package report.
package audit

import (
	"context"

	"golang.org/x/sync/errgroup"

	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
	"xdao.co/keyaudit/verify"
)

const noContactsMessage = "No contacts to verify"

type options struct {
	workers int
}

// Option configures an audit run.
type Option func(*options)

// WithWorkers verifies up to n bundles concurrently. Row order always follows
// the input order. n <= 1 verifies sequentially.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func buildOptions(opts []Option) options {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AuditSequence verifies every bundle of seq against claimed and runs drift
// detection over the same order. An empty sequence is a SKIP, not a failure.
func AuditSequence(label string, claimed keys.Address, seq []keybundle.TimestampedBundle, opts ...Option) SequenceReport {
	rep := SequenceReport{Label: label}
	if len(seq) == 0 {
		rep.Status = StatusSkip
		rep.Message = noContactsMessage
		return rep
	}

	rep.Rows = verifyRows(claimed, seq, buildOptions(opts))
	rep.Drift = DetectDrift(seq)

	rep.Status = StatusPass
	for _, row := range rep.Rows {
		if !row.Result.OK() {
			rep.Status = StatusFail
			break
		}
	}
	return rep
}

// AuditCrossEnvironment checks a and b for shared identity keys, then audits
// each side on its own.
func AuditCrossEnvironment(claimed keys.Address, a, b Sequence, opts ...Option) CrossReport {
	return CrossReport{
		Contamination: DetectContamination(a, b),
		Sides: []SequenceReport{
			AuditSequence(a.Label, claimed, a.Bundles, opts...),
			AuditSequence(b.Label, claimed, b.Bundles, opts...),
		},
	}
}

func verifyRows(claimed keys.Address, seq []keybundle.TimestampedBundle, o options) []Row {
	rows := make([]Row, len(seq))
	one := func(i int) {
		tb := seq[i]
		row := Row{Timestamp: tb.Timestamp, Result: verify.Verify(tb.Bundle, claimed)}
		if tb.Bundle != nil {
			row.Version = tb.Bundle.Version()
		}
		rows[i] = row
	}

	if o.workers <= 1 || len(seq) == 1 {
		for i := range seq {
			one(i)
		}
		return rows
	}

	// Each goroutine owns rows[i]; verification never fails so Wait has
	// nothing to report.
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(o.workers)
	for i := range seq {
		i := i
		g.Go(func() error {
			one(i)
			return nil
		})
	}
	_ = g.Wait()
	return rows
}
