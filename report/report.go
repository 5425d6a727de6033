// Package report renders audit results as aligned text tables or JSON.
package report

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"xdao.co/keyaudit/audit"
	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/network"
)

// TimeFormat is used for every timestamp in text output.
const TimeFormat = time.RFC3339Nano

// Printer writes one kind of report per call.
type Printer struct {
	w    io.Writer
	json bool
}

func New(w io.Writer, asJSON bool) *Printer {
	return &Printer{w: w, json: asJSON}
}

func (p *Printer) table(header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func (p *Printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TruncateHex shortens a hex key to its first and last eight characters.
func TruncateHex(s string) string {
	if len(s) <= 19 {
		return s
	}
	return s[:8] + "…" + s[len(s)-8:]
}

func keyHex(raw []byte, full bool) string {
	if raw == nil {
		return "-"
	}
	h := hex.EncodeToString(raw)
	if full {
		return h
	}
	return TruncateHex(h)
}

type contactView struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	IdentityKey string    `json:"identity_key"`
	PreKey      string    `json:"pre_key"`
}

// Contacts lists one row per bundle with its (optionally truncated) keys.
func (p *Printer) Contacts(seq []keybundle.TimestampedBundle, full bool) error {
	views := make([]contactView, len(seq))
	for i, tb := range seq {
		views[i] = contactView{
			Date:        tb.Timestamp,
			Type:        versionOf(tb.Bundle),
			IdentityKey: keyHex(keybundle.RawIdentityKey(tb.Bundle), full || p.json),
			PreKey:      keyHex(keybundle.RawPreKey(tb.Bundle), full || p.json),
		}
	}
	if p.json {
		return p.encode(views)
	}
	return p.table("DATE\tTYPE\tIDENTITY KEY\tPRE KEY", func(tw *tabwriter.Writer) {
		for _, v := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Date.Format(TimeFormat), v.Type, v.IdentityKey, v.PreKey)
		}
	})
}

func versionOf(b keybundle.KeyBundle) string {
	if b == nil {
		return "-"
	}
	return b.Version().String()
}

type rowView struct {
	Date   time.Time `json:"date"`
	Type   string    `json:"type"`
	Errors []string  `json:"errors"`
}

type driftView struct {
	TotalBundles          int         `json:"total_bundles"`
	MismatchedTransitions int         `json:"mismatched_transitions"`
	MismatchTimestamps    []time.Time `json:"mismatch_timestamps"`
}

type sequenceView struct {
	Label   string     `json:"label"`
	Status  string     `json:"status"`
	Message string     `json:"message,omitempty"`
	Rows    []rowView  `json:"rows"`
	Drift   *driftView `json:"drift,omitempty"`
}

func newDriftView(d audit.DriftReport) *driftView {
	ts := d.MismatchTimestamps
	if ts == nil {
		ts = []time.Time{}
	}
	return &driftView{TotalBundles: d.TotalBundles, MismatchedTransitions: d.MismatchedTransitions, MismatchTimestamps: ts}
}

func newSequenceView(rep audit.SequenceReport) sequenceView {
	v := sequenceView{Label: rep.Label, Status: string(rep.Status), Message: rep.Message, Rows: []rowView{}}
	for _, row := range rep.Rows {
		v.Rows = append(v.Rows, rowView{Date: row.Timestamp, Type: row.Version.String(), Errors: row.Result.Strings()})
	}
	if rep.Status != audit.StatusSkip {
		v.Drift = newDriftView(rep.Drift)
	}
	return v
}

// Verify renders one verification row per bundle, or the SKIP row for an
// empty sequence.
func (p *Printer) Verify(rep audit.SequenceReport) error {
	if p.json {
		return p.encode(newSequenceView(rep))
	}
	return p.verifyText(rep)
}

func (p *Printer) verifyText(rep audit.SequenceReport) error {
	if rep.Status == audit.StatusSkip {
		return p.table("CHECK\tSTATUS\tMESSAGE", func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "%s contacts\t%s\t%s\n", rep.Label, rep.Status, rep.Message)
		})
	}
	if rep.Label != "" {
		fmt.Fprintf(p.w, "%s contacts: %s\n", rep.Label, rep.Status)
	}
	return p.table("DATE\tTYPE\tERRORS", func(tw *tabwriter.Writer) {
		for _, row := range rep.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Timestamp.Format(TimeFormat), row.Version, row.Errors())
		}
	})
}

// Drift prints each changed transition and the summary line.
func (p *Printer) Drift(rep audit.DriftReport) error {
	if p.json {
		return p.encode(newDriftView(rep))
	}
	for _, ts := range rep.MismatchTimestamps {
		fmt.Fprintf(p.w, "Contact changed %s\n", ts.Format(TimeFormat))
	}
	_, err := fmt.Fprintf(p.w, "Number of contacts: %d. Mismatched: %d\n", rep.TotalBundles, rep.MismatchedTransitions)
	return err
}

type crossView struct {
	Contamination struct {
		Status             string   `json:"status"`
		SharedCount        int      `json:"shared_fingerprint_count"`
		SharedFingerprints []string `json:"shared_fingerprints"`
		Message            string   `json:"message"`
	} `json:"contamination"`
	Sides []sequenceView `json:"sides"`
}

// Cross renders the contamination row followed by each side's verification.
func (p *Printer) Cross(rep audit.CrossReport) error {
	if p.json {
		var v crossView
		v.Contamination.Status = string(rep.Contamination.Status)
		v.Contamination.SharedCount = rep.Contamination.SharedFingerprintCount
		v.Contamination.SharedFingerprints = rep.Contamination.SharedFingerprints
		if v.Contamination.SharedFingerprints == nil {
			v.Contamination.SharedFingerprints = []string{}
		}
		v.Contamination.Message = rep.Contamination.Message
		v.Sides = []sequenceView{}
		for _, side := range rep.Sides {
			v.Sides = append(v.Sides, newSequenceView(side))
		}
		return p.encode(v)
	}

	check := "cross-environment confusion"
	if len(rep.Sides) == 2 && rep.Sides[0].Label != "" && rep.Sides[1].Label != "" {
		check = rep.Sides[0].Label + "/" + rep.Sides[1].Label + " confusion"
	}
	err := p.table("CHECK\tSTATUS\tMESSAGE", func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", check, rep.Contamination.Status, rep.Contamination.Message)
	})
	if err != nil {
		return err
	}
	for _, fp := range rep.Contamination.SharedFingerprints {
		fmt.Fprintf(p.w, "  shared identity key %s\n", fp)
	}
	for _, side := range rep.Sides {
		fmt.Fprintln(p.w)
		if err := p.verifyText(side); err != nil {
			return err
		}
	}
	return nil
}

// Timestamps lists private store publication times.
func (p *Printer) Timestamps(ts []time.Time) error {
	if p.json {
		if ts == nil {
			ts = []time.Time{}
		}
		return p.encode(ts)
	}
	return p.table("DATE", func(tw *tabwriter.Writer) {
		for _, t := range ts {
			fmt.Fprintln(tw, t.Format(TimeFormat))
		}
	})
}

// Load prints per-batch outcome tallies of a load probe.
func (p *Printer) Load(results []network.BatchResult) error {
	if p.json {
		type batchView struct {
			Batch    int            `json:"batch"`
			Started  time.Time      `json:"started"`
			Outcomes map[string]int `json:"outcomes"`
		}
		views := make([]batchView, len(results))
		for i, r := range results {
			views[i] = batchView{Batch: r.Index, Started: r.Started, Outcomes: r.Tallies}
		}
		return p.encode(views)
	}
	return p.table("BATCH\tSTARTED\tOUTCOME\tCOUNT", func(tw *tabwriter.Writer) {
		for _, r := range results {
			for _, k := range r.Outcomes() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", r.Index, r.Started.Format(TimeFormat), k, r.Tallies[k])
			}
		}
	})
}
