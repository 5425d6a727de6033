package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"xdao.co/keyaudit/audit"
	"xdao.co/keyaudit/compliance"
	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
	"xdao.co/keyaudit/network"
	"xdao.co/keyaudit/report"
)

func (a *app) cmdContacts(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printContactsUsage(a.errOut)
		return 2
	}
	switch args[0] {
	case "list", "check", "verify", "dump":
		return a.cmdContactsRun(ctx, args[0], args[1:])
	case "help", "-h", "--help":
		printContactsUsage(a.out)
		return 0
	default:
		fmt.Fprintf(a.errOut, "unknown contacts subcommand: %s\n\n", args[0])
		printContactsUsage(a.errOut)
		return 2
	}
}

func printContactsUsage(w io.Writer) {
	fmt.Fprintln(w, "keyaudit contacts: inspect the contact bundles published by an address")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  keyaudit contacts list <address>    one row per bundle with its keys")
	fmt.Fprintln(w, "  keyaudit contacts check <address>   report key changes between consecutive bundles")
	fmt.Fprintln(w, "  keyaudit contacts verify <address>  verify every bundle's signature chain")
	fmt.Fprintln(w, "  keyaudit contacts dump <address>    print every decoded bundle")
}

func (a *app) cmdContactsRun(ctx context.Context, sub string, args []string) int {
	fs := flag.NewFlagSet("contacts "+sub, flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var f listFlags
	var full bool
	a.registerListFlags(fs, &f, true)
	fs.BoolVar(&full, "full", false, "Print full hex keys (list only)")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	addr, ok := parseAddressArg(pos, "usage: keyaudit contacts "+sub+" <address> [flags]", a.errOut)
	if !ok {
		return 2
	}
	if err := f.validateSnapshotFlags(); err != nil {
		fmt.Fprintln(a.errOut, err)
		return 2
	}
	mode, err := f.complianceMode()
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 2
	}
	if _, err := f.listOptions(); err != nil {
		fmt.Fprintln(a.errOut, err)
		return 2
	}

	envs, err := a.envelopes(ctx, &f, addr, network.ContactTopic(addr))
	if err != nil {
		fmt.Fprintf(a.errOut, "list contacts: %v\n", err)
		return 1
	}
	seq, err := network.DecodeContacts(envs)
	if err != nil {
		fmt.Fprintf(a.errOut, "decode contacts: %v\n", err)
		return 1
	}
	a.logger.Debug("contacts fetched", "address", addr.Hex(), "bundles", len(seq))

	p := report.New(a.out, f.asJSON)
	switch sub {
	case "list":
		err = p.Contacts(seq, full)
	case "check":
		err = p.Drift(audit.DetectDrift(seq))
	case "dump":
		err = p.Dump(seq)
	case "verify":
		return a.verifySequence(p, f.env, addr, seq, &f, mode)
	}
	if err != nil {
		fmt.Fprintf(a.errOut, "write report: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) verifySequence(p *report.Printer, label string, claimed keys.Address, seq []keybundle.TimestampedBundle, f *listFlags, mode compliance.ComplianceMode) int {
	rep := audit.AuditSequence(label, claimed, seq, f.auditOptions()...)
	if err := p.Verify(rep); err != nil {
		fmt.Fprintf(a.errOut, "write report: %v\n", err)
		return 1
	}
	if failed := rep.Failed(); len(failed) > 0 {
		a.logger.Warn("bundles failed verification", "address", claimed.Hex(), "failed", len(failed), "total", len(rep.Rows))
	}
	if err := audit.Enforce(rep, mode); err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	return 0
}

func (a *app) cmdCrosscheck(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("crosscheck", flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var f listFlags
	var envA, envB, urlA, urlB string
	a.registerListFlags(fs, &f, false)
	fs.StringVar(&envA, "env-a", string(network.EnvDev), "First environment")
	fs.StringVar(&envB, "env-b", string(network.EnvProduction), "Second environment")
	fs.StringVar(&urlA, "api-url-a", "", "Override the first environment's MessageApi address")
	fs.StringVar(&urlB, "api-url-b", "", "Override the second environment's MessageApi address")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	addr, ok := parseAddressArg(pos, "usage: keyaudit crosscheck <address> [--env-a dev] [--env-b production]", a.errOut)
	if !ok {
		return 2
	}
	mode, err := f.complianceMode()
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 2
	}
	opts, err := f.listOptions()
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 2
	}

	ca, err := a.open(envA, urlA)
	if err != nil {
		fmt.Fprintf(a.errOut, "%s: %v\n", envA, err)
		return 1
	}
	defer ca.Close()
	cb, err := a.open(envB, urlB)
	if err != nil {
		fmt.Fprintf(a.errOut, "%s: %v\n", envB, err)
		return 1
	}
	defer cb.Close()

	seqA, seqB, err := network.FetchPair(ctx, ca, cb, addr, opts)
	if err != nil {
		fmt.Fprintf(a.errOut, "list contacts: %v\n", err)
		return 1
	}
	rep := audit.AuditCrossEnvironment(addr,
		audit.Sequence{Label: envLabel(ca, envA), Bundles: seqA},
		audit.Sequence{Label: envLabel(cb, envB), Bundles: seqB},
		f.auditOptions()...)

	if err := report.New(a.out, f.asJSON).Cross(rep); err != nil {
		fmt.Fprintf(a.errOut, "write report: %v\n", err)
		return 1
	}
	if rep.Contamination.Status == audit.StatusFail {
		a.logger.Warn("identity keys shared across environments", "count", rep.Contamination.SharedFingerprintCount)
	}
	if err := audit.EnforceCross(rep, mode); err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	return 0
}

func envLabel(c *network.Client, flagValue string) string {
	if env := c.Env(); env != "" {
		return string(env)
	}
	return flagValue
}

func (a *app) cmdPrivate(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("private", flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var f listFlags
	a.registerListFlags(fs, &f, true)

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	addr, ok := parseAddressArg(pos, "usage: keyaudit private <address> [flags]", a.errOut)
	if !ok {
		return 2
	}
	if err := f.validateSnapshotFlags(); err != nil {
		fmt.Fprintln(a.errOut, err)
		return 2
	}
	if _, err := f.listOptions(); err != nil {
		fmt.Fprintln(a.errOut, err)
		return 2
	}

	envs, err := a.envelopes(ctx, &f, addr, network.PrivateStoreTopic(addr))
	if err != nil {
		fmt.Fprintf(a.errOut, "list private store: %v\n", err)
		return 1
	}
	ts := make([]time.Time, len(envs))
	for i, e := range envs {
		ts[i] = time.Unix(0, int64(e.TimestampNs)).UTC()
	}
	if err := report.New(a.out, f.asJSON).Timestamps(ts); err != nil {
		fmt.Fprintf(a.errOut, "write report: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) cmdLoad(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var f listFlags
	var batchSize, batchCount int
	var private bool
	a.registerListFlags(fs, &f, true)
	fs.IntVar(&batchSize, "batch-size", 10, "Parallel listings per batch")
	fs.IntVar(&batchCount, "batch-count", 1, "Number of sequential batches")
	fs.BoolVar(&private, "private", false, "Probe the private store topic instead of the contact topic")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	addr, ok := parseAddressArg(pos, "usage: keyaudit load <address> [--batch-size N] [--batch-count M]", a.errOut)
	if !ok {
		return 2
	}
	if batchSize < 1 || batchCount < 1 {
		fmt.Fprintln(a.errOut, "--batch-size and --batch-count must be positive")
		return 2
	}
	if len(f.snapshots) > 0 || f.saveSnapshot != "" {
		fmt.Fprintln(a.errOut, "load does not support snapshots")
		return 2
	}
	opts, err := f.listOptions()
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 2
	}

	c, err := a.open(f.env, f.apiURL)
	if err != nil {
		fmt.Fprintf(a.errOut, "%v\n", err)
		return 1
	}
	defer c.Close()

	topic := network.ContactTopic(addr)
	if private {
		topic = network.PrivateStoreTopic(addr)
	}
	results, err := c.LoadProbe(ctx, topic, opts, batchSize, batchCount)
	if err != nil {
		fmt.Fprintf(a.errOut, "load probe: %v\n", err)
		return 1
	}
	if err := report.New(a.out, f.asJSON).Load(results); err != nil {
		fmt.Fprintf(a.errOut, "write report: %v\n", err)
		return 1
	}
	return 0
}
