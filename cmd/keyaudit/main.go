package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"xdao.co/keyaudit/audit"
	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/compliance"
	"xdao.co/keyaudit/config"
	"xdao.co/keyaudit/keys"
	"xdao.co/keyaudit/network"
	"xdao.co/keyaudit/snapshot"
	"xdao.co/keyaudit/storage"
	"xdao.co/keyaudit/storage/grpccas"
	"xdao.co/keyaudit/storage/localfs"
)

// dial is replaced in tests with an in-memory transport.
var dial = network.Dial

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	app := &app{cfg: cfg, logger: cfg.Logger(errOut), out: out, errOut: errOut}

	switch args[0] {
	case "contacts":
		return app.cmdContacts(ctx, args[1:])
	case "crosscheck":
		return app.cmdCrosscheck(ctx, args[1:])
	case "private":
		return app.cmdPrivate(ctx, args[1:])
	case "load":
		return app.cmdLoad(ctx, args[1:])
	case "key":
		return app.cmdKey(args[1:])
	case "bundle":
		return app.cmdBundle(args[1:])
	case "snapshot":
		return app.cmdSnapshot(args[1:])
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "keyaudit: audit XMTP contact key bundles")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  keyaudit contacts list|check|verify|dump <address> [list flags] [--full]")
	fmt.Fprintln(w, "  keyaudit crosscheck <address> [--env-a dev] [--env-b production] [list flags]")
	fmt.Fprintln(w, "  keyaudit private <address> [list flags]")
	fmt.Fprintln(w, "  keyaudit load <address> [--batch-size N] [--batch-count M] [list flags]")
	fmt.Fprintln(w, "  keyaudit key init --name <name> [--secret-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  keyaudit key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  keyaudit key list")
	fmt.Fprintln(w, "  keyaudit key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  keyaudit bundle new --signer <name> [--signer-role <role>] [--version 1|2] [--out <file>]")
	fmt.Fprintln(w, "  keyaudit bundle verify --address <address> (<file> | --hex <bytes>)")
	fmt.Fprintln(w, "  keyaudit snapshot show|export|import ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "List flags:")
	fmt.Fprintln(w, "  --env dev|production|local  --api-url <url>  --start <RFC3339>  --end <RFC3339>")
	fmt.Fprintln(w, "  --limit N  --desc  --json  --mode permissive|strict  --workers N")
	fmt.Fprintln(w, "  --save-snapshot <dir|grpc://host:port>  --snapshot <location> [--snapshot ...] --manifest <CID>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - XMTP_ENV, XMTP_API_URL, XMTP_TIMEOUT, XMTP_LOG_LEVEL and XMTP_KEYSTORE set defaults")
	fmt.Fprintln(w, "  - wallets are stored under ~/.xdao/keyaudit/wallets/<name> (0600 secret files)")
	fmt.Fprintln(w, "  - --save-snapshot prints the manifest CID to stderr; replay with --snapshot/--manifest")
	fmt.Fprintln(w, "  - exit status: 0 ok, 1 failure (strict mode: any FAIL), 2 usage")
}

type app struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// parseArgs accepts positionals before and after the flags.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		pos = append(pos, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return append(pos, fs.Args()...), nil
}

// listFlags are shared by every command that reads a topic.
type listFlags struct {
	env          string
	apiURL       string
	start        string
	end          string
	limit        int
	desc         bool
	asJSON       bool
	mode         string
	workers      int
	saveSnapshot string
	snapshots    stringList
	manifest     string
}

func (a *app) registerListFlags(fs *flag.FlagSet, f *listFlags, withEnv bool) {
	if withEnv {
		fs.StringVar(&f.env, "env", a.cfg.Env, "XMTP environment: dev, production or local")
		fs.StringVar(&f.apiURL, "api-url", a.cfg.APIURL, "Override the MessageApi address (http:// for plaintext)")
		fs.StringVar(&f.saveSnapshot, "save-snapshot", "", "Store fetched envelopes in this snapshot directory or grpc://host:port")
		fs.Var(&f.snapshots, "snapshot", "Read envelopes from this snapshot location instead of the network (repeatable)")
		fs.StringVar(&f.manifest, "manifest", "", "Snapshot manifest CID (with --snapshot)")
	}
	fs.StringVar(&f.start, "start", "", "Only envelopes at or after this RFC3339 time")
	fs.StringVar(&f.end, "end", "", "Only envelopes at or before this RFC3339 time")
	fs.IntVar(&f.limit, "limit", 0, "Maximum number of envelopes (0 = all)")
	fs.BoolVar(&f.desc, "desc", false, "Newest first")
	fs.BoolVar(&f.asJSON, "json", false, "Emit JSON")
	fs.StringVar(&f.mode, "mode", "permissive", "Compliance mode: permissive or strict")
	fs.IntVar(&f.workers, "workers", 1, "Verify bundles with this many workers")
}

func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t, nil
}

func (f *listFlags) listOptions() (network.ListOptions, error) {
	start, err := parseTimeFlag("start", f.start)
	if err != nil {
		return network.ListOptions{}, err
	}
	end, err := parseTimeFlag("end", f.end)
	if err != nil {
		return network.ListOptions{}, err
	}
	if f.limit < 0 {
		return network.ListOptions{}, fmt.Errorf("invalid --limit %d", f.limit)
	}
	opts := network.ListOptions{StartTime: start, EndTime: end, Limit: f.limit, Direction: network.DirectionAscending}
	if f.desc {
		opts.Direction = network.DirectionDescending
	}
	return opts, nil
}

func (f *listFlags) complianceMode() (compliance.ComplianceMode, error) {
	m, err := compliance.ParseMode(f.mode)
	if err != nil {
		return m, errors.New("invalid --mode (expected permissive or strict)")
	}
	return m, nil
}

func (f *listFlags) auditOptions() []audit.Option {
	return []audit.Option{audit.WithWorkers(f.workers)}
}

func (f *listFlags) validateSnapshotFlags() error {
	if len(f.snapshots) > 0 && f.manifest == "" {
		return errors.New("--snapshot requires --manifest")
	}
	if f.manifest != "" && len(f.snapshots) == 0 {
		return errors.New("--manifest requires --snapshot")
	}
	if len(f.snapshots) > 0 && f.saveSnapshot != "" {
		return errors.New("--save-snapshot cannot be combined with --snapshot")
	}
	return nil
}

func (a *app) open(envName, apiURL string) (*network.Client, error) {
	env, err := network.ParseEnvironment(envName)
	if err != nil {
		return nil, err
	}
	ep, err := network.ResolveEndpoint(env, apiURL)
	if err != nil {
		return nil, err
	}
	return dial(ep, network.WithLogger(a.logger), network.WithTimeout(a.cfg.Timeout))
}

// envelopes reads topic from a snapshot or from the network, saving a
// snapshot when asked.
func (a *app) envelopes(ctx context.Context, f *listFlags, addr keys.Address, topic string) ([]network.Envelope, error) {
	if len(f.snapshots) > 0 {
		return a.loadSnapshot(f, topic)
	}

	opts, err := f.listOptions()
	if err != nil {
		return nil, err
	}
	c, err := a.open(f.env, f.apiURL)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	envs, err := c.ListEnvelopes(ctx, topic, opts)
	if err != nil {
		return nil, err
	}
	if f.saveSnapshot != "" {
		cas, closeFn, err := openStore(f.saveSnapshot, a.cfg.Timeout)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		id, m, err := snapshot.Save(cas, snapshot.Manifest{
			Env:       f.env,
			Address:   addr.Hex(),
			Topic:     topic,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}, envs)
		if err != nil {
			return nil, err
		}
		a.logger.Info("snapshot saved", "manifest", id.String(), "id", m.ID.String(), "envelopes", len(envs))
		fmt.Fprintf(a.errOut, "snapshot: %s\n", id)
	}
	return envs, nil
}

func (a *app) loadSnapshot(f *listFlags, topic string) ([]network.Envelope, error) {
	id, err := cidutil.Parse(f.manifest)
	if err != nil {
		return nil, fmt.Errorf("invalid --manifest: %w", err)
	}
	var adapters []storage.CAS
	for _, loc := range f.snapshots {
		cas, closeFn, err := openStore(loc, a.cfg.Timeout)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		adapters = append(adapters, cas)
	}
	m, envs, err := snapshot.Load(storage.MultiCAS{Adapters: adapters}, id)
	if err != nil {
		return nil, err
	}
	if m.Topic != topic {
		return nil, fmt.Errorf("snapshot %s holds %s, not %s", id, m.Topic, topic)
	}
	a.logger.Debug("snapshot loaded", "manifest", id.String(), "env", m.Env, "envelopes", len(envs))
	return envs, nil
}

// openStore opens a snapshot directory, or a snapshot daemon for grpc://
// locations.
func openStore(location string, timeout time.Duration) (storage.CAS, func() error, error) {
	if grpccas.IsRemote(location) {
		c, err := grpccas.Dial(location, grpccas.DialOptions{Timeout: timeout})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	cas, err := localfs.New(location)
	if err != nil {
		return nil, nil, err
	}
	return cas, func() error { return nil }, nil
}

func parseAddressArg(pos []string, usage string, errOut io.Writer) (keys.Address, bool) {
	if len(pos) != 1 {
		fmt.Fprintln(errOut, usage)
		return keys.Address{}, false
	}
	addr, err := keys.ParseAddress(pos[0])
	if err != nil {
		fmt.Fprintf(errOut, "invalid address: %v\n", err)
		return keys.Address{}, false
	}
	return addr, true
}
