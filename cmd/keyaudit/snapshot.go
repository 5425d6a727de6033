package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/snapshot"
	"xdao.co/keyaudit/storage/archive"
)

const manifestRoot = "manifest"

func (a *app) cmdSnapshot(args []string) int {
	if len(args) == 0 {
		printSnapshotUsage(a.errOut)
		return 2
	}
	switch args[0] {
	case "show":
		return a.cmdSnapshotShow(args[1:])
	case "export":
		return a.cmdSnapshotExport(args[1:])
	case "import":
		return a.cmdSnapshotImport(args[1:])
	case "help", "-h", "--help":
		printSnapshotUsage(a.out)
		return 0
	default:
		fmt.Fprintf(a.errOut, "unknown snapshot subcommand: %s\n\n", args[0])
		printSnapshotUsage(a.errOut)
		return 2
	}
}

func printSnapshotUsage(w io.Writer) {
	fmt.Fprintln(w, "keyaudit snapshot: inspect and move saved listings")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  keyaudit snapshot show --snapshot <location> --manifest <CID>")
	fmt.Fprintln(w, "  keyaudit snapshot export --snapshot <location> --manifest <CID> --out <file.tar>")
	fmt.Fprintln(w, "  keyaudit snapshot import --in <file.tar> --into <location>")
}

func (a *app) snapshotFlags(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	loc := fs.String("snapshot", "", "Snapshot directory or grpc://host:port")
	manifest := fs.String("manifest", "", "Snapshot manifest CID")
	return fs, loc, manifest
}

func (a *app) requireSnapshot(loc, manifest string) (cid.Cid, bool) {
	if loc == "" {
		fmt.Fprintln(a.errOut, "missing --snapshot")
		return cid.Undef, false
	}
	if manifest == "" {
		fmt.Fprintln(a.errOut, "missing --manifest")
		return cid.Undef, false
	}
	id, err := cidutil.Parse(manifest)
	if err != nil {
		fmt.Fprintf(a.errOut, "invalid --manifest: %v\n", err)
		return cid.Undef, false
	}
	return id, true
}

func (a *app) cmdSnapshotShow(args []string) int {
	fs, loc, manifest := a.snapshotFlags("snapshot show")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := a.requireSnapshot(*loc, *manifest)
	if !ok {
		return 2
	}
	cas, closeFn, err := openStore(*loc, a.cfg.Timeout)
	if err != nil {
		fmt.Fprintf(a.errOut, "open snapshot: %v\n", err)
		return 1
	}
	defer closeFn()

	m, _, err := snapshot.Load(cas, id)
	if err != nil {
		fmt.Fprintf(a.errOut, "load snapshot: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		fmt.Fprintf(a.errOut, "write manifest: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) cmdSnapshotExport(args []string) int {
	fs, loc, manifest := a.snapshotFlags("snapshot export")
	outPath := fs.String("out", "", "Archive file to write")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := a.requireSnapshot(*loc, *manifest)
	if !ok {
		return 2
	}
	if *outPath == "" {
		fmt.Fprintln(a.errOut, "missing --out")
		return 2
	}
	cas, closeFn, err := openStore(*loc, a.cfg.Timeout)
	if err != nil {
		fmt.Fprintf(a.errOut, "open snapshot: %v\n", err)
		return 1
	}
	defer closeFn()

	blocks, err := snapshot.Blocks(cas, id)
	if err != nil {
		fmt.Fprintf(a.errOut, "load snapshot: %v\n", err)
		return 1
	}
	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(a.errOut, "create archive: %v\n", err)
		return 1
	}
	if err := archive.Export(f, cas, blocks, map[string]cid.Cid{manifestRoot: id}); err != nil {
		_ = f.Close()
		fmt.Fprintf(a.errOut, "export: %v\n", err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(a.errOut, "write archive: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "Exported %d blocks to %s\n", len(blocks), *outPath)
	return 0
}

func (a *app) cmdSnapshotImport(args []string) int {
	fs := flag.NewFlagSet("snapshot import", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	inPath := fs.String("in", "", "Archive file to read")
	into := fs.String("into", "", "Snapshot directory or grpc://host:port to import into")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inPath == "" {
		fmt.Fprintln(a.errOut, "missing --in")
		return 2
	}
	if *into == "" {
		fmt.Fprintln(a.errOut, "missing --into")
		return 2
	}
	cas, closeFn, err := openStore(*into, a.cfg.Timeout)
	if err != nil {
		fmt.Fprintf(a.errOut, "open snapshot: %v\n", err)
		return 1
	}
	defer closeFn()

	f, err := os.Open(*inPath)
	if err != nil {
		fmt.Fprintf(a.errOut, "open archive: %v\n", err)
		return 1
	}
	defer f.Close()

	idx, err := archive.Import(f, cas)
	if err != nil {
		fmt.Fprintf(a.errOut, "import: %v\n", err)
		return 1
	}
	root, ok := idx.Root(manifestRoot)
	if !ok {
		fmt.Fprintln(a.errOut, "import: archive names no manifest")
		return 1
	}
	fmt.Fprintln(a.out, root)
	return 0
}
