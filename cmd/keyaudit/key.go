package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"xdao.co/keyaudit/bundlegen"
	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
	"xdao.co/keyaudit/verify"
)

func (a *app) keyStore() (*keys.KeyStore, error) {
	return keys.CreateKeyStore(a.cfg.KeyStore)
}

func (a *app) cmdKey(args []string) int {
	if len(args) == 0 {
		printKeyUsage(a.errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return a.cmdKeyInit(args[1:])
	case "derive":
		return a.cmdKeyDerive(args[1:])
	case "list":
		return a.cmdKeyList(args[1:])
	case "export":
		return a.cmdKeyExport(args[1:])
	case "help", "-h", "--help":
		printKeyUsage(a.out)
		return 0
	default:
		fmt.Fprintf(a.errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(a.errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "keyaudit key: local test wallets for signing fixture bundles")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  keyaudit key init --name <name> [--secret-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  keyaudit key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  keyaudit key list")
	fmt.Fprintln(w, "  keyaudit key export --name <name> [--role <role>]")
}

func (a *app) cmdKeyInit(args []string) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var name string
	var secretHex string
	var force bool

	fs.StringVar(&name, "name", "", "Wallet name (directory under the key store)")
	fs.StringVar(&secretHex, "secret-hex", "", "Optional secp256k1 secret as 64 hex chars (for reproducible fixtures)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(a.errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(a.errOut, "invalid --name: %v\n", err)
		return 2
	}

	var secret []byte
	if secretHex != "" {
		var err error
		secret, err = keys.ParseSecretHex(secretHex)
		if err != nil {
			fmt.Fprintf(a.errOut, "invalid --secret-hex: %v\n", err)
			return 2
		}
	} else {
		pk, err := keys.GeneratePrivateKey(rand.Reader)
		if err != nil {
			fmt.Fprintf(a.errOut, "rand: %v\n", err)
			return 1
		}
		secret = pk.Bytes()
	}

	ks, err := a.keyStore()
	if err != nil {
		fmt.Fprintf(a.errOut, "keys: %v\n", err)
		return 1
	}
	addr, path, err := ks.InitializeWallet(name, secret, force)
	if err != nil {
		fmt.Fprintf(a.errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "Created wallet: %s\n", addr)
	fmt.Fprintf(a.out, "Stored at: %s\n", path)
	return 0
}

func (a *app) cmdKeyDerive(args []string) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var from string
	var role string
	var force bool

	fs.StringVar(&from, "from", "", "Root wallet name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. dev, production)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(a.errOut, "missing --from")
		return 2
	}
	if role == "" {
		fmt.Fprintln(a.errOut, "missing --role")
		return 2
	}
	if err := keys.CheckKeyName(from); err != nil {
		fmt.Fprintf(a.errOut, "invalid --from: %v\n", err)
		return 2
	}
	if err := keys.CheckRole(role); err != nil {
		fmt.Fprintf(a.errOut, "invalid --role: %v\n", err)
		return 2
	}
	ks, err := a.keyStore()
	if err != nil {
		fmt.Fprintf(a.errOut, "keys: %v\n", err)
		return 1
	}
	addr, path, err := ks.DeriveWallet(from, role, force)
	if err != nil {
		fmt.Fprintf(a.errOut, "derive role wallet: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "Created role wallet: %s\n", addr)
	fmt.Fprintf(a.out, "Stored at: %s\n", path)
	return 0
}

func (a *app) cmdKeyExport(args []string) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var name string
	var role string

	fs.StringVar(&name, "name", "", "Wallet name")
	fs.StringVar(&role, "role", "", "Optional role (if set, exports the derived role wallet)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(a.errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(a.errOut, "invalid --name: %v\n", err)
		return 2
	}
	if role != "" {
		if err := keys.CheckRole(role); err != nil {
			fmt.Fprintf(a.errOut, "invalid --role: %v\n", err)
			return 2
		}
	}
	ks, err := a.keyStore()
	if err != nil {
		fmt.Fprintf(a.errOut, "keys: %v\n", err)
		return 1
	}
	w, err := ks.LoadWallet(name, role)
	if err != nil {
		fmt.Fprintf(a.errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(a.out, w.Address())
	return 0
}

func (a *app) cmdKeyList(args []string) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := a.keyStore()
	if err != nil {
		fmt.Fprintf(a.errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(a.errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%s\t%s\n", e.Name, e.Address)
		for _, r := range e.Roles {
			fmt.Fprintf(a.out, "  - %s\n", r)
		}
	}
	return 0
}

func (a *app) cmdBundle(args []string) int {
	if len(args) == 0 {
		printBundleUsage(a.errOut)
		return 2
	}
	switch args[0] {
	case "new":
		return a.cmdBundleNew(args[1:])
	case "verify":
		return a.cmdBundleVerify(args[1:])
	case "help", "-h", "--help":
		printBundleUsage(a.out)
		return 0
	default:
		fmt.Fprintf(a.errOut, "unknown bundle subcommand: %s\n\n", args[0])
		printBundleUsage(a.errOut)
		return 2
	}
}

func printBundleUsage(w io.Writer) {
	fmt.Fprintln(w, "keyaudit bundle: create and check single contact bundles offline")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  keyaudit bundle new --signer <name> [--signer-role <role>] [--version 1|2] [--out <file>]")
	fmt.Fprintln(w, "  keyaudit bundle verify --address <address> (<file> | --hex <bytes>)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Without --out, bundle new prints the ContactBundle bytes as hex.")
}

func (a *app) cmdBundleNew(args []string) int {
	fs := flag.NewFlagSet("bundle new", flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var signer, signerRole, outPath string
	var version int

	fs.StringVar(&signer, "signer", "", "Wallet name in the key store")
	fs.StringVar(&signerRole, "signer-role", "", "Optional derived role wallet")
	fs.IntVar(&version, "version", 2, "Bundle version: 1 or 2")
	fs.StringVar(&outPath, "out", "", "Write raw ContactBundle bytes to this file")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if signer == "" {
		fmt.Fprintln(a.errOut, "missing --signer")
		return 2
	}
	if version != 1 && version != 2 {
		fmt.Fprintf(a.errOut, "invalid --version %d (expected 1 or 2)\n", version)
		return 2
	}
	ks, err := a.keyStore()
	if err != nil {
		fmt.Fprintf(a.errOut, "keys: %v\n", err)
		return 1
	}
	wallet, err := ks.LoadWallet(signer, signerRole)
	if err != nil {
		fmt.Fprintf(a.errOut, "load signer: %v\n", err)
		return 1
	}

	var g *bundlegen.Generated
	if version == 1 {
		g, err = bundlegen.NewV1(wallet, bundlegen.Options{})
	} else {
		g, err = bundlegen.NewV2(wallet, bundlegen.Options{})
	}
	if err != nil {
		fmt.Fprintf(a.errOut, "generate bundle: %v\n", err)
		return 1
	}
	wire, err := keybundle.EncodeContactBundle(g.Bundle)
	if err != nil {
		fmt.Fprintf(a.errOut, "encode bundle: %v\n", err)
		return 1
	}
	a.logger.Info("bundle generated", "wallet", g.Wallet.Hex(), "version", g.Bundle.Version().String())

	if outPath == "" {
		fmt.Fprintln(a.out, hex.EncodeToString(wire))
		return 0
	}
	if err := os.WriteFile(outPath, wire, 0o644); err != nil {
		fmt.Fprintf(a.errOut, "write bundle: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "Wrote %s bundle for %s to %s\n", g.Bundle.Version(), g.Wallet, outPath)
	return 0
}

func (a *app) cmdBundleVerify(args []string) int {
	fs := flag.NewFlagSet("bundle verify", flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	var address, hexIn string

	fs.StringVar(&address, "address", "", "Claimed wallet address")
	fs.StringVar(&hexIn, "hex", "", "ContactBundle bytes as hex (instead of a file)")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if address == "" {
		fmt.Fprintln(a.errOut, "missing --address")
		return 2
	}
	claimed, err := keys.ParseAddress(address)
	if err != nil {
		fmt.Fprintf(a.errOut, "invalid --address: %v\n", err)
		return 2
	}

	var wire []byte
	switch {
	case hexIn != "" && len(pos) == 0:
		wire, err = hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexIn), "0x"))
		if err != nil {
			fmt.Fprintf(a.errOut, "invalid --hex: %v\n", err)
			return 2
		}
	case hexIn == "" && len(pos) == 1:
		wire, err = os.ReadFile(pos[0])
		if err != nil {
			fmt.Fprintf(a.errOut, "read bundle: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintln(a.errOut, "expected exactly one of <file> or --hex")
		return 2
	}

	b, err := keybundle.DecodeContactBundle(wire)
	if err != nil {
		fmt.Fprintf(a.errOut, "decode bundle: %v\n", err)
		return 1
	}
	res := verify.Verify(b, claimed)

	fmt.Fprintf(a.out, "%s %s\n", b.Version(), res.Joined())
	if !res.OK() {
		return 1
	}
	return 0
}
