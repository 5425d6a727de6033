package keys

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyStore_InitLoadDerive(t *testing.T) {
	ks, err := CreateKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("CreateKeyStore: %v", err)
	}

	addr, path, err := ks.InitializeWallet("alice", secretOf(3), false)
	if err != nil {
		t.Fatalf("InitializeWallet: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 wallet file, got %o", info.Mode().Perm())
	}

	if _, _, err := ks.InitializeWallet("alice", secretOf(4), false); err == nil {
		t.Fatalf("expected refusal to overwrite without force")
	}

	w, err := ks.LoadWallet("alice", "")
	if err != nil {
		t.Fatalf("LoadWallet: %v", err)
	}
	if w.Address() != addr {
		t.Fatalf("loaded address mismatch")
	}

	roleAddr, _, err := ks.DeriveWallet("alice", "second-device", false)
	if err != nil {
		t.Fatalf("DeriveWallet: %v", err)
	}
	if roleAddr == addr {
		t.Fatalf("derived wallet must differ from root")
	}
	again, err := DeriveRoleSecret(secretOf(3), "second-device")
	if err != nil {
		t.Fatalf("DeriveRoleSecret: %v", err)
	}
	pk, err := PrivateKeyFromBytes(again)
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes: %v", err)
	}
	if pk.Address() != roleAddr {
		t.Fatalf("expected deterministic derivation")
	}

	entries, err := ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "alice" || len(entries[0].Roles) != 1 || entries[0].Roles[0] != "second-device" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestKeyStore_RejectsBadNames(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	if _, _, err := ks.InitializeWallet("../evil", secretOf(1), false); err == nil {
		t.Fatalf("expected invalid name error")
	}
	if _, err := ks.LoadWallet("missing", ""); err == nil {
		t.Fatalf("expected missing wallet error")
	}
	if _, err := os.Stat(filepath.Join(ks.Directory, "..", "evil")); err == nil {
		t.Fatalf("path traversal created a directory")
	}
}

func TestParseSecretHex(t *testing.T) {
	if _, err := ParseSecretHex("0x" + "01"); err == nil {
		t.Fatalf("expected short secret error")
	}
	s, err := ParseSecretHex("0x0000000000000000000000000000000000000000000000000000000000000001\n")
	if err != nil {
		t.Fatalf("ParseSecretHex: %v", err)
	}
	if len(s) != SecretLength || s[31] != 1 {
		t.Fatalf("unexpected secret: %x", s)
	}
}
