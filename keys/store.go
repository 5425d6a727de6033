package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore is a simple local-first wallet store.
//
// EXPERIMENTAL: this filesystem-backed storage surface is not part of the
// stable audit API and may change in MINOR releases.
//
// Layout:
//
//	<dir>/<name>/wallet.key          root wallet secret (hex, 0600)
//	<dir>/<name>/roles/<role>.key    derived wallet secrets
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name    string
	Address Address
	Roles   []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".xdao", "keyaudit", "wallets"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) walletPath(name string) string {
	return filepath.Join(ks.Directory, name, "wallet.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkIdentifier(what, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, what)
	}
	return nil
}

func CheckKeyName(name string) error { return checkIdentifier("name", name) }

func CheckRole(role string) error { return checkIdentifier("role", role) }

// ParseSecretHex parses a 32-byte secret, with or without a 0x prefix.
func ParseSecretHex(secretHex string) ([]byte, error) {
	secretHex = strings.TrimSpace(secretHex)
	secretHex = strings.TrimPrefix(secretHex, "0x")
	data, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SecretLength {
		return nil, fmt.Errorf("expected secret length of %d bytes, got %d", SecretLength, len(data))
	}
	return data, nil
}

// DeriveRoleSecret deterministically derives a role wallet secret from a root secret.
func DeriveRoleSecret(root []byte, role string) ([]byte, error) {
	if len(root) != SecretLength {
		return nil, fmt.Errorf("root secret must be %d bytes", SecretLength)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	h := sha256.New()
	_, _ = h.Write(root)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("xdao-keyaudit-wallet-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	return h.Sum(nil), nil
}

func saveSecret(path string, secret []byte, overwrite bool) error {
	if _, err := PrivateKeyFromBytes(secret); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(secret) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func loadSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSecretHex(string(data))
}

// InitializeWallet stores secret under name and returns the wallet address.
func (ks *KeyStore) InitializeWallet(name string, secret []byte, overwrite bool) (Address, string, error) {
	if err := CheckKeyName(name); err != nil {
		return Address{}, "", err
	}
	path := ks.walletPath(name)
	if err := saveSecret(path, secret, overwrite); err != nil {
		return Address{}, "", err
	}
	pk, err := PrivateKeyFromBytes(secret)
	if err != nil {
		return Address{}, "", err
	}
	return pk.Address(), path, nil
}

// DeriveWallet stores a role wallet derived from name's root wallet.
func (ks *KeyStore) DeriveWallet(name, role string, overwrite bool) (Address, string, error) {
	if err := CheckKeyName(name); err != nil {
		return Address{}, "", err
	}
	root, err := loadSecret(ks.walletPath(name))
	if err != nil {
		return Address{}, "", err
	}
	secret, err := DeriveRoleSecret(root, role)
	if err != nil {
		return Address{}, "", err
	}
	path := ks.rolePath(name, role)
	if err := saveSecret(path, secret, overwrite); err != nil {
		return Address{}, "", err
	}
	pk, err := PrivateKeyFromBytes(secret)
	if err != nil {
		return Address{}, "", err
	}
	return pk.Address(), path, nil
}

// LoadWallet loads name's root wallet, or the role wallet when role is set.
func (ks *KeyStore) LoadWallet(name, role string) (*PrivateKey, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	path := ks.walletPath(name)
	if role != "" {
		if err := CheckRole(role); err != nil {
			return nil, err
		}
		path = ks.rolePath(name, role)
	}
	secret, err := loadSecret(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no wallet named %q", name)
		}
		return nil, err
	}
	return PrivateKeyFromBytes(secret)
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		pk, err := ks.LoadWallet(name, "")
		if err != nil {
			continue
		}
		var roles []string
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, name, "roles"))
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if roleEntry.IsDir() {
					continue
				}
				if strings.HasSuffix(roleEntry.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(roleEntry.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Name: name, Address: pk.Address(), Roles: roles})
	}
	return result, nil
}
