package keys

import (
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SecretLength is the byte length of a secp256k1 private scalar.
const SecretLength = 32

// PrivateKey is a secp256k1 signing key (wallet, identity or prekey).
type PrivateKey struct {
	k *secp256k1.PrivateKey
}

// PrivateKeyFromBytes interprets secret as a big-endian scalar.
func PrivateKeyFromBytes(secret []byte) (*PrivateKey, error) {
	if len(secret) != SecretLength {
		return nil, fmt.Errorf("expected secret length of %d bytes, got %d", SecretLength, len(secret))
	}
	k := secp256k1.PrivKeyFromBytes(secret)
	if k.Key.IsZero() {
		return nil, fmt.Errorf("secret reduces to zero")
	}
	return &PrivateKey{k: k}, nil
}

// GeneratePrivateKey reads a secret from rand. A nil rand uses crypto/rand.
func GeneratePrivateKey(rand io.Reader) (*PrivateKey, error) {
	if rand == nil {
		k, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		return &PrivateKey{k: k}, nil
	}
	secret := make([]byte, SecretLength)
	if _, err := io.ReadFull(rand, secret); err != nil {
		return nil, err
	}
	return PrivateKeyFromBytes(secret)
}

// Bytes returns the 32-byte secret.
func (p *PrivateKey) Bytes() []byte { return p.k.Serialize() }

// PublicKey returns the 65-byte uncompressed public key.
func (p *PrivateKey) PublicKey() []byte { return p.k.PubKey().SerializeUncompressed() }

// Address returns the wallet address controlled by p.
func (p *PrivateKey) Address() Address {
	a, _ := AddressFromPublicKey(p.PublicKey())
	return a
}

// SignPersonalMessage produces a wallet-style compact signature over message.
func (p *PrivateKey) SignPersonalMessage(message []byte) (sig []byte, recovery uint32) {
	digest := PersonalMessageHash(message)
	return p.signCompact(digest[:])
}

// SignDigest produces a compact signature over a 32-byte digest as-is.
func (p *PrivateKey) SignDigest(digest []byte) (sig []byte, recovery uint32, err error) {
	if len(digest) != 32 {
		return nil, 0, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, recovery = p.signCompact(digest)
	return sig, recovery, nil
}

func (p *PrivateKey) signCompact(digest []byte) ([]byte, uint32) {
	compact := ecdsa.SignCompact(p.k, digest, false)
	return compact[1:], uint32(compact[0] - compactMagicOffset)
}
