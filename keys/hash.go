package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/sha3"
)

const (
	// UncompressedKeyLength is 0x04 followed by two 32-byte coordinates.
	UncompressedKeyLength = 65
	// CompactSignatureLength is R || S with the recovery id carried separately.
	CompactSignatureLength = 64
)

const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// Keccak256 is the legacy (pre-FIPS) Keccak used by wallets.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		_, _ = h.Write(b)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// PersonalMessageHash is the wallet personal_sign digest of message.
func PersonalMessageHash(message []byte) [32]byte {
	prefix := personalMessagePrefix + strconv.Itoa(len(message))
	return Keccak256([]byte(prefix), message)
}

// IdentitySignatureText is the text a wallet signs to attest an identity key.
// signingBytes is the canonical encoding of the unsigned identity key.
func IdentitySignatureText(signingBytes []byte) []byte {
	return []byte("XMTP : Create Identity\n" + hex.EncodeToString(signingBytes) + "\n\nFor more info: https://xmtp.org/signatures/")
}

// KeySigningDigest is the digest an identity key signs to attest a prekey.
func KeySigningDigest(signingBytes []byte) [32]byte {
	return sha256.Sum256(signingBytes)
}
