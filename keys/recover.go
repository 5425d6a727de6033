package keys

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// compactMagicOffset is added to the recovery id in the 65-byte compact form
// understood by ecdsa.RecoverCompact (uncompressed keys, no +4).
const compactMagicOffset = 27

var ErrUnrecoverable = errors.New("keys: signature does not recover to a public key")

// RecoverWalletAddress recovers the wallet address that personal-signed message.
func RecoverWalletAddress(message, sig []byte, recovery uint32) (Address, error) {
	digest := PersonalMessageHash(message)
	pub, err := recoverUncompressed(digest[:], sig, recovery)
	if err != nil {
		return Address{}, err
	}
	return AddressFromPublicKey(pub)
}

// RecoverDigestSigner recovers the 65-byte uncompressed key that signed digest.
// No prefixing or rehashing is applied to digest.
func RecoverDigestSigner(digest, sig []byte, recovery uint32) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("keys: digest must be 32 bytes, got %d", len(digest))
	}
	return recoverUncompressed(digest, sig, recovery)
}

func recoverUncompressed(digest, sig []byte, recovery uint32) ([]byte, error) {
	if len(sig) != CompactSignatureLength {
		return nil, fmt.Errorf("keys: compact signature must be %d bytes, got %d", CompactSignatureLength, len(sig))
	}
	// Some wallets report v as 27/28.
	if recovery >= compactMagicOffset {
		recovery -= compactMagicOffset
	}
	if recovery > 3 {
		return nil, fmt.Errorf("keys: invalid recovery id %d", recovery)
	}

	compact := make([]byte, 0, 1+CompactSignatureLength)
	compact = append(compact, byte(compactMagicOffset+recovery))
	compact = append(compact, sig...)

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecoverable, err)
	}
	return pub.SerializeUncompressed(), nil
}
