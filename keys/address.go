package keys

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of a wallet address.
const AddressLength = 20

// Address is a 20-byte wallet address.
type Address [AddressLength]byte

// ParseAddress parses a 0x-prefixed, 40 hex character address.
//
// All-lowercase and all-uppercase inputs are accepted as-is. Mixed-case input
// must carry a valid EIP-55 checksum.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return a, fmt.Errorf("invalid address %q: missing 0x prefix", s)
	}
	body := s[2:]
	if len(body) != 2*AddressLength {
		return a, fmt.Errorf("invalid address %q: expected %d hex characters, got %d", s, 2*AddressLength, len(body))
	}
	b, err := hex.DecodeString(body)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)

	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if a.Hex() != "0x"+body {
			return Address{}, fmt.Errorf("invalid address %q: bad EIP-55 checksum", s)
		}
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromPublicKey derives the wallet address of a 65-byte uncompressed key.
func AddressFromPublicKey(uncompressed []byte) (Address, error) {
	var a Address
	if len(uncompressed) != UncompressedKeyLength || uncompressed[0] != 0x04 {
		return a, fmt.Errorf("expected %d byte uncompressed public key", UncompressedKeyLength)
	}
	sum := Keccak256(uncompressed[1:])
	copy(a[:], sum[12:])
	return a, nil
}

// Hex returns the EIP-55 checksummed form.
func (a Address) Hex() string {
	lower := hex.EncodeToString(a[:])
	sum := Keccak256([]byte(lower))

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return "0x" + string(out)
}

func (a Address) String() string { return a.Hex() }

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool { return a == Address{} }

// Truncate shortens the checksummed address to 0xABCD…WXYZ.
func (a Address) Truncate() string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}
