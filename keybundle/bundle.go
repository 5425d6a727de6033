// Package keybundle models the contact key bundles published to the network
// and converts them to and from their protobuf wire form.
//
// A KeyBundle is a closed sum type: *BundleV1 and *BundleV2 are its only
// variants. Bundles are never validated here; malformed material is carried
// as-is so the verify package can report it.
package keybundle

import (
	"bytes"
	"encoding/hex"
	"time"
)

type Version int

const (
	V1 Version = iota + 1
	V2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

// SignatureKind names which member of the signature union is set.
type SignatureKind int

const (
	// SignatureUnset is a signature message whose union carries nothing.
	SignatureUnset SignatureKind = iota
	// ECDSACompact is the identity-style compact signature.
	ECDSACompact
	// WalletECDSACompact is the wallet-style compact signature.
	WalletECDSACompact
)

func (k SignatureKind) String() string {
	switch k {
	case ECDSACompact:
		return "ecdsaCompact"
	case WalletECDSACompact:
		return "walletEcdsaCompact"
	default:
		return "unset"
	}
}

// Signature is a 64-byte compact signature with its recovery id carried alongside.
type Signature struct {
	Kind     SignatureKind
	Bytes    []byte
	Recovery uint32
}

// PublicKey is a V1 key slot. Key is nil when the key union is absent.
type PublicKey struct {
	Timestamp uint64
	Signature *Signature
	Key       []byte
}

// UnsignedPublicKey is the payload serialized inside a V2 SignedPublicKey.
type UnsignedPublicKey struct {
	CreatedNs uint64
	Key       []byte
}

// SignedPublicKey is a V2 key slot wrapping a serialized UnsignedPublicKey.
type SignedPublicKey struct {
	KeyBytes  []byte
	Signature *Signature
}

// Unsigned decodes the embedded key.
func (k *SignedPublicKey) Unsigned() (*UnsignedPublicKey, error) {
	if k == nil {
		return nil, newError(KindWire, "KB-WIRE-010", "nil signed public key")
	}
	return decodeUnsignedPublicKey(k.KeyBytes)
}

// KeyBundle is either *BundleV1 or *BundleV2.
type KeyBundle interface {
	Version() Version
	sealed()
}

type BundleV1 struct {
	IdentityKey *PublicKey
	PreKey      *PublicKey
}

func (*BundleV1) Version() Version { return V1 }
func (*BundleV1) sealed()          {}

type BundleV2 struct {
	IdentityKey *SignedPublicKey
	PreKey      *SignedPublicKey
}

func (*BundleV2) Version() Version { return V2 }
func (*BundleV2) sealed()          {}

// TimestampedBundle pairs a bundle with the time the network stored it.
type TimestampedBundle struct {
	Timestamp time.Time
	Bundle    KeyBundle
}

// NewTimestampedBundle decodes a published envelope payload.
//
// An empty payload is a hard failure (ErrNoPayload): there is nothing to audit.
func NewTimestampedBundle(timestampNs int64, payload []byte) (TimestampedBundle, error) {
	if len(payload) == 0 {
		return TimestampedBundle{}, ErrNoPayload
	}
	b, err := DecodeContactBundle(payload)
	if err != nil {
		return TimestampedBundle{}, err
	}
	return TimestampedBundle{Timestamp: time.Unix(0, timestampNs).UTC(), Bundle: b}, nil
}

// RawIdentityKey returns the raw identity key bytes, or nil when absent.
func RawIdentityKey(b KeyBundle) []byte {
	switch v := b.(type) {
	case *BundleV1:
		if v == nil || v.IdentityKey == nil {
			return nil
		}
		return v.IdentityKey.Key
	case *BundleV2:
		if v == nil {
			return nil
		}
		return unwrappedKey(v.IdentityKey)
	default:
		return nil
	}
}

// RawPreKey returns the raw prekey bytes, or nil when absent.
func RawPreKey(b KeyBundle) []byte {
	switch v := b.(type) {
	case *BundleV1:
		if v == nil || v.PreKey == nil {
			return nil
		}
		return v.PreKey.Key
	case *BundleV2:
		if v == nil {
			return nil
		}
		return unwrappedKey(v.PreKey)
	default:
		return nil
	}
}

func unwrappedKey(k *SignedPublicKey) []byte {
	if k == nil {
		return nil
	}
	u, err := k.Unsigned()
	if err != nil {
		return nil
	}
	return u.Key
}

// Fingerprint is the canonical lowercase hex encoding of a raw key.
func Fingerprint(raw []byte) string {
	return hex.EncodeToString(raw)
}

// Equal reports whether a and b are the same variant carrying identical raw
// keys and identical signatures in both slots.
func Equal(a, b KeyBundle) bool {
	switch av := a.(type) {
	case *BundleV1:
		bv, ok := b.(*BundleV1)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return av == bv
		}
		return publicKeyEqual(av.IdentityKey, bv.IdentityKey) && publicKeyEqual(av.PreKey, bv.PreKey)
	case *BundleV2:
		bv, ok := b.(*BundleV2)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return av == bv
		}
		return signedKeyEqual(av.IdentityKey, bv.IdentityKey) && signedKeyEqual(av.PreKey, bv.PreKey)
	default:
		return false
	}
}

func publicKeyEqual(a, b *PublicKey) bool {
	if a == nil || b == nil {
		return a == b
	}
	return optionalBytesEqual(a.Key, b.Key) && signatureEqual(a.Signature, b.Signature)
}

func signedKeyEqual(a, b *SignedPublicKey) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !signatureEqual(a.Signature, b.Signature) {
		return false
	}
	au, aerr := a.Unsigned()
	bu, berr := b.Unsigned()
	if aerr != nil || berr != nil {
		// Undecodable keys compare by their serialized form.
		return bytes.Equal(a.KeyBytes, b.KeyBytes)
	}
	return optionalBytesEqual(au.Key, bu.Key)
}

func signatureEqual(a, b *Signature) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind && a.Recovery == b.Recovery && bytes.Equal(a.Bytes, b.Bytes)
}

// optionalBytesEqual distinguishes an absent key (nil) from an empty one.
func optionalBytesEqual(a, b []byte) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return bytes.Equal(a, b)
}
