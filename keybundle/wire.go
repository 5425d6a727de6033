package keybundle

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the published protobuf schema.
const (
	fieldContactV1 protowire.Number = 1
	fieldContactV2 protowire.Number = 2

	fieldKeyBundle protowire.Number = 1

	fieldIdentityKey protowire.Number = 1
	fieldPreKey      protowire.Number = 2

	fieldPublicKeyTimestamp protowire.Number = 1
	fieldPublicKeySignature protowire.Number = 2
	fieldSecp256k1          protowire.Number = 3
	fieldSecp256k1Bytes     protowire.Number = 1

	fieldUnsignedCreatedNs protowire.Number = 1

	fieldSignedKeyBytes  protowire.Number = 1
	fieldSignedSignature protowire.Number = 2

	fieldSigECDSACompact       protowire.Number = 1
	fieldSigWalletECDSACompact protowire.Number = 2
	fieldCompactBytes          protowire.Number = 1
	fieldCompactRecovery       protowire.Number = 2
)

type wireField struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// walkFields calls fn for every field in b. Unknown fields are passed through;
// fn decides whether to use or ignore them.
func walkFields(b []byte, fn func(f wireField) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wrapError(KindWire, "KB-WIRE-001", "malformed tag", protowire.ParseError(n))
		}
		b = b[n:]
		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return wrapError(KindWire, "KB-WIRE-001", fmt.Sprintf("malformed field %d", num), protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func expect(f wireField, typ protowire.Type) error {
	if f.typ != typ {
		return newError(KindWire, "KB-WIRE-002", fmt.Sprintf("field %d has wire type %d, want %d", f.num, f.typ, typ))
	}
	return nil
}

// DecodeContactBundle decodes a published contact bundle.
//
// The versioned ContactBundle envelope is tried first. Payloads that do not
// decode as one, or that carry neither version, are decoded as a bare legacy
// PublicKeyBundle and reported as V1.
func DecodeContactBundle(b []byte) (KeyBundle, error) {
	if bundle, err := decodeVersioned(b); err == nil && bundle != nil {
		return bundle, nil
	}
	legacy, err := decodePublicKeyBundle(b)
	if err != nil {
		return nil, wrapError(KindWire, "KB-WIRE-003", "invalid contact bundle", err)
	}
	if legacy.IdentityKey == nil && legacy.PreKey == nil {
		return nil, newError(KindWire, "KB-WIRE-004", "invalid contact bundle: no key bundle present")
	}
	return legacy, nil
}

func decodeVersioned(b []byte) (KeyBundle, error) {
	var out KeyBundle
	err := walkFields(b, func(f wireField) error {
		switch f.num {
		case fieldContactV1:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			inner, err := innerKeyBundle(f.bytes)
			if err != nil {
				return err
			}
			if inner == nil {
				return nil
			}
			v1, err := decodePublicKeyBundle(inner)
			if err != nil {
				return err
			}
			out = v1
		case fieldContactV2:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			inner, err := innerKeyBundle(f.bytes)
			if err != nil {
				return err
			}
			if inner == nil {
				return nil
			}
			v2, err := decodeSignedPublicKeyBundle(inner)
			if err != nil {
				return err
			}
			out = v2
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// innerKeyBundle extracts key_bundle from ContactBundleV1/V2.
func innerKeyBundle(b []byte) ([]byte, error) {
	var inner []byte
	err := walkFields(b, func(f wireField) error {
		if f.num != fieldKeyBundle {
			return nil
		}
		if err := expect(f, protowire.BytesType); err != nil {
			return err
		}
		inner = f.bytes
		return nil
	})
	return inner, err
}

func decodePublicKeyBundle(b []byte) (*BundleV1, error) {
	out := &BundleV1{}
	err := walkFields(b, func(f wireField) error {
		switch f.num {
		case fieldIdentityKey, fieldPreKey:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			k, err := decodePublicKey(f.bytes)
			if err != nil {
				return err
			}
			if f.num == fieldIdentityKey {
				out.IdentityKey = k
			} else {
				out.PreKey = k
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodePublicKey(b []byte) (*PublicKey, error) {
	out := &PublicKey{}
	err := walkFields(b, func(f wireField) error {
		switch f.num {
		case fieldPublicKeyTimestamp:
			if err := expect(f, protowire.VarintType); err != nil {
				return err
			}
			out.Timestamp = f.varint
		case fieldPublicKeySignature:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			sig, err := decodeSignature(f.bytes)
			if err != nil {
				return err
			}
			out.Signature = sig
		case fieldSecp256k1:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			key, err := decodeSecp256k1(f.bytes)
			if err != nil {
				return err
			}
			out.Key = key
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeSignedPublicKeyBundle(b []byte) (*BundleV2, error) {
	out := &BundleV2{}
	err := walkFields(b, func(f wireField) error {
		switch f.num {
		case fieldIdentityKey, fieldPreKey:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			k, err := decodeSignedPublicKey(f.bytes)
			if err != nil {
				return err
			}
			if f.num == fieldIdentityKey {
				out.IdentityKey = k
			} else {
				out.PreKey = k
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeSignedPublicKey(b []byte) (*SignedPublicKey, error) {
	out := &SignedPublicKey{}
	err := walkFields(b, func(f wireField) error {
		switch f.num {
		case fieldSignedKeyBytes:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			out.KeyBytes = append([]byte{}, f.bytes...)
		case fieldSignedSignature:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			sig, err := decodeSignature(f.bytes)
			if err != nil {
				return err
			}
			out.Signature = sig
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeUnsignedPublicKey(b []byte) (*UnsignedPublicKey, error) {
	out := &UnsignedPublicKey{}
	err := walkFields(b, func(f wireField) error {
		switch f.num {
		case fieldUnsignedCreatedNs:
			if err := expect(f, protowire.VarintType); err != nil {
				return err
			}
			out.CreatedNs = f.varint
		case fieldSecp256k1:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			key, err := decodeSecp256k1(f.bytes)
			if err != nil {
				return err
			}
			out.Key = key
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(KindWire, "KB-WIRE-011", "invalid unsigned public key", err)
	}
	return out, nil
}

// decodeSecp256k1 returns a non-nil slice (possibly empty) when the key union is present.
func decodeSecp256k1(b []byte) ([]byte, error) {
	key := []byte{}
	err := walkFields(b, func(f wireField) error {
		if f.num != fieldSecp256k1Bytes {
			return nil
		}
		if err := expect(f, protowire.BytesType); err != nil {
			return err
		}
		key = append([]byte{}, f.bytes...)
		return nil
	})
	return key, err
}

func decodeSignature(b []byte) (*Signature, error) {
	out := &Signature{}
	err := walkFields(b, func(f wireField) error {
		var kind SignatureKind
		switch f.num {
		case fieldSigECDSACompact:
			kind = ECDSACompact
		case fieldSigWalletECDSACompact:
			kind = WalletECDSACompact
		default:
			return nil
		}
		if err := expect(f, protowire.BytesType); err != nil {
			return err
		}
		// Last member of a oneof wins, as in the reference decoders.
		out.Kind = kind
		out.Bytes = []byte{}
		out.Recovery = 0
		return walkFields(f.bytes, func(c wireField) error {
			switch c.num {
			case fieldCompactBytes:
				if err := expect(c, protowire.BytesType); err != nil {
					return err
				}
				out.Bytes = append([]byte{}, c.bytes...)
			case fieldCompactRecovery:
				if err := expect(c, protowire.VarintType); err != nil {
					return err
				}
				out.Recovery = uint32(c.varint)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
