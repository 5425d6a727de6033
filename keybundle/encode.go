package keybundle

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// EncodeContactBundle serializes b inside the versioned ContactBundle envelope.
func EncodeContactBundle(b KeyBundle) ([]byte, error) {
	switch v := b.(type) {
	case *BundleV1:
		if v == nil {
			break
		}
		inner := protowire.AppendTag(nil, fieldKeyBundle, protowire.BytesType)
		inner = protowire.AppendBytes(inner, EncodePublicKeyBundle(v))
		out := protowire.AppendTag(nil, fieldContactV1, protowire.BytesType)
		return protowire.AppendBytes(out, inner), nil
	case *BundleV2:
		if v == nil {
			break
		}
		inner := protowire.AppendTag(nil, fieldKeyBundle, protowire.BytesType)
		inner = protowire.AppendBytes(inner, encodeSignedPublicKeyBundle(v))
		out := protowire.AppendTag(nil, fieldContactV2, protowire.BytesType)
		return protowire.AppendBytes(out, inner), nil
	}
	return nil, newError(KindEncode, "KB-ENC-001", "unsupported or nil key bundle")
}

// EncodePublicKeyBundle serializes a V1 bundle without the versioned envelope
// (the legacy published form).
func EncodePublicKeyBundle(b *BundleV1) []byte {
	var out []byte
	if b.IdentityKey != nil {
		out = appendMessage(out, fieldIdentityKey, encodePublicKey(b.IdentityKey, true))
	}
	if b.PreKey != nil {
		out = appendMessage(out, fieldPreKey, encodePublicKey(b.PreKey, true))
	}
	return out
}

// SigningBytes is the canonical encoding a V1 key is signed over: the key
// without its signature.
func (k *PublicKey) SigningBytes() []byte {
	if k == nil {
		return nil
	}
	return encodePublicKey(k, false)
}

// EncodeUnsignedPublicKey serializes u into the form carried by SignedPublicKey.KeyBytes.
func EncodeUnsignedPublicKey(u *UnsignedPublicKey) []byte {
	var out []byte
	if u.CreatedNs != 0 {
		out = protowire.AppendTag(out, fieldUnsignedCreatedNs, protowire.VarintType)
		out = protowire.AppendVarint(out, u.CreatedNs)
	}
	if u.Key != nil {
		out = appendMessage(out, fieldSecp256k1, encodeSecp256k1(u.Key))
	}
	return out
}

func encodePublicKey(k *PublicKey, withSignature bool) []byte {
	var out []byte
	if k.Timestamp != 0 {
		out = protowire.AppendTag(out, fieldPublicKeyTimestamp, protowire.VarintType)
		out = protowire.AppendVarint(out, k.Timestamp)
	}
	if withSignature && k.Signature != nil {
		out = appendMessage(out, fieldPublicKeySignature, encodeSignature(k.Signature))
	}
	if k.Key != nil {
		out = appendMessage(out, fieldSecp256k1, encodeSecp256k1(k.Key))
	}
	return out
}

func encodeSignedPublicKeyBundle(b *BundleV2) []byte {
	var out []byte
	if b.IdentityKey != nil {
		out = appendMessage(out, fieldIdentityKey, encodeSignedPublicKey(b.IdentityKey))
	}
	if b.PreKey != nil {
		out = appendMessage(out, fieldPreKey, encodeSignedPublicKey(b.PreKey))
	}
	return out
}

func encodeSignedPublicKey(k *SignedPublicKey) []byte {
	var out []byte
	if len(k.KeyBytes) > 0 {
		out = protowire.AppendTag(out, fieldSignedKeyBytes, protowire.BytesType)
		out = protowire.AppendBytes(out, k.KeyBytes)
	}
	if k.Signature != nil {
		out = appendMessage(out, fieldSignedSignature, encodeSignature(k.Signature))
	}
	return out
}

func encodeSecp256k1(key []byte) []byte {
	if len(key) == 0 {
		return nil
	}
	out := protowire.AppendTag(nil, fieldSecp256k1Bytes, protowire.BytesType)
	return protowire.AppendBytes(out, key)
}

func encodeSignature(s *Signature) []byte {
	var num protowire.Number
	switch s.Kind {
	case ECDSACompact:
		num = fieldSigECDSACompact
	case WalletECDSACompact:
		num = fieldSigWalletECDSACompact
	default:
		return nil
	}
	var compact []byte
	if len(s.Bytes) > 0 {
		compact = protowire.AppendTag(compact, fieldCompactBytes, protowire.BytesType)
		compact = protowire.AppendBytes(compact, s.Bytes)
	}
	if s.Recovery != 0 {
		compact = protowire.AppendTag(compact, fieldCompactRecovery, protowire.VarintType)
		compact = protowire.AppendVarint(compact, uint64(s.Recovery))
	}
	return appendMessage(nil, num, compact)
}

// appendMessage always writes the field, even when msg is empty, so that
// set-but-empty sub-messages survive a round trip.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
