package keybundle_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/keyaudit/bundlegen"
	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
)

func mustWallet(t *testing.T, b byte) *keys.PrivateKey {
	t.Helper()
	secret := make([]byte, keys.SecretLength)
	secret[0] = 0x10
	secret[31] = b
	w, err := keys.PrivateKeyFromBytes(secret)
	require.NoError(t, err)
	return w
}

func fixedOpts() bundlegen.Options {
	return bundlegen.Options{Rand: &bundlegen.DeterministicReader{}, Now: time.Unix(1700000000, 0)}
}

func TestDecodeContactBundle_V1RoundTrip(t *testing.T) {
	g, err := bundlegen.NewV1(mustWallet(t, 1), fixedOpts())
	require.NoError(t, err)

	wire, err := keybundle.EncodeContactBundle(g.Bundle)
	require.NoError(t, err)

	got, err := keybundle.DecodeContactBundle(wire)
	require.NoError(t, err)
	assert.Equal(t, keybundle.V1, got.Version())
	assert.True(t, keybundle.Equal(g.Bundle, got))

	v1 := got.(*keybundle.BundleV1)
	assert.Equal(t, uint64(1700000000000), v1.IdentityKey.Timestamp)
	assert.Len(t, v1.IdentityKey.Key, keys.UncompressedKeyLength)
	assert.Equal(t, keybundle.ECDSACompact, v1.IdentityKey.Signature.Kind)
}

func TestDecodeContactBundle_V2RoundTrip(t *testing.T) {
	g, err := bundlegen.NewV2(mustWallet(t, 2), fixedOpts())
	require.NoError(t, err)

	wire, err := keybundle.EncodeContactBundle(g.Bundle)
	require.NoError(t, err)

	got, err := keybundle.DecodeContactBundle(wire)
	require.NoError(t, err)
	assert.Equal(t, keybundle.V2, got.Version())
	assert.True(t, keybundle.Equal(g.Bundle, got))

	v2 := got.(*keybundle.BundleV2)
	u, err := v2.IdentityKey.Unsigned()
	require.NoError(t, err)
	assert.Equal(t, g.Identity.PublicKey(), u.Key)
	assert.Equal(t, uint64(time.Unix(1700000000, 0).UnixNano()), u.CreatedNs)
	assert.Equal(t, keybundle.WalletECDSACompact, v2.IdentityKey.Signature.Kind)
}

func TestDecodeContactBundle_LegacyBareBundle(t *testing.T) {
	g, err := bundlegen.NewV1(mustWallet(t, 3), fixedOpts())
	require.NoError(t, err)

	legacy := keybundle.EncodePublicKeyBundle(g.Bundle.(*keybundle.BundleV1))
	got, err := keybundle.DecodeContactBundle(legacy)
	require.NoError(t, err)
	assert.Equal(t, keybundle.V1, got.Version())
	assert.True(t, keybundle.Equal(g.Bundle, got))
}

func TestDecodeContactBundle_LegacyWithoutTimestamps(t *testing.T) {
	b := &keybundle.BundleV1{
		IdentityKey: &keybundle.PublicKey{Key: append([]byte{0x04}, make([]byte, 64)...)},
		PreKey:      &keybundle.PublicKey{Key: append([]byte{0x04}, bytes.Repeat([]byte{1}, 64)...)},
	}
	got, err := keybundle.DecodeContactBundle(keybundle.EncodePublicKeyBundle(b))
	require.NoError(t, err)
	assert.True(t, keybundle.Equal(b, got))
}

func TestDecodeContactBundle_Garbage(t *testing.T) {
	_, err := keybundle.DecodeContactBundle([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
	assert.True(t, keybundle.IsKind(err, keybundle.KindWire))
	assert.NotEmpty(t, keybundle.RuleID(err))
}

func TestNewTimestampedBundle_NoPayloadIsFatal(t *testing.T) {
	_, err := keybundle.NewTimestampedBundle(1, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, keybundle.ErrNoPayload))
	assert.Equal(t, "KB-ENV-001", keybundle.RuleID(err))
}

func TestNewTimestampedBundle_Timestamp(t *testing.T) {
	g, err := bundlegen.NewV2(mustWallet(t, 4), fixedOpts())
	require.NoError(t, err)
	wire, err := keybundle.EncodeContactBundle(g.Bundle)
	require.NoError(t, err)

	tb, err := keybundle.NewTimestampedBundle(1_650_000_000_123_456_789, wire)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(0, 1_650_000_000_123_456_789).UTC(), tb.Timestamp)
}

func TestSignatureSetButEmptySurvivesRoundTrip(t *testing.T) {
	b := &keybundle.BundleV1{
		IdentityKey: &keybundle.PublicKey{
			Timestamp: 5,
			Key:       append([]byte{0x04}, make([]byte, 64)...),
			Signature: &keybundle.Signature{},
		},
	}
	wire, err := keybundle.EncodeContactBundle(b)
	require.NoError(t, err)
	got, err := keybundle.DecodeContactBundle(wire)
	require.NoError(t, err)
	v1 := got.(*keybundle.BundleV1)
	require.NotNil(t, v1.IdentityKey.Signature)
	assert.Equal(t, keybundle.SignatureUnset, v1.IdentityKey.Signature.Kind)
	assert.Nil(t, v1.PreKey)
}

func TestEqual(t *testing.T) {
	w := mustWallet(t, 5)
	a, err := bundlegen.NewV1(w, fixedOpts())
	require.NoError(t, err)
	b, err := bundlegen.NewV1(w, bundlegen.Options{Rand: &bundlegen.DeterministicReader{B: 100}, Now: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	c, err := bundlegen.NewV2(w, fixedOpts())
	require.NoError(t, err)

	assert.True(t, keybundle.Equal(a.Bundle, a.Bundle))
	assert.False(t, keybundle.Equal(a.Bundle, b.Bundle))
	assert.False(t, keybundle.Equal(a.Bundle, c.Bundle), "different variants are never equal")
	assert.False(t, keybundle.Equal(c.Bundle, a.Bundle))

	// Same keys, different signature bytes.
	v1 := a.Bundle.(*keybundle.BundleV1)
	mutated := &keybundle.BundleV1{
		IdentityKey: &keybundle.PublicKey{Timestamp: v1.IdentityKey.Timestamp, Key: v1.IdentityKey.Key, Signature: &keybundle.Signature{
			Kind: v1.IdentityKey.Signature.Kind, Bytes: append([]byte{}, v1.IdentityKey.Signature.Bytes...), Recovery: v1.IdentityKey.Signature.Recovery,
		}},
		PreKey: v1.PreKey,
	}
	assert.True(t, keybundle.Equal(a.Bundle, mutated))
	mutated.IdentityKey.Signature.Bytes[0] ^= 0x01
	assert.False(t, keybundle.Equal(a.Bundle, mutated))
}

func TestRawKeysAndFingerprint(t *testing.T) {
	g, err := bundlegen.NewV2(mustWallet(t, 6), fixedOpts())
	require.NoError(t, err)
	assert.Equal(t, g.Identity.PublicKey(), keybundle.RawIdentityKey(g.Bundle))
	assert.Equal(t, g.PreKey.PublicKey(), keybundle.RawPreKey(g.Bundle))

	fp := keybundle.Fingerprint([]byte{0x04, 0xAB})
	assert.Equal(t, "04ab", fp)
	assert.Nil(t, keybundle.RawIdentityKey(&keybundle.BundleV1{}))
}
