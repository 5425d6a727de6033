package keys

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secretOf(b byte) []byte {
	s := make([]byte, SecretLength)
	s[SecretLength-1] = b
	return s
}

func TestKeccak256_Empty(t *testing.T) {
	sum := Keccak256()
	if got := hex.EncodeToString(sum[:]); got != "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470" {
		t.Fatalf("unexpected keccak256(\"\"): %s", got)
	}
}

func TestAddress_FromSecretOne(t *testing.T) {
	pk, err := PrivateKeyFromBytes(secretOf(1))
	require.NoError(t, err)
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", pk.Address().Hex())
}

func TestParseAddress_EIP55(t *testing.T) {
	valid := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, s := range valid {
		a, err := ParseAddress(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, a.Hex())
	}

	lower, err := ParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, valid[0], lower.Hex())

	_, err = ParseAddress("0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Error(t, err, "bad checksum must be rejected")
	_, err = ParseAddress("5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Error(t, err, "missing prefix must be rejected")
	_, err = ParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA")
	assert.Error(t, err, "short address must be rejected")
}

func TestAddress_Truncate(t *testing.T) {
	a := MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Equal(t, "0x5aAe…eAed", a.Truncate())
}

func TestRecoverWalletAddress_RoundTrip(t *testing.T) {
	wallet, err := PrivateKeyFromBytes(secretOf(7))
	require.NoError(t, err)

	msg := IdentitySignatureText([]byte{0x08, 0x01})
	sig, rec := wallet.SignPersonalMessage(msg)
	require.Len(t, sig, CompactSignatureLength)

	got, err := RecoverWalletAddress(msg, sig, rec)
	require.NoError(t, err)
	assert.Equal(t, wallet.Address(), got)

	// 27/28 style recovery ids are normalized.
	got, err = RecoverWalletAddress(msg, sig, rec+27)
	require.NoError(t, err)
	assert.Equal(t, wallet.Address(), got)
}

func TestRecoverDigestSigner_RoundTrip(t *testing.T) {
	signer, err := PrivateKeyFromBytes(secretOf(9))
	require.NoError(t, err)

	digest := KeySigningDigest([]byte("prekey bytes"))
	sig, rec, err := signer.SignDigest(digest[:])
	require.NoError(t, err)

	pub, err := RecoverDigestSigner(digest[:], sig, rec)
	require.NoError(t, err)
	if !bytes.Equal(pub, signer.PublicKey()) {
		t.Fatalf("recovered key mismatch")
	}
}

func TestRecoveryPathsAreDistinct(t *testing.T) {
	signer, err := PrivateKeyFromBytes(secretOf(11))
	require.NoError(t, err)

	msg := []byte("attest me")
	sig, rec := signer.SignPersonalMessage(msg)

	// A wallet signature over msg must not recover to the signer under the plain digest path.
	digest := KeySigningDigest(msg)
	pub, err := RecoverDigestSigner(digest[:], sig, rec)
	if err == nil && bytes.Equal(pub, signer.PublicKey()) {
		t.Fatalf("plain digest path recovered the wallet signer")
	}
}

func TestRecover_RejectsBadInput(t *testing.T) {
	digest := KeySigningDigest([]byte("x"))
	_, err := RecoverDigestSigner(digest[:], make([]byte, 63), 0)
	assert.Error(t, err)
	_, err = RecoverDigestSigner(digest[:], make([]byte, 64), 9)
	assert.Error(t, err)
	_, err = RecoverDigestSigner(digest[:], make([]byte, 64), 0)
	assert.ErrorIs(t, err, ErrUnrecoverable)
	_, err = RecoverDigestSigner(digest[:4], make([]byte, 64), 0)
	assert.Error(t, err)
}
