// Package bundlegen produces correctly signed contact bundles.
//
// It is used for fixtures, conformance vectors and the CLI's `bundle new`
// command. Every bundle it returns passes verify.Verify for the wallet address.
package bundlegen

import (
	"fmt"
	"io"
	"time"

	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
)

// Options controls key generation. Zero values use crypto/rand and time.Now.
type Options struct {
	Rand io.Reader
	Now  time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Generated is a bundle plus the private material that produced it.
type Generated struct {
	Bundle   keybundle.KeyBundle
	Wallet   keys.Address
	Identity *keys.PrivateKey
	PreKey   *keys.PrivateKey
}

func newKeys(opts Options) (*keys.PrivateKey, *keys.PrivateKey, error) {
	identity, err := keys.GeneratePrivateKey(opts.Rand)
	if err != nil {
		return nil, nil, fmt.Errorf("generate identity key: %w", err)
	}
	pre, err := keys.GeneratePrivateKey(opts.Rand)
	if err != nil {
		return nil, nil, fmt.Errorf("generate prekey: %w", err)
	}
	return identity, pre, nil
}

// NewV1 generates a legacy bundle attested by wallet.
func NewV1(wallet *keys.PrivateKey, opts Options) (*Generated, error) {
	identity, pre, err := newKeys(opts)
	if err != nil {
		return nil, err
	}
	ts := uint64(opts.now().UnixMilli())

	idKey := &keybundle.PublicKey{Timestamp: ts, Key: identity.PublicKey()}
	SignV1IdentityKey(wallet, idKey)

	preKey := &keybundle.PublicKey{Timestamp: ts, Key: pre.PublicKey()}
	if err := SignV1PreKey(identity, preKey); err != nil {
		return nil, err
	}
	return &Generated{
		Bundle:   &keybundle.BundleV1{IdentityKey: idKey, PreKey: preKey},
		Wallet:   wallet.Address(),
		Identity: identity,
		PreKey:   pre,
	}, nil
}

// NewV2 generates a signed bundle attested by wallet.
func NewV2(wallet *keys.PrivateKey, opts Options) (*Generated, error) {
	identity, pre, err := newKeys(opts)
	if err != nil {
		return nil, err
	}
	ns := uint64(opts.now().UnixNano())

	idKey := &keybundle.SignedPublicKey{
		KeyBytes: keybundle.EncodeUnsignedPublicKey(&keybundle.UnsignedPublicKey{CreatedNs: ns, Key: identity.PublicKey()}),
	}
	SignV2IdentityKey(wallet, idKey)

	preKey := &keybundle.SignedPublicKey{
		KeyBytes: keybundle.EncodeUnsignedPublicKey(&keybundle.UnsignedPublicKey{CreatedNs: ns, Key: pre.PublicKey()}),
	}
	if err := SignV2PreKey(identity, preKey); err != nil {
		return nil, err
	}
	return &Generated{
		Bundle:   &keybundle.BundleV2{IdentityKey: idKey, PreKey: preKey},
		Wallet:   wallet.Address(),
		Identity: identity,
		PreKey:   pre,
	}, nil
}

// SignV1IdentityKey attaches the wallet's signature to a V1 identity key.
// V1 stores the wallet signature in the ecdsaCompact member.
func SignV1IdentityKey(wallet *keys.PrivateKey, k *keybundle.PublicKey) {
	sig, rec := wallet.SignPersonalMessage(keys.IdentitySignatureText(k.SigningBytes()))
	k.Signature = &keybundle.Signature{Kind: keybundle.ECDSACompact, Bytes: sig, Recovery: rec}
}

// SignV1PreKey attaches identity's signature to a V1 prekey.
func SignV1PreKey(identity *keys.PrivateKey, k *keybundle.PublicKey) error {
	digest := keys.KeySigningDigest(k.SigningBytes())
	sig, rec, err := identity.SignDigest(digest[:])
	if err != nil {
		return err
	}
	k.Signature = &keybundle.Signature{Kind: keybundle.ECDSACompact, Bytes: sig, Recovery: rec}
	return nil
}

// SignV2IdentityKey attaches the wallet's signature to a V2 identity key.
func SignV2IdentityKey(wallet *keys.PrivateKey, k *keybundle.SignedPublicKey) {
	sig, rec := wallet.SignPersonalMessage(keys.IdentitySignatureText(k.KeyBytes))
	k.Signature = &keybundle.Signature{Kind: keybundle.WalletECDSACompact, Bytes: sig, Recovery: rec}
}

// SignV2PreKey attaches identity's signature to a V2 prekey.
func SignV2PreKey(identity *keys.PrivateKey, k *keybundle.SignedPublicKey) error {
	digest := keys.KeySigningDigest(k.KeyBytes)
	sig, rec, err := identity.SignDigest(digest[:])
	if err != nil {
		return err
	}
	k.Signature = &keybundle.Signature{Kind: keybundle.ECDSACompact, Bytes: sig, Recovery: rec}
	return nil
}

// DeterministicReader yields an endless counting byte stream; fixtures only.
type DeterministicReader struct{ B byte }

func (r *DeterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		r.B++
		p[i] = r.B
	}
	return len(p), nil
}
