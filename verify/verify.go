// Package verify certifies the signature chain of a single contact bundle.
//
// Verify never fails: every problem becomes a Code in the Result, so a scan
// over thousands of historical bundles is never aborted by one malformed entry.
package verify

import (
	"bytes"

	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
)

// slot is one key slot flattened out of either bundle variant.
type slot struct {
	present      bool
	key          []byte
	sig          *keybundle.Signature
	signingBytes []byte
}

// profile holds what differs between variants in the shared checklist.
type profile struct {
	identitySigKind  keybundle.SignatureKind
	identityWrongSig CodeKind
}

var (
	// V1 carries the wallet's signature in the legacy ecdsaCompact member.
	profileV1 = profile{identitySigKind: keybundle.ECDSACompact, identityWrongSig: IDKeyWrongSigTypeWallet}
	profileV2 = profile{identitySigKind: keybundle.WalletECDSACompact, identityWrongSig: IDKeyWrongSigTypeNonWallet}
)

// Verify runs the checklist for b's variant against the claimed wallet address.
func Verify(b keybundle.KeyBundle, claimed keys.Address) Result {
	switch v := b.(type) {
	case *keybundle.BundleV1:
		if v == nil {
			break
		}
		return run(profileV1, v1Slot(v.IdentityKey), v1Slot(v.PreKey), claimed)
	case *keybundle.BundleV2:
		if v == nil {
			break
		}
		return run(profileV2, v2Slot(v.IdentityKey), v2Slot(v.PreKey), claimed)
	}
	return Result{Codes: []Code{{Kind: IDKeyMissing}}}
}

func v1Slot(k *keybundle.PublicKey) slot {
	if k == nil {
		return slot{}
	}
	return slot{present: true, key: k.Key, sig: k.Signature, signingBytes: k.SigningBytes()}
}

func v2Slot(k *keybundle.SignedPublicKey) slot {
	if k == nil {
		return slot{}
	}
	s := slot{present: true, sig: k.Signature, signingBytes: k.KeyBytes}
	if u, err := k.Unsigned(); err == nil {
		s.key = u.Key
	}
	return s
}

// checklist carries the state shared between steps of one evaluation.
type checklist struct {
	p        profile
	identity slot
	pre      slot
	claimed  keys.Address

	identitySigUsable bool
	preSigUsable      bool
}

// step appends at most one code. Order is the evaluation order; keep it stable.
type step func(*checklist) *Code

var steps = []step{
	(*checklist).identityKey,
	(*checklist).identitySignature,
	(*checklist).identitySignatureRecovers,
	(*checklist).preKey,
	(*checklist).preKeySignature,
	(*checklist).preKeySignatureRecovers,
}

func run(p profile, identity, pre slot, claimed keys.Address) Result {
	c := &checklist{p: p, identity: identity, pre: pre, claimed: claimed}
	var res Result
	for _, s := range steps {
		if code := s(c); code != nil {
			res.Codes = append(res.Codes, *code)
		}
	}
	return res
}

func (c *checklist) identityKey() *Code {
	if !c.identity.present || c.identity.key == nil {
		return &Code{Kind: IDKeyMissing}
	}
	if n := len(c.identity.key); n != keys.UncompressedKeyLength {
		return &Code{Kind: IDKeyBadLen, Len: n}
	}
	return nil
}

func (c *checklist) identitySignature() *Code {
	if !c.identity.present {
		return nil
	}
	sig := c.identity.sig
	if sig == nil || sig.Kind == keybundle.SignatureUnset {
		return &Code{Kind: IDKeySigMissing}
	}
	if sig.Kind != c.p.identitySigKind {
		return &Code{Kind: c.p.identityWrongSig}
	}
	if n := len(sig.Bytes); n != keys.CompactSignatureLength {
		return &Code{Kind: IDKeySigBadLen, Len: n}
	}
	c.identitySigUsable = true
	return nil
}

// identitySignatureRecovers checks the wallet attestation: personal-message
// hashing over the identity signature text must recover the claimed address.
func (c *checklist) identitySignatureRecovers() *Code {
	if !c.identitySigUsable {
		return nil
	}
	sig := c.identity.sig
	text := keys.IdentitySignatureText(c.identity.signingBytes)
	addr, err := keys.RecoverWalletAddress(text, sig.Bytes, sig.Recovery)
	if err != nil {
		return &Code{Kind: IDKeySigBadRecovery}
	}
	if addr != c.claimed {
		return &Code{Kind: IDKeySigBadRecovery, Address: addr, HasAddress: true}
	}
	return nil
}

func (c *checklist) preKey() *Code {
	if !c.pre.present {
		return nil
	}
	if c.pre.key == nil {
		return &Code{Kind: PreKeyMissing}
	}
	if n := len(c.pre.key); n != keys.UncompressedKeyLength {
		return &Code{Kind: PreKeyBadLen, Len: n}
	}
	return nil
}

func (c *checklist) preKeySignature() *Code {
	if !c.pre.present {
		return nil
	}
	sig := c.pre.sig
	if sig == nil || sig.Kind == keybundle.SignatureUnset {
		return &Code{Kind: PreKeySigMissing}
	}
	if sig.Kind != keybundle.ECDSACompact {
		return &Code{Kind: PreKeyWrongSigTypeWallet}
	}
	if n := len(sig.Bytes); n != keys.CompactSignatureLength {
		return &Code{Kind: PreKeySigBadLen, Len: n}
	}
	c.preSigUsable = true
	return nil
}

// preKeySignatureRecovers checks the identity attestation: a plain SHA-256
// digest of the prekey signing bytes must recover the identity key itself.
func (c *checklist) preKeySignatureRecovers() *Code {
	if !c.preSigUsable || !c.identity.present {
		return nil
	}
	sig := c.pre.sig
	digest := keys.KeySigningDigest(c.pre.signingBytes)
	signer, err := keys.RecoverDigestSigner(digest[:], sig.Bytes, sig.Recovery)
	if err != nil || signer == nil {
		return &Code{Kind: PreKeySigRecoversToNull}
	}
	if !bytes.Equal(signer, c.identity.key) {
		return &Code{Kind: PreKeyNotSignedByIDKey}
	}
	return nil
}
