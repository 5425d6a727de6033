package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"xdao.co/keyaudit/bundlegen"
	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
	"xdao.co/keyaudit/verify"
)

func mustWallet(b byte) *keys.PrivateKey {
	secret := make([]byte, keys.SecretLength)
	for i := range secret {
		secret[i] = b
	}
	w, err := keys.PrivateKeyFromBytes(secret)
	if err != nil {
		panic(err)
	}
	return w
}

type vector struct {
	name   string
	bundle keybundle.KeyBundle
}

func emit(v vector, claimed keys.Address) {
	wire, err := keybundle.EncodeContactBundle(v.bundle)
	if err != nil {
		panic(err)
	}
	fmt.Printf("NAME=%s\n", v.name)
	fmt.Printf("CID=%s\n", cidutil.String(wire))
	fmt.Printf("ADDRESS=%s\n", claimed)
	fmt.Printf("EXPECT=%s\n", verify.Verify(v.bundle, claimed).Joined())
	fmt.Printf("---BEGIN---\n%s\n---END---\n\n", hex.EncodeToString(wire))
}

func main() {
	wallet := mustWallet(0xA1)
	opts := func() bundlegen.Options {
		return bundlegen.Options{Rand: &bundlegen.DeterministicReader{}, Now: time.Unix(1690000000, 0)}
	}

	v1, err := bundlegen.NewV1(wallet, opts())
	if err != nil {
		panic(err)
	}
	v2, err := bundlegen.NewV2(wallet, opts())
	if err != nil {
		panic(err)
	}

	foreign, err := bundlegen.NewV2(mustWallet(0xB2), opts())
	if err != nil {
		panic(err)
	}

	// V2 identity signature stored in the V1 member.
	wrongKind := *v2.Bundle.(*keybundle.BundleV2)
	idKey := *wrongKind.IdentityKey
	sig := *idKey.Signature
	sig.Kind = keybundle.ECDSACompact
	idKey.Signature = &sig
	wrongKind.IdentityKey = &idKey

	// Prekey signed by an unrelated key.
	stray := *v1.Bundle.(*keybundle.BundleV1)
	pre := *stray.PreKey
	if err := bundlegen.SignV1PreKey(mustWallet(0xC3), &pre); err != nil {
		panic(err)
	}
	stray.PreKey = &pre

	for _, v := range []vector{
		{"v1-valid", v1.Bundle},
		{"v2-valid", v2.Bundle},
		{"v2-foreign-wallet", foreign.Bundle},
		{"v2-identity-sig-wrong-kind", &wrongKind},
		{"v1-prekey-foreign-signer", &stray},
	} {
		emit(v, wallet.Address())
	}
}
