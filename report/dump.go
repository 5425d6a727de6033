package report

import (
	"encoding/hex"
	"time"

	"xdao.co/keyaudit/keybundle"
)

type signatureView struct {
	Kind     string `json:"kind"`
	Bytes    string `json:"bytes"`
	Recovery uint32 `json:"recovery"`
}

type keyView struct {
	Timestamp uint64         `json:"timestamp,omitempty"`
	CreatedNs uint64         `json:"created_ns,omitempty"`
	KeyBytes  string         `json:"key_bytes,omitempty"`
	Key       string         `json:"secp256k1_uncompressed,omitempty"`
	Signature *signatureView `json:"signature,omitempty"`
}

type bundleView struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	IdentityKey *keyView  `json:"identity_key,omitempty"`
	PreKey      *keyView  `json:"pre_key,omitempty"`
}

func sigView(s *keybundle.Signature) *signatureView {
	if s == nil {
		return nil
	}
	return &signatureView{Kind: s.Kind.String(), Bytes: hex.EncodeToString(s.Bytes), Recovery: s.Recovery}
}

func v1KeyView(k *keybundle.PublicKey) *keyView {
	if k == nil {
		return nil
	}
	return &keyView{Timestamp: k.Timestamp, Key: hex.EncodeToString(k.Key), Signature: sigView(k.Signature)}
}

func v2KeyView(k *keybundle.SignedPublicKey) *keyView {
	if k == nil {
		return nil
	}
	v := &keyView{KeyBytes: hex.EncodeToString(k.KeyBytes), Signature: sigView(k.Signature)}
	if u, err := k.Unsigned(); err == nil {
		v.CreatedNs = u.CreatedNs
		v.Key = hex.EncodeToString(u.Key)
	}
	return v
}

// Dump writes every field of every bundle. Text and JSON output are the same
// indented document.
func (p *Printer) Dump(seq []keybundle.TimestampedBundle) error {
	views := make([]bundleView, 0, len(seq))
	for _, tb := range seq {
		v := bundleView{Date: tb.Timestamp, Type: versionOf(tb.Bundle)}
		switch b := tb.Bundle.(type) {
		case *keybundle.BundleV1:
			v.IdentityKey, v.PreKey = v1KeyView(b.IdentityKey), v1KeyView(b.PreKey)
		case *keybundle.BundleV2:
			v.IdentityKey, v.PreKey = v2KeyView(b.IdentityKey), v2KeyView(b.PreKey)
		}
		views = append(views, v)
	}
	return p.encode(views)
}
