package verify

import (
	"strconv"
	"strings"

	"xdao.co/keyaudit/keys"
)

// CodeKind identifies a violated bundle invariant. Branch on CodeKind, never
// on the rendered string.
type CodeKind int

const (
	IDKeyMissing CodeKind = iota + 1
	IDKeyBadLen
	IDKeySigMissing
	IDKeyWrongSigTypeWallet
	IDKeyWrongSigTypeNonWallet
	IDKeySigBadLen
	IDKeySigBadRecovery
	PreKeyMissing
	PreKeyBadLen
	PreKeySigMissing
	PreKeyWrongSigTypeWallet
	PreKeySigBadLen
	PreKeySigRecoversToNull
	PreKeyNotSignedByIDKey
)

var kindNames = map[CodeKind]string{
	IDKeyMissing:               "idkey_missing",
	IDKeyBadLen:                "idkey_bad_len_",
	IDKeySigMissing:            "idkey_sig_missing",
	IDKeyWrongSigTypeWallet:    "idkey_wrong_sig_type_wallet",
	IDKeyWrongSigTypeNonWallet: "idkey_wrong_sig_type_nonwallet",
	IDKeySigBadLen:             "idkey_sig_bad_len_",
	IDKeySigBadRecovery:        "idkey_sig_bad_recovers_to_",
	PreKeyMissing:              "prekey_missing",
	PreKeyBadLen:               "prekey_bad_len_",
	PreKeySigMissing:           "prekey_sig_missing",
	PreKeyWrongSigTypeWallet:   "prekey_wrong_sig_type_wallet",
	PreKeySigBadLen:            "prekey_sig_bad_len_",
	PreKeySigRecoversToNull:    "prekey_sig_bad_recovers_to_null",
	PreKeyNotSignedByIDKey:     "prekey_not_signed_by_idkey",
}

// Code is one violated invariant with its typed payload.
//
// Len is set for the *BadLen kinds. Address/HasAddress are set for
// IDKeySigBadRecovery when a wallet address was recovered at all.
type Code struct {
	Kind       CodeKind
	Len        int
	Address    keys.Address
	HasAddress bool
}

// String renders the stable wire form, e.g. "idkey_bad_len_33".
func (c Code) String() string {
	name, ok := kindNames[c.Kind]
	if !ok {
		return "unknown_" + strconv.Itoa(int(c.Kind))
	}
	switch c.Kind {
	case IDKeyBadLen, IDKeySigBadLen, PreKeyBadLen, PreKeySigBadLen:
		return name + strconv.Itoa(c.Len)
	case IDKeySigBadRecovery:
		if !c.HasAddress {
			return name + "null"
		}
		return name + c.Address.Truncate()
	default:
		return name
	}
}

// Result is the ordered list of violations found in one bundle. Empty means ok.
type Result struct {
	Codes []Code
}

func (r Result) OK() bool { return len(r.Codes) == 0 }

// Has reports whether any code of kind k was found.
func (r Result) Has(k CodeKind) bool {
	for _, c := range r.Codes {
		if c.Kind == k {
			return true
		}
	}
	return false
}

func (r Result) Strings() []string {
	out := make([]string, 0, len(r.Codes))
	for _, c := range r.Codes {
		out = append(out, c.String())
	}
	return out
}

// Joined is the comma-joined codes, or "ok".
func (r Result) Joined() string {
	if r.OK() {
		return "ok"
	}
	return strings.Join(r.Strings(), ",")
}

func (r Result) String() string { return r.Joined() }
