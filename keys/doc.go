// Package keys provides the secp256k1 signature primitives the auditor consumes.
//
// API stability:
//
// Stable (SemVer-protected):
//   - Pure, deterministic primitives: Keccak-256, wallet personal-message hashing,
//     EIP-55 address formatting, compact-signature recovery.
//
// Experimental:
//   - Filesystem-backed wallet storage (KeyStore and related functions).
//     These are local-first utilities used by the CLI and fixture tooling.
//
// Two recovery paths exist and must stay separate:
//   - RecoverWalletAddress hashes with the wallet personal-message scheme
//     (identity key attested by a wallet).
//   - RecoverDigestSigner recovers over a caller-supplied digest
//     (prekey attested by the identity key).
package keys
