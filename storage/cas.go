// Package storage defines the content-addressed block store that snapshots
// are written to.
package storage

import "github.com/ipfs/go-cid"

// CAS stores immutable blocks keyed by the CIDv1 (raw, sha2-256) of their
// bytes.
//
// Put is idempotent and returns the CID derived from the bytes written.
// Get returns ErrNotFound for an absent block and ErrCIDMismatch when the
// stored bytes no longer hash to the requested CID.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
