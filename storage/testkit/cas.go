// Package testkit holds the behaviour every storage.CAS must share.
package testkit

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/storage"
)

// NewCAS returns an empty store private to t.
type NewCAS func(t *testing.T) storage.CAS

// RunCASConformance checks round trips, idempotence, absence and undefined
// CIDs against stores produced by newCAS.
func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("RoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		payload := []byte{0x0a, 0x02, 0x0a, 0x00}

		id, err := cas.Put(payload)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if want := cidutil.String(payload); id.String() != want {
			t.Fatalf("Put CID = %s, want %s", id, want)
		}
		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("Get returned different bytes")
		}
	})

	t.Run("EmptyBlock", func(t *testing.T) {
		cas := newCAS(t)
		id, err := cas.Put(nil)
		if err != nil {
			t.Fatalf("Put(nil): %v", err)
		}
		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("Get returned %d bytes for the empty block", len(got))
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		cas := newCAS(t)
		a, err := cas.Put([]byte("manifest"))
		if err != nil {
			t.Fatalf("Put(1): %v", err)
		}
		b, err := cas.Put([]byte("manifest"))
		if err != nil {
			t.Fatalf("Put(2): %v", err)
		}
		if !a.Equals(b) {
			t.Fatalf("Put not idempotent: %s vs %s", a, b)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		cas := newCAS(t)
		id, err := cidutil.Sum([]byte("absent"))
		if err != nil {
			t.Fatalf("Sum: %v", err)
		}
		if cas.Has(id) {
			t.Fatalf("Has reported an absent block")
		}
		if _, err := cas.Get(id); !storage.IsNotFound(err) {
			t.Fatalf("Get absent: got %v, want ErrNotFound", err)
		}
	})

	t.Run("UndefinedCID", func(t *testing.T) {
		cas := newCAS(t)
		if cas.Has(cid.Undef) {
			t.Fatalf("Has(Undef) = true")
		}
		if _, err := cas.Get(cid.Undef); err == nil {
			t.Fatalf("Get(Undef) succeeded")
		}
	})
}
