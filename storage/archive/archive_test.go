package archive_test

import (
	"archive/tar"
	"bytes"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/storage"
	"xdao.co/keyaudit/storage/archive"
	"xdao.co/keyaudit/storage/localfs"
)

func newStore(t *testing.T) *localfs.CAS {
	t.Helper()
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return cas
}

func TestExport_IsDeterministic(t *testing.T) {
	cas := newStore(t)
	id1, err := cas.Put([]byte("manifest"))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := cas.Put([]byte("envelope"))
	if err != nil {
		t.Fatal(err)
	}

	var a, b bytes.Buffer
	if err := archive.Export(&a, cas, []cid.Cid{id2, id1, id2}, map[string]cid.Cid{"manifest": id1}); err != nil {
		t.Fatal(err)
	}
	if err := archive.Export(&b, cas, []cid.Cid{id1, id2}, map[string]cid.Cid{"manifest": id1}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("expected identical archive bytes")
	}
}

func TestImport_RoundTrip(t *testing.T) {
	src := newStore(t)
	root, err := src.Put([]byte("manifest"))
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := src.Put([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := archive.Export(&buf, src, []cid.Cid{root, leaf}, map[string]cid.Cid{"manifest": root}); err != nil {
		t.Fatal(err)
	}

	dst := newStore(t)
	idx, err := archive.Import(bytes.NewReader(buf.Bytes()), dst)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := idx.Root("manifest")
	if !ok || !got.Equals(root) {
		t.Fatalf("Root(manifest) = %s, %v; want %s", got, ok, root)
	}
	if len(idx.Blocks) != 2 {
		t.Fatalf("index lists %d blocks, want 2", len(idx.Blocks))
	}
	b, err := dst.Get(leaf)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "payload" {
		t.Fatalf("payload mismatch")
	}
}

func TestExport_RootMustBeExported(t *testing.T) {
	cas := newStore(t)
	id, err := cas.Put([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	other, err := cidutil.Sum([]byte("y"))
	if err != nil {
		t.Fatal(err)
	}
	if err := archive.Export(&bytes.Buffer{}, cas, []cid.Cid{id}, map[string]cid.Cid{"manifest": other}); err == nil {
		t.Fatalf("expected error for a root outside the block set")
	}
}

func TestExport_MissingBlock(t *testing.T) {
	cas := newStore(t)
	id, err := cidutil.Sum([]byte("absent"))
	if err != nil {
		t.Fatal(err)
	}
	if err := archive.Export(&bytes.Buffer{}, cas, []cid.Cid{id}, nil); !storage.IsNotFound(err) {
		t.Fatalf("Export: got %v, want ErrNotFound", err)
	}
}

func writeTar(t *testing.T, files map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range order {
		content := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImport_Rejects(t *testing.T) {
	good := []byte("good")
	goodID := cidutil.String(good)
	index := []byte(`{"version":1,"blocks":[{"cid":"` + goodID + `","size":4}]}`)

	cases := []struct {
		name  string
		files map[string][]byte
		order []string
		is    error
	}{
		{
			name:  "tampered block",
			files: map[string][]byte{"blocks/" + goodID: []byte("evil"), "index.json": index},
			order: []string{"blocks/" + goodID, "index.json"},
			is:    storage.ErrCIDMismatch,
		},
		{
			name:  "missing index",
			files: map[string][]byte{"blocks/" + goodID: good},
			order: []string{"blocks/" + goodID},
			is:    archive.ErrMissingIndex,
		},
		{
			name:  "unknown entry",
			files: map[string][]byte{"notes.txt": []byte("hi"), "index.json": index},
			order: []string{"notes.txt", "index.json"},
		},
		{
			name:  "path traversal",
			files: map[string][]byte{"blocks/../x": good},
			order: []string{"blocks/../x"},
		},
		{
			name:  "duplicate block",
			files: map[string][]byte{"blocks/" + goodID: good, "index.json": index},
			order: []string{"blocks/" + goodID, "blocks/" + goodID, "index.json"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := writeTar(t, tc.files, tc.order)
			_, err := archive.Import(bytes.NewReader(raw), newStore(t))
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("got %v, want %v", err, tc.is)
			}
		})
	}
}
