// Package archive moves snapshot blocks between stores as a single
// deterministic TAR file.
//
// Layout:
//
//	blocks/<cid>   one regular file per block
//	index.json     block list plus named roots (e.g. "manifest")
package archive

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/storage"
)

const FormatVersion = 1

var ErrMissingIndex = errors.New("archive: missing index.json")

// Index is the archive's table of contents.
type Index struct {
	Version int          `json:"version"`
	Blocks  []IndexBlock `json:"blocks"`
	Roots   []IndexRoot  `json:"roots,omitempty"`
}

type IndexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

// IndexRoot names one block, typically a snapshot manifest.
type IndexRoot struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

// Root returns the CID stored under name.
func (idx Index) Root(name string) (cid.Cid, bool) {
	for _, r := range idx.Roots {
		if r.Name == name {
			id, err := cidutil.Parse(r.CID)
			return id, err == nil
		}
	}
	return cid.Undef, false
}

var epoch = time.Unix(0, 0).UTC()

// Export writes the blocks ids from cas, plus roots, to w. Output bytes
// depend only on the set of blocks and roots.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, roots map[string]cid.Cid) (err error) {
	if cas == nil {
		return errors.New("archive: nil CAS")
	}
	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	idx := Index{Version: FormatVersion, Blocks: make([]IndexBlock, 0, len(names))}
	for _, s := range names {
		id := uniq[s]
		b, err := cas.Get(id)
		if err != nil {
			return fmt.Errorf("archive: block %s: %w", s, err)
		}
		if !cidutil.Verify(id, b) {
			return fmt.Errorf("archive: block %s: %w", s, storage.ErrCIDMismatch)
		}
		if err := writeFile(tw, "blocks/"+s, b); err != nil {
			return err
		}
		idx.Blocks = append(idx.Blocks, IndexBlock{CID: s, Size: len(b)})
	}

	rootNames := make([]string, 0, len(roots))
	for name := range roots {
		rootNames = append(rootNames, name)
	}
	sort.Strings(rootNames)
	for _, name := range rootNames {
		id := roots[name]
		if name == "" {
			return errors.New("archive: empty root name")
		}
		if _, ok := uniq[id.String()]; !ok {
			return fmt.Errorf("archive: root %s (%s) is not among the exported blocks", name, id)
		}
		idx.Roots = append(idx.Roots, IndexRoot{Name: name, CID: id.String()})
	}

	raw, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeFile(tw, "index.json", append(raw, '\n'))
}

// Import copies every block in r into cas and returns the archive's index.
// Unknown entries, duplicates and blocks that do not hash to their name are
// rejected.
func Import(r io.Reader, cas storage.CAS) (Index, error) {
	if cas == nil {
		return Index{}, errors.New("archive: nil CAS")
	}
	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *Index

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Index{}, err
		}
		name := cleanPath(h.Name)
		if name == "" {
			return Index{}, fmt.Errorf("archive: invalid entry path %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			return Index{}, fmt.Errorf("archive: unexpected entry type %v (%s)", h.Typeflag, name)
		}

		if name == "index.json" {
			var v Index
			dec := json.NewDecoder(tr)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&v); err != nil {
				return Index{}, fmt.Errorf("archive: index.json: %w", err)
			}
			if v.Version != FormatVersion {
				return Index{}, fmt.Errorf("archive: unsupported version %d", v.Version)
			}
			idx = &v
			continue
		}

		s, ok := strings.CutPrefix(name, "blocks/")
		if !ok {
			return Index{}, fmt.Errorf("archive: unknown entry %s", name)
		}
		id, err := cidutil.Parse(s)
		if err != nil {
			return Index{}, storage.ErrInvalidCID
		}
		if _, dup := seen[s]; dup {
			return Index{}, fmt.Errorf("archive: duplicate block %s", s)
		}
		seen[s] = struct{}{}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return Index{}, err
		}
		if !cidutil.Verify(id, payload) {
			return Index{}, fmt.Errorf("archive: block %s: %w", s, storage.ErrCIDMismatch)
		}
		got, err := cas.Put(payload)
		if err != nil {
			return Index{}, err
		}
		if !got.Equals(id) {
			return Index{}, storage.ErrCIDMismatch
		}
	}

	if idx == nil {
		return Index{}, ErrMissingIndex
	}
	for _, root := range idx.Roots {
		if _, ok := seen[root.CID]; !ok {
			return Index{}, fmt.Errorf("archive: root %s (%s) has no block", root.Name, root.CID)
		}
	}
	return *idx, nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanPath(name string) string {
	name = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"), "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
