package storage

import "github.com/ipfs/go-cid"

// MultiCAS reads from several snapshot directories in the order given and
// writes only to the first. The first hard error (anything but ErrNotFound)
// stops the search.
type MultiCAS struct {
	Adapters []CAS
}

func (m MultiCAS) Put(bytes []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, ErrNoAdapters
	}
	return m.Adapters[0].Put(bytes)
}

func (m MultiCAS) Get(id cid.Cid) ([]byte, error) {
	if len(m.Adapters) == 0 {
		return nil, ErrNoAdapters
	}
	for _, cas := range m.Adapters {
		b, err := cas.Get(id)
		switch {
		case err == nil:
			return b, nil
		case IsNotFound(err):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (m MultiCAS) Has(id cid.Cid) bool {
	for _, cas := range m.Adapters {
		if cas.Has(id) {
			return true
		}
	}
	return false
}
