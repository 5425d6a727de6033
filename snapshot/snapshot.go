// Package snapshot freezes a topic listing into a content-addressed store so
// an audit can be replayed offline against exactly the same envelopes.
//
// Each envelope payload is stored as its own block. A JSON manifest lists the
// blocks in listing order; its CID names the snapshot.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"

	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/network"
	"xdao.co/keyaudit/storage"
)

// ManifestVersion is the only manifest layout Load accepts.
const ManifestVersion = 1

var (
	ErrUnsupportedVersion = errors.New("snapshot: unsupported manifest version")
	ErrMalformedManifest  = errors.New("snapshot: malformed manifest")
)

// Manifest describes one saved listing. Envelopes is filled in by Save.
type Manifest struct {
	Version   int           `json:"version"`
	ID        uuid.UUID     `json:"id"`
	Env       string        `json:"env"`
	Address   string        `json:"address"`
	Topic     string        `json:"topic"`
	CreatedAt string        `json:"created_at,omitempty"`
	Envelopes []EnvelopeRef `json:"envelopes"`
}

// EnvelopeRef points at one payload block. CID is empty for an envelope that
// carried no payload; that condition is preserved rather than dropped.
type EnvelopeRef struct {
	CID         string `json:"cid"`
	TimestampNs uint64 `json:"timestamp_ns,string"`
}

// Save writes envs and a manifest derived from m to cas and returns the
// manifest CID. A zero m.ID is replaced with a random UUID.
func Save(cas storage.CAS, m Manifest, envs []network.Envelope) (cid.Cid, *Manifest, error) {
	m.Version = ManifestVersion
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Envelopes = make([]EnvelopeRef, 0, len(envs))

	for i, env := range envs {
		ref := EnvelopeRef{TimestampNs: env.TimestampNs}
		if len(env.Message) > 0 {
			id, err := cas.Put(env.Message)
			if err != nil {
				return cid.Undef, nil, fmt.Errorf("snapshot: store envelope %d: %w", i, err)
			}
			ref.CID = id.String()
		}
		m.Envelopes = append(m.Envelopes, ref)
	}

	raw, err := json.Marshal(&m)
	if err != nil {
		return cid.Undef, nil, err
	}
	id, err := cas.Put(raw)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("snapshot: store manifest: %w", err)
	}
	return id, &m, nil
}

// Load reads the manifest at id and every envelope it references. Each block
// is re-hashed against its CID regardless of what the store checks.
func Load(cas storage.CAS, id cid.Cid) (*Manifest, []network.Envelope, error) {
	raw, err := get(cas, id)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: manifest %s: %w", id, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	if m.Version != ManifestVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}

	envs := make([]network.Envelope, 0, len(m.Envelopes))
	for i, ref := range m.Envelopes {
		env := network.Envelope{ContentTopic: m.Topic, TimestampNs: ref.TimestampNs}
		if ref.CID != "" {
			blockID, err := cidutil.Parse(ref.CID)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: envelope %d: %v", ErrMalformedManifest, i, err)
			}
			env.Message, err = get(cas, blockID)
			if err != nil {
				return nil, nil, fmt.Errorf("snapshot: envelope %d: %w", i, err)
			}
		}
		envs = append(envs, env)
	}
	return &m, envs, nil
}

func get(cas storage.CAS, id cid.Cid) ([]byte, error) {
	b, err := cas.Get(id)
	if err != nil {
		return nil, err
	}
	if !cidutil.Verify(id, b) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

// Blocks lists every block the snapshot at id depends on, manifest first.
func Blocks(cas storage.CAS, id cid.Cid) ([]cid.Cid, error) {
	m, _, err := Load(cas, id)
	if err != nil {
		return nil, err
	}
	out := []cid.Cid{id}
	for _, ref := range m.Envelopes {
		if ref.CID == "" {
			continue
		}
		blockID, err := cidutil.Parse(ref.CID)
		if err != nil {
			return nil, err
		}
		out = append(out, blockID)
	}
	return out, nil
}
