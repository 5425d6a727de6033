package cidutil

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func TestSumAndParse(t *testing.T) {
	data := []byte("contact bundle")
	id, err := Sum(data)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id.Version())
	require.Equal(t, uint64(cid.Raw), id.Type())
	require.Equal(t, id.String(), String(data))
	require.True(t, Verify(id, data))
	require.False(t, Verify(id, []byte("tampered")))

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.True(t, parsed.Equals(id))
}

func TestParseRejectsForeignCIDs(t *testing.T) {
	_, err := Parse("not-a-cid")
	require.Error(t, err)

	mh, err := multihash.Sum([]byte("x"), multihash.SHA2_256, -1)
	require.NoError(t, err)
	_, err = Parse(cid.NewCidV0(mh).String())
	require.Error(t, err)

	_, err = Parse(cid.NewCidV1(cid.DagCBOR, mh).String())
	require.Error(t, err)

	sha512, err := multihash.Sum([]byte("x"), multihash.SHA2_512, -1)
	require.NoError(t, err)
	_, err = Parse(cid.NewCidV1(cid.Raw, sha512).String())
	require.Error(t, err)
}
