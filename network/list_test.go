package network_test

//go:generate mockgen -source=client.go -destination=mocks/querier_mock.go -package=mocks Querier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
	"xdao.co/keyaudit/network"
	"xdao.co/keyaudit/network/mocks"
)

var testAddr = keys.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envelopes(from, n int) []network.Envelope {
	out := make([]network.Envelope, n)
	for i := range out {
		out[i] = network.Envelope{TimestampNs: uint64(from + i), Message: []byte{byte(from + i)}}
	}
	return out
}

func cursorAt(n int) *network.PagingInfo {
	return &network.PagingInfo{Cursor: &network.Cursor{Index: &network.IndexCursor{Digest: []byte{byte(n)}, SenderTimeNs: uint64(n)}}}
}

func TestListEnvelopes_FollowsCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)
	c := network.New(q, network.WithLogger(quietLogger()), network.WithPageSize(2))

	start := time.Unix(100, 0)
	end := time.Unix(200, 0)
	topic := network.ContactTopic(testAddr)

	gomock.InOrder(
		q.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req *network.QueryRequest) (*network.QueryResponse, error) {
			assert.Equal(t, []string{topic}, req.ContentTopics)
			assert.Equal(t, uint64(start.UnixNano()), req.StartTimeNs)
			assert.Equal(t, uint64(end.UnixNano()), req.EndTimeNs)
			assert.Equal(t, uint32(2), req.PagingInfo.Limit)
			assert.Equal(t, network.DirectionDescending, req.PagingInfo.Direction)
			assert.Nil(t, req.PagingInfo.Cursor)
			return &network.QueryResponse{Envelopes: envelopes(0, 2), PagingInfo: cursorAt(2)}, nil
		}),
		q.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req *network.QueryRequest) (*network.QueryResponse, error) {
			require.NotNil(t, req.PagingInfo.Cursor)
			assert.Equal(t, []byte{2}, req.PagingInfo.Cursor.Index.Digest)
			return &network.QueryResponse{Envelopes: envelopes(2, 2), PagingInfo: cursorAt(4)}, nil
		}),
		q.EXPECT().Query(gomock.Any(), gomock.Any()).Return(&network.QueryResponse{Envelopes: envelopes(4, 1), PagingInfo: &network.PagingInfo{}}, nil),
	)

	got, err := c.ListEnvelopes(context.Background(), topic, network.ListOptions{
		StartTime: start, EndTime: end, Direction: network.DirectionDescending,
	})
	require.NoError(t, err)
	assert.Equal(t, envelopes(0, 5), got)
}

func TestListEnvelopes_HonoursLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)
	c := network.New(q, network.WithLogger(quietLogger()), network.WithPageSize(3))

	var limits []uint32
	q.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req *network.QueryRequest) (*network.QueryResponse, error) {
		limits = append(limits, req.PagingInfo.Limit)
		n := len(limits)
		return &network.QueryResponse{Envelopes: envelopes(n*10, int(req.PagingInfo.Limit)), PagingInfo: cursorAt(n)}, nil
	}).Times(2)

	got, err := c.ListEnvelopes(context.Background(), "topic", network.ListOptions{Limit: 4})
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, []uint32{3, 1}, limits)
}

func TestListEnvelopes_StopsOnEmptyPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)
	c := network.New(q, network.WithLogger(quietLogger()))

	q.EXPECT().Query(gomock.Any(), gomock.Any()).Return(&network.QueryResponse{PagingInfo: cursorAt(9)}, nil)

	got, err := c.ListEnvelopes(context.Background(), "topic", network.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListEnvelopes_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)
	c := network.New(q, network.WithLogger(quietLogger()))

	boom := errors.New("unavailable")
	q.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := c.ListEnvelopes(context.Background(), "topic", network.ListOptions{})
	require.ErrorIs(t, err, boom)

	_, err = c.ListEnvelopes(context.Background(), "topic", network.ListOptions{Limit: -1})
	require.Error(t, err)

	_, err = c.ListEnvelopes(context.Background(), "topic", network.ListOptions{StartTime: time.Unix(10, 0), EndTime: time.Unix(5, 0)})
	require.Error(t, err)
}

func TestListContacts_EmptyPayloadIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)
	c := network.New(q, network.WithLogger(quietLogger()))

	q.EXPECT().Query(gomock.Any(), gomock.Any()).Return(&network.QueryResponse{
		Envelopes: []network.Envelope{{TimestampNs: 42}},
	}, nil)

	_, err := c.ListContacts(context.Background(), testAddr, network.ListOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, keybundle.ErrNoPayload))
}

func TestListPrivateStoreTimestamps(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)
	c := network.New(q, network.WithLogger(quietLogger()))

	ts := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	q.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req *network.QueryRequest) (*network.QueryResponse, error) {
		assert.Equal(t, []string{"/xmtp/0/privatestore-0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed/key_bundle/proto"}, req.ContentTopics)
		return &network.QueryResponse{Envelopes: []network.Envelope{{TimestampNs: uint64(ts.UnixNano()), Message: []byte("sealed")}}}, nil
	})

	got, err := c.ListPrivateStoreTimestamps(context.Background(), testAddr, network.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{ts}, got)
}

func TestLoadProbe_TalliesOutcomes(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)
	c := network.New(q, network.WithLogger(quietLogger()))

	q.EXPECT().Query(gomock.Any(), gomock.Any()).Return(&network.QueryResponse{Envelopes: envelopes(0, 3)}, nil).Times(4)
	q.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("rate limited")).Times(2)

	results, err := c.LoadProbe(context.Background(), "topic", network.ListOptions{}, 3, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	total := map[string]int{}
	for _, r := range results {
		for k, v := range r.Tallies {
			total[k] += v
		}
	}
	assert.Equal(t, 4, total["results 3"])
	assert.Equal(t, 2, total["query topic page 1: rate limited"])

	_, err = c.LoadProbe(context.Background(), "topic", network.ListOptions{}, 0, 1)
	require.Error(t, err)
}

func TestResolveEndpoint(t *testing.T) {
	ep, err := network.ResolveEndpoint(network.EnvDev, "")
	require.NoError(t, err)
	assert.Equal(t, "grpc.dev.xmtp.network:443", ep.Address)
	assert.False(t, ep.Insecure)

	ep, err = network.ResolveEndpoint(network.EnvLocal, "")
	require.NoError(t, err)
	assert.True(t, ep.Insecure)

	ep, err = network.ResolveEndpoint(network.EnvProduction, "http://127.0.0.1:5556/")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5556", ep.Address)
	assert.True(t, ep.Insecure)

	env, err := network.ParseEnvironment("prod")
	require.NoError(t, err)
	assert.Equal(t, network.EnvProduction, env)
	_, err = network.ParseEnvironment("staging")
	require.Error(t, err)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "/xmtp/0/contact-0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed/proto", network.ContactTopic(testAddr))
}
