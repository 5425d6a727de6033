// Package grpccas stores snapshot blocks on a remote BlockStore service so
// several auditors can share one snapshot archive.
package grpccas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/storage"
)

// Scheme prefixes a snapshot location served by a BlockStore daemon.
const Scheme = "grpc://"

// IsRemote reports whether location names a BlockStore daemon.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, Scheme)
}

// Client implements storage.CAS against a BlockStore service. Every block
// it returns or accepts is re-hashed locally.
type Client struct {
	cc     *grpc.ClientConn
	client BlockStoreClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	Timeout time.Duration

	// MaxMsgBytes sets both send and recv limits when non-zero.
	MaxMsgBytes int
}

// Dial connects to target, which may carry the grpc:// prefix. The
// connection is plaintext and established lazily.
func Dial(target string, opts DialOptions) (*Client, error) {
	target = strings.TrimSuffix(strings.TrimPrefix(target, Scheme), "/")
	if target == "" {
		return nil, fmt.Errorf("grpccas: empty target")
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpccas: dial %s: %w", target, err)
	}
	return &Client{cc: cc, client: NewBlockStoreClient(cc), Timeout: opts.Timeout}, nil
}

// NewFromConn uses an existing connection; Close leaves it open.
func NewFromConn(cc grpc.ClientConnInterface) *Client {
	return &Client{client: NewBlockStoreClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(data []byte) (cid.Cid, error) {
	expected, err := cidutil.Sum(data)
	if err != nil {
		return cid.Undef, err
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return cid.Undef, fromStatus(err)
	}
	id, err := cid.Decode(reply.GetValue())
	if err != nil || !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	if !id.Equals(expected) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (c *Client) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, fromStatus(err)
	}
	b := reply.GetValue()
	if !cidutil.Verify(id, b) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *Client) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Has(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return false
	}
	return reply.GetValue()
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}
