package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultPageSize matches the page size XMTP clients request.
const DefaultPageSize = 100

// Querier runs one MessageApi query.
type Querier interface {
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)
}

type rpcQuerier struct{ api MessageApiClient }

func (q rpcQuerier) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	return q.api.Query(ctx, req)
}

// Client lists envelopes from one environment.
type Client struct {
	cc       *grpc.ClientConn
	q        Querier
	env      Environment
	logger   *slog.Logger
	timeout  time.Duration
	pageSize uint32
	maxMsg   int
}

type Option func(c *Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds each RPC. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n uint32) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithMaxMessageBytes sets the receive limit when dialing.
func WithMaxMessageBytes(n int) Option {
	return func(c *Client) {
		c.maxMsg = n
	}
}

// New wraps an existing Querier.
func New(q Querier, opts ...Option) *Client {
	c := &Client{q: q, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.pageSize == 0 {
		c.pageSize = DefaultPageSize
	}
	return c
}

// NewFromConn speaks MessageApi over an established connection.
func NewFromConn(cc grpc.ClientConnInterface, opts ...Option) *Client {
	return New(rpcQuerier{api: NewMessageApiClient(cc)}, opts...)
}

// Dial connects to ep. The connection is established lazily on first query.
func Dial(ep Endpoint, opts ...Option) (*Client, error) {
	c := New(nil, opts...)
	c.env = ep.Env

	var creds credentials.TransportCredentials
	if ep.Insecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if c.maxMsg > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(c.maxMsg)))
	}

	cc, err := grpc.NewClient(ep.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s (%s): %w", ep.Env, ep.Address, err)
	}
	c.cc = cc
	c.q = rpcQuerier{api: NewMessageApiClient(cc)}
	c.logger = c.logger.With("env", string(ep.Env))
	c.logger.Debug("message api client created", "address", ep.Address, "insecure", ep.Insecure)
	return c, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Env is the environment the client was dialed for, empty for New.
func (c *Client) Env() Environment { return c.env }

func (c *Client) query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.q.Query(ctx, req)
}
