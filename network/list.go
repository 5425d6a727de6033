package network

import (
	"context"
	"fmt"
	"time"

	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
)

// ListOptions filters and orders a topic listing. Zero times are unbounded
// and a zero Limit lists everything.
type ListOptions struct {
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Direction Direction
}

func (o ListOptions) validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("negative limit %d", o.Limit)
	}
	if !o.StartTime.IsZero() && !o.EndTime.IsZero() && o.EndTime.Before(o.StartTime) {
		return fmt.Errorf("end time %s is before start time %s", o.EndTime.Format(time.RFC3339), o.StartTime.Format(time.RFC3339))
	}
	return nil
}

func unixNano(t time.Time) uint64 {
	if t.IsZero() || t.UnixNano() < 0 {
		return 0
	}
	return uint64(t.UnixNano())
}

// ListEnvelopes pages through topic until the cursor runs out or the limit is
// reached.
func (c *Client) ListEnvelopes(ctx context.Context, topic string, opts ListOptions) ([]Envelope, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	req := &QueryRequest{
		ContentTopics: []string{topic},
		StartTimeNs:   unixNano(opts.StartTime),
		EndTimeNs:     unixNano(opts.EndTime),
		PagingInfo:    &PagingInfo{Direction: opts.Direction},
	}

	var out []Envelope
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.PagingInfo.Limit = c.pageSize
		if opts.Limit > 0 {
			if remaining := opts.Limit - len(out); remaining < int(c.pageSize) {
				req.PagingInfo.Limit = uint32(remaining)
			}
		}

		resp, err := c.query(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("query %s page %d: %w", topic, page, err)
		}
		out = append(out, resp.Envelopes...)
		c.logger.Debug("query page", "topic", topic, "page", page, "envelopes", len(resp.Envelopes), "total", len(out))

		if opts.Limit > 0 && len(out) >= opts.Limit {
			return out[:opts.Limit], nil
		}
		if len(resp.Envelopes) == 0 || resp.PagingInfo == nil || resp.PagingInfo.Cursor.empty() {
			return out, nil
		}
		req.PagingInfo.Cursor = resp.PagingInfo.Cursor
	}
}

// DecodeContacts turns contact envelopes into bundles. An envelope with no
// payload or an undecodable payload fails the whole listing.
func DecodeContacts(envs []Envelope) ([]keybundle.TimestampedBundle, error) {
	out := make([]keybundle.TimestampedBundle, 0, len(envs))
	for i, env := range envs {
		tb, err := keybundle.NewTimestampedBundle(int64(env.TimestampNs), env.Message)
		if err != nil {
			return nil, fmt.Errorf("envelope %d (timestamp_ns %d): %w", i, env.TimestampNs, err)
		}
		out = append(out, tb)
	}
	return out, nil
}

// ListContacts lists and decodes the contact bundles addr has published.
func (c *Client) ListContacts(ctx context.Context, addr keys.Address, opts ListOptions) ([]keybundle.TimestampedBundle, error) {
	envs, err := c.ListEnvelopes(ctx, ContactTopic(addr), opts)
	if err != nil {
		return nil, err
	}
	return DecodeContacts(envs)
}

// ListPrivateStoreTimestamps lists when addr stored its private key bundle.
// Payloads are encrypted and are not inspected.
func (c *Client) ListPrivateStoreTimestamps(ctx context.Context, addr keys.Address, opts ListOptions) ([]time.Time, error) {
	envs, err := c.ListEnvelopes(ctx, PrivateStoreTopic(addr), opts)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(envs))
	for i, env := range envs {
		out[i] = time.Unix(0, int64(env.TimestampNs)).UTC()
	}
	return out, nil
}
