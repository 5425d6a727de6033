package network

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"xdao.co/keyaudit/keybundle"
	"xdao.co/keyaudit/keys"
)

// FetchPair lists addr's contacts from a and b in parallel. The first error
// cancels the other fetch.
func FetchPair(ctx context.Context, a, b *Client, addr keys.Address, opts ListOptions) (seqA, seqB []keybundle.TimestampedBundle, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		seqA, err = a.ListContacts(ctx, addr, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", labelOf(a, "a"), err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		seqB, err = b.ListContacts(ctx, addr, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", labelOf(b, "b"), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return seqA, seqB, nil
}

func labelOf(c *Client, fallback string) string {
	if c.env != "" {
		return string(c.env)
	}
	return fallback
}
