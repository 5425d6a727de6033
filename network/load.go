package network

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchResult tallies the outcomes of one load batch. Keys are
// "results <n>" for a successful listing of n envelopes, or the error text.
type BatchResult struct {
	Index   int
	Started time.Time
	Tallies map[string]int
}

// Outcomes returns the tally keys in sorted order.
func (r BatchResult) Outcomes() []string {
	out := make([]string, 0, len(r.Tallies))
	for k := range r.Tallies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadProbe runs batchCount sequential batches of batchSize parallel
// listings of topic. Failed listings are tallied, not returned.
func (c *Client) LoadProbe(ctx context.Context, topic string, opts ListOptions, batchSize, batchCount int) ([]BatchResult, error) {
	if batchSize < 1 || batchCount < 1 {
		return nil, fmt.Errorf("batch size and count must be positive (got %d, %d)", batchSize, batchCount)
	}
	c.logger.Info("load probe starting", "topic", topic, "batch_size", batchSize, "batch_count", batchCount)

	results := make([]BatchResult, 0, batchCount)
	for i := 0; i < batchCount; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := BatchResult{Index: i, Started: time.Now().UTC(), Tallies: make(map[string]int)}
		var mu sync.Mutex

		var g errgroup.Group
		for j := 0; j < batchSize; j++ {
			g.Go(func() error {
				envs, err := c.ListEnvelopes(ctx, topic, opts)
				key := fmt.Sprintf("results %d", len(envs))
				if err != nil {
					key = err.Error()
				}
				mu.Lock()
				res.Tallies[key]++
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		c.logger.Info("load batch finished", "batch", i, "outcomes", len(res.Tallies))
		results = append(results, res)
	}
	return results, nil
}
