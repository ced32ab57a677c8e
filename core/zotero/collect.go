package zotero

import (
	"context"
	"encoding/json"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExtraPages returns how many calls beyond the first are needed for total results.
func ExtraPages(total int) int {
	if total <= PageLimit {
		return 0
	}
	return int(math.Ceil(float64(total)/float64(PageLimit))) - 1
}

// CollectRemaining fetches every page after the first one, concurrently, and
// returns their entities concatenated in page order. Pagination is assumed
// stable on the remote side; nothing is deduplicated across pages.
func (c *Client) CollectRemaining(ctx context.Context, first PageRequest, total int) ([]json.RawMessage, error) {
	extra := ExtraPages(total)
	if extra == 0 {
		return nil, nil
	}

	pages := make([][]json.RawMessage, extra)
	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= extra; i++ {
		pr := first
		pr.Start = PageLimit * i
		pr.Limit = PageLimit
		slot := i - 1
		g.Go(func() error {
			page, err := c.FetchPage(gctx, pr)
			if err != nil {
				return err
			}
			pages[slot] = page.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, total-PageLimit)
	for _, p := range pages {
		out = append(out, p...)
	}

	c.logger.Debug("Collected additional pages",
		zap.String("endpoint", first.Endpoint),
		zap.Int("pages", extra),
		zap.Int("entities", len(out)))

	return out, nil
}

// FetchAll fetches the first page and, when the total exceeds PageLimit, every remaining page.
// The returned page carries the metadata of the first call.
func (c *Client) FetchAll(ctx context.Context, pr PageRequest) (Page, error) {
	pr.Start = 0
	first, err := c.FetchPage(ctx, pr)
	if err != nil {
		return Page{}, err
	}
	if first.TotalResults <= PageLimit {
		return first, nil
	}
	rest, err := c.CollectRemaining(ctx, pr, first.TotalResults)
	if err != nil {
		return Page{Data: first.Data, TotalResults: first.TotalResults, LastModifiedVersion: first.LastModifiedVersion}, err
	}
	first.Data = append(first.Data, rest...)
	return first, nil
}
