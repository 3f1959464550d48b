// Package sources implements the ingestion adapters. Each adapter fetches
// raw records from one source class, normalizes them, and reports per-record
// failures without aborting the batch.
package sources

import (
	"context"
	"time"

	"trendwatch/internal/core"
)

// FetchResult is one adapter's output for a cycle.
type FetchResult struct {
	Posts   []core.Post
	Fetched int
	Skipped int
	Errors  []string
}

// Adapter is one ingestion source. Fetch returns normalized posts; the error
// return is reserved for total failure (auth, transport), while per-record
// problems go into FetchResult.Errors.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, limit int) (FetchResult, error)
}

// sleepCtx pauses between upstream requests without outliving the context.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
