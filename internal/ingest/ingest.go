// Package ingest runs one ingestion cycle: all source adapters fetch in
// parallel and a single writer goroutine persists their posts, so the
// sqlite store never sees concurrent writes.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trendwatch/internal/core"
	"trendwatch/internal/logger"
	"trendwatch/internal/sources"
)

// adapterTimeout bounds one adapter's share of a cycle.
const adapterTimeout = 60 * time.Second

// PostWriter is the slice of the store the coordinator needs.
type PostWriter interface {
	UpsertPost(post core.Post) error
}

// Coordinator fans adapters out and serializes their writes.
type Coordinator struct {
	writer   PostWriter
	adapters []sources.Adapter
}

// NewCoordinator builds a coordinator over the given adapters.
func NewCoordinator(writer PostWriter, adapters ...sources.Adapter) *Coordinator {
	return &Coordinator{writer: writer, adapters: adapters}
}

type taggedPost struct {
	source string
	post   core.Post
}

type adapterOutcome struct {
	name   string
	result sources.FetchResult
	err    error
}

// Run executes one full cycle. Every adapter runs even when others fail;
// failures surface in the per-source results, never as a Run error.
func (c *Coordinator) Run(ctx context.Context, limitPerSource int) core.CycleResult {
	start := time.Now()

	posts := make(chan taggedPost)
	outcomes := make(chan adapterOutcome, len(c.adapters))

	var wg sync.WaitGroup
	for _, adapter := range c.adapters {
		wg.Add(1)
		go func(adapter sources.Adapter) {
			defer wg.Done()

			adapterCtx, cancel := context.WithTimeout(ctx, adapterTimeout)
			defer cancel()

			result, err := adapter.Fetch(adapterCtx, limitPerSource)
			for _, post := range result.Posts {
				select {
				case posts <- taggedPost{source: adapter.Name(), post: post}:
				case <-ctx.Done():
					outcomes <- adapterOutcome{name: adapter.Name(), result: result, err: ctx.Err()}
					return
				}
			}
			outcomes <- adapterOutcome{name: adapter.Name(), result: result, err: err}
		}(adapter)
	}

	go func() {
		wg.Wait()
		close(posts)
	}()

	// Single writer: all database writes happen on this goroutine
	ingested := map[string]int{}
	writeErrors := map[string][]string{}
	for tp := range posts {
		if err := c.writer.UpsertPost(tp.post); err != nil {
			writeErrors[tp.source] = append(writeErrors[tp.source],
				fmt.Sprintf("store post %s: %v", tp.post.ID, err))
			continue
		}
		ingested[tp.source]++
	}

	cycle := core.CycleResult{Duration: time.Since(start)}
	for i := 0; i < len(c.adapters); i++ {
		outcome := <-outcomes
		sr := core.SourceResult{
			Source:   outcome.name,
			Fetched:  outcome.result.Fetched,
			Ingested: ingested[outcome.name],
			Skipped:  outcome.result.Skipped,
			Errors:   append(outcome.result.Errors, writeErrors[outcome.name]...),
		}
		if outcome.err != nil {
			sr.Errors = append(sr.Errors, outcome.err.Error())
		}
		cycle.Sources = append(cycle.Sources, sr)

		logger.Info("Source cycle complete",
			"source", sr.Source,
			"fetched", sr.Fetched,
			"ingested", sr.Ingested,
			"skipped", sr.Skipped,
			"errors", len(sr.Errors))
	}

	return cycle
}
