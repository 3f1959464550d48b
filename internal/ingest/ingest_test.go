package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trendwatch/internal/core"
	"trendwatch/internal/sources"
)

type fakeAdapter struct {
	name   string
	result sources.FetchResult
	err    error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, limit int) (sources.FetchResult, error) {
	return f.result, f.err
}

type recordingWriter struct {
	mu      sync.Mutex
	posts   []core.Post
	failIDs map[string]bool
}

func (w *recordingWriter) UpsertPost(post core.Post) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failIDs[post.ID] {
		return errors.New("disk full")
	}
	w.posts = append(w.posts, post)
	return nil
}

func post(id string, kind core.SourceKind) core.Post {
	return core.Post{ID: id, SourceKind: kind, Text: "text long enough for a post", CreatedAt: time.Now()}
}

func TestRunHappyPath(t *testing.T) {
	reddit := &fakeAdapter{
		name: "reddit",
		result: sources.FetchResult{
			Posts:   []core.Post{post("discussion_1", core.SourceDiscussion), post("discussion_2", core.SourceDiscussion)},
			Fetched: 3,
			Skipped: 1,
		},
	}
	rss := &fakeAdapter{
		name: "rss",
		result: sources.FetchResult{
			Posts:   []core.Post{post("feed_1", core.SourceFeed)},
			Fetched: 1,
		},
	}

	writer := &recordingWriter{}
	cycle := NewCoordinator(writer, reddit, rss).Run(context.Background(), 0)

	if len(cycle.Sources) != 2 {
		t.Fatalf("Expected 2 source results, got %d", len(cycle.Sources))
	}
	if cycle.TotalIngested() != 3 {
		t.Errorf("Expected 3 ingested, got %d", cycle.TotalIngested())
	}
	if cycle.HasErrors() {
		t.Errorf("Expected no errors, got %+v", cycle.Sources)
	}
	if len(writer.posts) != 3 {
		t.Errorf("Expected 3 posts written, got %d", len(writer.posts))
	}

	byName := map[string]core.SourceResult{}
	for _, sr := range cycle.Sources {
		byName[sr.Source] = sr
	}
	if byName["reddit"].Ingested != 2 || byName["reddit"].Skipped != 1 {
		t.Errorf("Unexpected reddit result %+v", byName["reddit"])
	}
	if byName["rss"].Ingested != 1 {
		t.Errorf("Unexpected rss result %+v", byName["rss"])
	}
}

func TestRunAdapterFailureContained(t *testing.T) {
	broken := &fakeAdapter{name: "reddit", err: fmt.Errorf("authentication failed")}
	healthy := &fakeAdapter{
		name:   "rss",
		result: sources.FetchResult{Posts: []core.Post{post("feed_1", core.SourceFeed)}, Fetched: 1},
	}

	writer := &recordingWriter{}
	cycle := NewCoordinator(writer, broken, healthy).Run(context.Background(), 0)

	if !cycle.HasErrors() {
		t.Error("Expected cycle to report errors")
	}
	if cycle.TotalIngested() != 1 {
		t.Errorf("Healthy adapter should still ingest, got %d", cycle.TotalIngested())
	}

	for _, sr := range cycle.Sources {
		if sr.Source == "reddit" && len(sr.Errors) != 1 {
			t.Errorf("Expected reddit failure recorded, got %+v", sr)
		}
		if sr.Source == "rss" && len(sr.Errors) != 0 {
			t.Errorf("Expected rss clean, got %+v", sr)
		}
	}
}

func TestRunWriteFailureRecorded(t *testing.T) {
	adapter := &fakeAdapter{
		name: "rss",
		result: sources.FetchResult{
			Posts:   []core.Post{post("feed_ok", core.SourceFeed), post("feed_bad", core.SourceFeed)},
			Fetched: 2,
		},
	}

	writer := &recordingWriter{failIDs: map[string]bool{"feed_bad": true}}
	cycle := NewCoordinator(writer, adapter).Run(context.Background(), 0)

	sr := cycle.Sources[0]
	if sr.Ingested != 1 {
		t.Errorf("Expected 1 ingested, got %d", sr.Ingested)
	}
	if len(sr.Errors) != 1 {
		t.Errorf("Expected 1 write error recorded, got %v", sr.Errors)
	}
}

func TestRunNoAdapters(t *testing.T) {
	cycle := NewCoordinator(&recordingWriter{}).Run(context.Background(), 0)
	if len(cycle.Sources) != 0 || cycle.TotalIngested() != 0 {
		t.Errorf("Expected empty cycle, got %+v", cycle)
	}
}
