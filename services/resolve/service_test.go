package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tunebridge/models"
	"tunebridge/services/extract"
)

// fakeMappings is an in-memory MappingStore.
type fakeMappings struct {
	mu       sync.Mutex
	rows     map[string]models.Mapping
	getErr   error
	upserts  int
	upsertEr error
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{rows: make(map[string]models.Mapping)}
}

func (f *fakeMappings) Get(catalogID string) (*models.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if m, ok := f.rows[catalogID]; ok {
		return &m, nil
	}
	return nil, nil
}

func (f *fakeMappings) Upsert(catalogID, videoID string, durationMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertEr != nil {
		return f.upsertEr
	}
	f.rows[catalogID] = models.Mapping{CatalogID: catalogID, VideoID: videoID, DurationMs: durationMs, UpdatedAt: time.Now()}
	return nil
}

// fakeSearcher returns scripted candidates and counts calls.
type fakeSearcher struct {
	mu         sync.Mutex
	candidates []models.CandidateVideo
	err        error
	calls      int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]models.CandidateVideo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.candidates, f.err
}

// fakeExtractor returns a scripted URL or error and counts calls.
type fakeExtractor struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (f *fakeExtractor) Resolve(ctx context.Context, videoID string) (models.StreamURLEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.StreamURLEntry{}, f.err
	}
	return models.StreamURLEntry{VideoID: videoID, URL: f.url, IssuedAt: time.Now()}, nil
}

var testTrack = models.TrackRef{
	CatalogID:  "sp1",
	Title:      "Shape of You",
	Artist:     "Ed Sheeran",
	DurationMs: 233713,
}

var goodCandidates = []models.CandidateVideo{
	{VideoID: "yt1", Title: "Ed Sheeran - Shape of You (Official Video)", DurationSeconds: 234},
}

func newTestService(m *fakeMappings, s *fakeSearcher, e *fakeExtractor) *Service {
	return NewService(m, s, e, Options{})
}

func TestResolveVideoID_MappingHit(t *testing.T) {
	mappings := newFakeMappings()
	mappings.rows["sp1"] = models.Mapping{CatalogID: "sp1", VideoID: "yt-known"}
	searcher := &fakeSearcher{}
	svc := newTestService(mappings, searcher, &fakeExtractor{})

	res, err := svc.ResolveVideoID(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("ResolveVideoID failed: %v", err)
	}
	if !res.Cached {
		t.Error("expected cached=true on mapping hit")
	}
	if res.VideoID != "yt-known" {
		t.Errorf("expected mapped video id, got %q", res.VideoID)
	}
	if searcher.calls != 0 {
		t.Errorf("mapping hit must not search, got %d calls", searcher.calls)
	}
}

func TestResolveVideoID_MissThenIdempotent(t *testing.T) {
	mappings := newFakeMappings()
	searcher := &fakeSearcher{candidates: goodCandidates}
	svc := newTestService(mappings, searcher, &fakeExtractor{})

	first, err := svc.ResolveVideoID(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("first ResolveVideoID failed: %v", err)
	}
	if first.Cached {
		t.Error("first resolution should be cached=false")
	}
	if first.VideoID != "yt1" {
		t.Errorf("expected yt1, got %q", first.VideoID)
	}

	second, err := svc.ResolveVideoID(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("second ResolveVideoID failed: %v", err)
	}
	if !second.Cached {
		t.Error("second resolution should be cached=true")
	}
	if second.VideoID != first.VideoID {
		t.Errorf("expected same video id, got %q then %q", first.VideoID, second.VideoID)
	}
	if searcher.calls != 1 {
		t.Errorf("expected exactly one search across both calls, got %d", searcher.calls)
	}
}

func TestResolveVideoID_NoMatch(t *testing.T) {
	mappings := newFakeMappings()
	searcher := &fakeSearcher{candidates: []models.CandidateVideo{
		{VideoID: "x", Title: "Random Unrelated Video", DurationSeconds: 50},
	}}
	svc := newTestService(mappings, searcher, &fakeExtractor{})

	_, err := svc.ResolveVideoID(context.Background(), testTrack)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	if mappings.upserts != 0 {
		t.Error("no-match must not write a mapping")
	}
}

func TestResolveVideoID_NoMatchIsNegativeCached(t *testing.T) {
	mappings := newFakeMappings()
	searcher := &fakeSearcher{candidates: nil}
	svc := newTestService(mappings, searcher, &fakeExtractor{})

	if _, err := svc.ResolveVideoID(context.Background(), testTrack); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	if _, err := svc.ResolveVideoID(context.Background(), testTrack); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch from negative cache, got %v", err)
	}
	if searcher.calls != 1 {
		t.Errorf("expected 1 search (second served from negative cache), got %d", searcher.calls)
	}
}

func TestResolveVideoID_NegativeEntryExpires(t *testing.T) {
	mappings := newFakeMappings()
	searcher := &fakeSearcher{candidates: nil}
	svc := newTestService(mappings, searcher, &fakeExtractor{})

	now := time.Now()
	svc.negative.now = func() time.Time { return now }

	if _, err := svc.ResolveVideoID(context.Background(), testTrack); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}

	searcher.mu.Lock()
	searcher.candidates = goodCandidates
	searcher.mu.Unlock()
	now = now.Add(NegativeTTL + time.Minute)

	res, err := svc.ResolveVideoID(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("expected fresh resolution after negative TTL, got %v", err)
	}
	if res.VideoID != "yt1" {
		t.Errorf("expected yt1, got %q", res.VideoID)
	}
}

func TestResolveVideoID_StoreErrorDegradesToMiss(t *testing.T) {
	mappings := newFakeMappings()
	mappings.getErr = fmt.Errorf("db locked")
	searcher := &fakeSearcher{candidates: goodCandidates}
	svc := newTestService(mappings, searcher, &fakeExtractor{})

	res, err := svc.ResolveVideoID(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("store trouble must not fail resolution: %v", err)
	}
	if res.VideoID != "yt1" {
		t.Errorf("expected yt1, got %q", res.VideoID)
	}
}

func TestResolveStreamURL_CachesAndReports(t *testing.T) {
	extractor := &fakeExtractor{url: "https://cdn.example.com/a.m4a"}
	svc := newTestService(newFakeMappings(), &fakeSearcher{}, extractor)

	first, err := svc.ResolveStreamURL(context.Background(), "yt1")
	if err != nil {
		t.Fatalf("first ResolveStreamURL failed: %v", err)
	}
	if first.Cached {
		t.Error("first resolution should be cached=false")
	}

	second, err := svc.ResolveStreamURL(context.Background(), "yt1")
	if err != nil {
		t.Fatalf("second ResolveStreamURL failed: %v", err)
	}
	if !second.Cached {
		t.Error("second resolution should be cached=true")
	}
	if second.URL != first.URL {
		t.Errorf("expected same URL, got %q then %q", first.URL, second.URL)
	}
	if extractor.calls != 1 {
		t.Errorf("expected one extraction, got %d", extractor.calls)
	}
}

func TestResolveStreamURL_TerminalFailureNegativeCached(t *testing.T) {
	extractor := &fakeExtractor{err: &extract.Error{Kind: extract.KindRestricted, Message: "private video"}}
	svc := newTestService(newFakeMappings(), &fakeSearcher{}, extractor)

	if _, err := svc.ResolveStreamURL(context.Background(), "yt1"); extract.KindOf(err) != extract.KindRestricted {
		t.Fatalf("expected restricted error, got %v", err)
	}
	if _, err := svc.ResolveStreamURL(context.Background(), "yt1"); extract.KindOf(err) != extract.KindRestricted {
		t.Fatalf("expected restricted error from negative cache, got %v", err)
	}
	if extractor.calls != 1 {
		t.Errorf("expected 1 extraction (second served negative), got %d", extractor.calls)
	}
}

func TestResolveStreamURL_TransientFailureNotNegativeCached(t *testing.T) {
	extractor := &fakeExtractor{err: &extract.Error{Kind: extract.KindFailed, Message: "network blip"}}
	svc := newTestService(newFakeMappings(), &fakeSearcher{}, extractor)

	svc.ResolveStreamURL(context.Background(), "yt1")
	svc.ResolveStreamURL(context.Background(), "yt1")

	if extractor.calls != 2 {
		t.Errorf("transient failures must be retried fresh, got %d extractions", extractor.calls)
	}
}

func TestResolveTrack_StreamFailureKeepsMapping(t *testing.T) {
	mappings := newFakeMappings()
	searcher := &fakeSearcher{candidates: goodCandidates}
	extractor := &fakeExtractor{err: &extract.Error{Kind: extract.KindFailed, Message: "boom"}}
	svc := newTestService(mappings, searcher, extractor)

	vid, _, err := svc.ResolveTrack(context.Background(), testTrack)
	if err == nil {
		t.Fatal("expected stream resolution to fail")
	}
	if vid.VideoID != "yt1" {
		t.Errorf("id resolution should have succeeded, got %+v", vid)
	}

	// the mapping survived, so the next attempt skips the search entirely
	extractor.mu.Lock()
	extractor.err = nil
	extractor.url = "https://cdn.example.com/a.m4a"
	extractor.mu.Unlock()

	vid2, stream, err := svc.ResolveTrack(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !vid2.Cached {
		t.Error("retry should hit the persisted mapping")
	}
	if stream.URL == "" {
		t.Error("expected a stream URL on retry")
	}
	if searcher.calls != 1 {
		t.Errorf("expected one search total, got %d", searcher.calls)
	}
}
