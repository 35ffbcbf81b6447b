// Package prefetch warms a session's caches for a ranked candidate list
// before the user asks to play anything, with bounded concurrency so the
// speculative work never saturates the external services.
package prefetch

import (
	"context"
	"log"
	"sync"
	"time"

	"tunebridge/models"
)

const (
	// MaxConcurrent caps simultaneous background resolutions. Each one may
	// fan out into a platform search plus an extractor process, so this is a
	// throttle on the external services, not on local CPU.
	MaxConcurrent = 2

	// MaxPrefetch is how many leading candidates of a new list get queued.
	MaxPrefetch = 15

	// drainDelay spaces out item starts to avoid bursts.
	drainDelay = 100 * time.Millisecond
)

// Resolver is the resolution path the scheduler drives; it is the same path
// a direct request takes.
type Resolver interface {
	ResolveVideoID(ctx context.Context, track models.TrackRef) (models.VideoResolution, error)
	ResolveStreamURL(ctx context.Context, videoID string) (models.StreamResolution, error)
}

// Scheduler prefetches video ids and stream URLs for a session's current
// candidate list. All mutation happens under one mutex; the goroutines it
// starts only re-enter through settle.
type Scheduler struct {
	resolver Resolver
	cache    *SessionCache

	mu       sync.Mutex
	queue    []models.TrackRef
	inflight map[string]*Handle
	running  int
	stopped  bool

	maxConcurrent int
	maxPrefetch   int
	delay         time.Duration
}

// NewScheduler creates a scheduler that warms the given session cache.
func NewScheduler(resolver Resolver, cache *SessionCache) *Scheduler {
	return &Scheduler{
		resolver:      resolver,
		cache:         cache,
		inflight:      make(map[string]*Handle),
		maxConcurrent: MaxConcurrent,
		maxPrefetch:   MaxPrefetch,
		delay:         drainDelay,
	}
}

// SetCandidates replaces the candidate list. Bookkeeping for the previous
// list is discarded; already-running resolutions are not cancelled and still
// populate caches when they finish, but their completion no longer schedules
// anything from the old list. The first MaxPrefetch candidates that are
// neither cached nor in flight are enqueued.
func (s *Scheduler) SetCandidates(tracks []models.TrackRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.queue = s.queue[:0]

	limit := s.maxPrefetch
	if len(tracks) < limit {
		limit = len(tracks)
	}
	for _, track := range tracks[:limit] {
		if track.CatalogID == "" {
			continue
		}
		if _, ok := s.inflight[track.CatalogID]; ok {
			continue
		}
		if vid, ok := s.cache.VideoID(track.CatalogID); ok {
			if _, fresh := s.cache.StreamURL(vid); fresh {
				continue
			}
		}
		s.queue = append(s.queue, track)
	}

	log.Printf("[prefetch] candidate list replaced: %d queued, %d in flight", len(s.queue), len(s.inflight))
	s.drainLocked()
}

// Lookup returns the in-flight handle for a catalog id, if any. Playback can
// join it instead of starting duplicate work.
func (s *Scheduler) Lookup(catalogID string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.inflight[catalogID]
	return h, ok
}

// InFlight reports how many resolutions are currently running.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop prevents any further scheduling. Running work settles normally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.queue = nil
}

// drainLocked starts queued items while worker slots are free. Callers must
// hold s.mu.
func (s *Scheduler) drainLocked() {
	for s.running < s.maxConcurrent && len(s.queue) > 0 && !s.stopped {
		track := s.queue[0]
		s.queue = s.queue[1:]

		if _, ok := s.inflight[track.CatalogID]; ok {
			continue
		}

		handle := newHandle(track.CatalogID)
		s.inflight[track.CatalogID] = handle
		s.running++
		go s.resolveItem(track, handle)
	}
}

// resolveItem resolves one candidate end to end: video id, then the chained
// stream URL. Failures are logged and dropped; the item only gets another
// chance if it reappears in a later candidate list.
func (s *Scheduler) resolveItem(track models.TrackRef, handle *Handle) {
	ctx := context.Background()

	var videoID, streamURL string
	vid, err := s.resolver.ResolveVideoID(ctx, track)
	if err == nil {
		videoID = vid.VideoID
		s.cache.SetVideoID(track.CatalogID, videoID)

		var stream models.StreamResolution
		stream, err = s.resolver.ResolveStreamURL(ctx, videoID)
		if err == nil {
			streamURL = stream.URL
			s.cache.SetStreamURL(videoID, streamURL)
		}
	}

	if err != nil {
		log.Printf("[prefetch] %s failed: %v", track.CatalogID, err)
	} else {
		log.Printf("[prefetch] warmed %s -> %s", track.CatalogID, videoID)
	}

	handle.settle(videoID, streamURL, err)

	s.mu.Lock()
	if s.inflight[track.CatalogID] == handle {
		delete(s.inflight, track.CatalogID)
	}
	s.running--
	more := len(s.queue) > 0 && !s.stopped
	s.mu.Unlock()

	if more {
		time.Sleep(s.delay)
		s.mu.Lock()
		s.drainLocked()
		s.mu.Unlock()
	}
}
