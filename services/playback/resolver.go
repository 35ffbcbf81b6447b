// Package playback is the single entry point a consumer calls to get a
// playable URL now. It prefers warm session caches, then joins in-flight
// prefetch work under a timeout, and only then resolves directly, so
// interactive playback is never blocked longer than the join budget by
// background work while still benefiting from it when it is fast enough.
package playback

import (
	"context"
	"log"
	"time"

	"tunebridge/models"
	"tunebridge/services/prefetch"
)

// JoinTimeout bounds how long a play request waits on in-flight background
// work before abandoning it and resolving directly. The abandoned work keeps
// running and still writes caches for future benefit.
const JoinTimeout = 5 * time.Second

// Resolver is the direct resolution path, shared with the prefetcher.
type Resolver interface {
	ResolveVideoID(ctx context.Context, track models.TrackRef) (models.VideoResolution, error)
	ResolveStreamURL(ctx context.Context, videoID string) (models.StreamResolution, error)
}

// InFlightRegistry exposes joinable background work.
type InFlightRegistry interface {
	Lookup(catalogID string) (*prefetch.Handle, bool)
}

// Service resolves play requests for one session.
type Service struct {
	resolver    Resolver
	cache       *prefetch.SessionCache
	inflight    InFlightRegistry
	joinTimeout time.Duration
}

// NewService creates a playback resolver over a session's cache and
// in-flight registry.
func NewService(resolver Resolver, cache *prefetch.SessionCache, inflight InFlightRegistry) *Service {
	return &Service{
		resolver:    resolver,
		cache:       cache,
		inflight:    inflight,
		joinTimeout: JoinTimeout,
	}
}

// Play resolves a track to a playable URL: CheckCache, JoinInFlight,
// DirectResolve. A join timeout is control flow, not an error; hard errors
// (no match, extraction failures) surface unchanged.
func (s *Service) Play(ctx context.Context, track models.TrackRef) (models.PlaybackResult, error) {
	result := models.PlaybackResult{CatalogID: track.CatalogID}

	// CheckCache: both stages warm means near-zero latency.
	if videoID, ok := s.cache.VideoID(track.CatalogID); ok {
		result.VideoID = videoID
		result.VideoIDSource = models.SourceCache
		if url, ok := s.cache.StreamURL(videoID); ok {
			result.URL = url
			result.StreamURLSource = models.SourceCache
			return result, nil
		}
	}

	// JoinInFlight: background work for this track may already be under way;
	// await it bounded by the join budget rather than duplicating it. The
	// prefetcher re-enqueues tracks whose id is cached but whose stream URL
	// has gone stale, so a joinable handle can exist even when the id stage
	// was a cache hit.
	if result.URL == "" {
		if handle, ok := s.inflight.Lookup(track.CatalogID); ok {
			videoID, url := s.join(ctx, handle)
			if videoID != "" && result.VideoID == "" {
				result.VideoID = videoID
				result.VideoIDSource = models.SourceInFlight
				s.cache.SetVideoID(track.CatalogID, videoID)
			}
			if url != "" && videoID == result.VideoID {
				result.URL = url
				result.StreamURLSource = models.SourceInFlight
				s.cache.SetStreamURL(videoID, url)
				return result, nil
			}
		}
	}

	// DirectResolve: whatever is still missing is resolved here and now,
	// ignoring whatever the abandoned in-flight attempt eventually produces.
	if result.VideoID == "" {
		vid, err := s.resolver.ResolveVideoID(ctx, track)
		if err != nil {
			return models.PlaybackResult{}, err
		}
		result.VideoID = vid.VideoID
		result.VideoIDSource = models.SourceDirect
		s.cache.SetVideoID(track.CatalogID, vid.VideoID)
	}

	if result.URL == "" {
		if url, ok := s.cache.StreamURL(result.VideoID); ok {
			result.URL = url
			result.StreamURLSource = models.SourceCache
		} else {
			stream, err := s.resolver.ResolveStreamURL(ctx, result.VideoID)
			if err != nil {
				return models.PlaybackResult{}, err
			}
			result.URL = stream.URL
			result.StreamURLSource = models.SourceDirect
			s.cache.SetStreamURL(result.VideoID, stream.URL)
		}
	}

	return result, nil
}

// join waits for an in-flight handle within the join budget. On timeout or
// failure it returns whatever partial progress the handle made; the caller
// falls through to the direct path for the rest.
func (s *Service) join(ctx context.Context, handle *prefetch.Handle) (videoID, url string) {
	timer := time.NewTimer(s.joinTimeout)
	defer timer.Stop()

	select {
	case <-handle.Done():
		videoID, url, err := handle.Result()
		if err != nil {
			// An id-stage success with a stream-stage failure still saves the
			// direct path a search.
			log.Printf("[playback] joined work for %s failed: %v", handle.CatalogID, err)
			return videoID, ""
		}
		return videoID, url
	case <-timer.C:
		log.Printf("[playback] join timed out for %s after %s, falling back to direct resolve", handle.CatalogID, s.joinTimeout)
		return "", ""
	case <-ctx.Done():
		return "", ""
	}
}
