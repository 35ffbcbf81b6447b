// Package resolve is the server-facing orchestration that turns catalog
// tracks into video ids and video ids into playable stream URLs, layering
// the persistent mapping store, the fuzzy matcher, the extractor and the
// ephemeral URL cache.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tunebridge/models"
	"tunebridge/services/extract"
	"tunebridge/services/match"
)

// ErrNoMatch means no search candidate cleared the matcher's confidence
// floor. Terminal: the track is unavailable until the platform's inventory
// changes.
var ErrNoMatch = errors.New("no confident match found")

// searchLimit is how many ranked candidates the matcher considers per miss.
const searchLimit = 5

// MappingStore is the persistent catalog-id to video-id association.
type MappingStore interface {
	Get(catalogID string) (*models.Mapping, error)
	Upsert(catalogID, videoID string, durationMs int64) error
}

// Searcher queries the external video platform.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.CandidateVideo, error)
}

// Extractor turns a video id into a signed stream URL.
type Extractor interface {
	Resolve(ctx context.Context, videoID string) (models.StreamURLEntry, error)
}

// Service composes the resolution pipeline.
type Service struct {
	mappings  MappingStore
	searcher  Searcher
	extractor Extractor
	urls      *URLCache
	negative  *negativeCache
}

// Options tune the service's cache windows. Zero values mean defaults.
type Options struct {
	StreamURLTTL time.Duration
	NegativeTTL  time.Duration
}

// NewService wires the resolution pipeline.
func NewService(mappings MappingStore, searcher Searcher, extractor Extractor, opts Options) *Service {
	return &Service{
		mappings:  mappings,
		searcher:  searcher,
		extractor: extractor,
		urls:      NewURLCache(opts.StreamURLTTL),
		negative:  newNegativeCache(opts.NegativeTTL),
	}
}

// ResolveVideoID resolves a catalog track to a video id. The persistent
// mapping wins regardless of stream-URL freshness; on a miss the track's
// metadata is matched against a fresh platform search and the result is
// persisted.
func (s *Service) ResolveVideoID(ctx context.Context, track models.TrackRef) (models.VideoResolution, error) {
	if track.CatalogID == "" {
		return models.VideoResolution{}, fmt.Errorf("catalog id is required")
	}

	mapping, err := s.mappings.Get(track.CatalogID)
	if err != nil {
		// Store trouble degrades to a miss; resolution availability beats
		// cache consistency.
		log.Printf("[resolve] mapping lookup failed for %s, treating as miss: %v", track.CatalogID, err)
	}
	if mapping != nil && mapping.VideoID != "" {
		return models.VideoResolution{VideoID: mapping.VideoID, Cached: true}, nil
	}

	if negErr, ok := s.negative.get("video:" + track.CatalogID); ok {
		log.Printf("[resolve] negative cache hit for %s", track.CatalogID)
		return models.VideoResolution{}, negErr
	}

	query := track.Title + " " + track.Artist
	candidates, err := s.searcher.Search(ctx, query, searchLimit)
	if err != nil {
		return models.VideoResolution{}, fmt.Errorf("video search: %w", err)
	}

	result, ok := match.Best(track, candidates)
	if !ok {
		log.Printf("[resolve] no match for %s (%q, %d candidates)", track.CatalogID, query, len(candidates))
		s.negative.set("video:"+track.CatalogID, ErrNoMatch)
		return models.VideoResolution{}, ErrNoMatch
	}

	log.Printf("[resolve] matched %s -> %s (score %d)", track.CatalogID, result.VideoID, result.Score)

	durationMs := track.DurationMs
	if durationMs == 0 && result.DurationSeconds > 0 {
		durationMs = result.DurationSeconds * 1000
	}
	if err := s.mappings.Upsert(track.CatalogID, result.VideoID, durationMs); err != nil {
		// The caller still gets its answer; the next request just re-matches.
		log.Printf("[resolve] mapping upsert failed for %s: %v", track.CatalogID, err)
	}

	return models.VideoResolution{VideoID: result.VideoID, Cached: false}, nil
}

// ResolveStreamURL resolves a video id to a playable stream URL, consulting
// the ephemeral cache first. Extraction failures propagate unchanged;
// terminal ones are negative-cached.
func (s *Service) ResolveStreamURL(ctx context.Context, videoID string) (models.StreamResolution, error) {
	if videoID == "" {
		return models.StreamResolution{}, fmt.Errorf("video id is required")
	}

	if entry, ok := s.urls.Get(videoID); ok {
		return models.StreamResolution{URL: entry.URL, Cached: true}, nil
	}

	if negErr, ok := s.negative.get("stream:" + videoID); ok {
		log.Printf("[resolve] negative cache hit for stream %s", videoID)
		return models.StreamResolution{}, negErr
	}

	entry, err := s.extractor.Resolve(ctx, videoID)
	if err != nil {
		if extract.IsTerminal(err) {
			s.negative.set("stream:"+videoID, err)
		}
		return models.StreamResolution{}, err
	}

	s.urls.Set(entry)
	return models.StreamResolution{URL: entry.URL, Cached: false}, nil
}

// ResolveTrack composes both stages. A stream failure after a successful id
// resolution does not disturb the persisted mapping; the next attempt skips
// straight to retrying extraction.
func (s *Service) ResolveTrack(ctx context.Context, track models.TrackRef) (models.VideoResolution, models.StreamResolution, error) {
	vid, err := s.ResolveVideoID(ctx, track)
	if err != nil {
		return models.VideoResolution{}, models.StreamResolution{}, err
	}
	stream, err := s.ResolveStreamURL(ctx, vid.VideoID)
	if err != nil {
		return vid, models.StreamResolution{}, err
	}
	return vid, stream, nil
}
