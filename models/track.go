package models

import "time"

// TrackRef identifies a track in the primary catalog along with the metadata
// used for fuzzy matching. It is supplied by the caller and never mutated.
type TrackRef struct {
	CatalogID  string `json:"catalogId"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// CandidateVideo is one result from the video-platform search. Candidates
// only live long enough to be scored by the matcher.
type CandidateVideo struct {
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	ChannelName     string `json:"channelName,omitempty"`
	DurationSeconds int64  `json:"durationSeconds,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
}

// MatchResult is the winning candidate after scoring.
type MatchResult struct {
	VideoID         string
	Score           int
	DurationSeconds int64
}

// Mapping is the persisted catalog-id to video-id association. It is created
// on the first successful match and overwritten on any subsequent re-match.
type Mapping struct {
	CatalogID  string    `json:"catalogId"`
	VideoID    string    `json:"videoId"`
	DurationMs int64     `json:"durationMs"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StreamURLEntry is a short-lived playable URL for one video. The URL is
// platform-signed and only valid for a bounded window after IssuedAt.
type StreamURLEntry struct {
	VideoID  string    `json:"videoId"`
	URL      string    `json:"url"`
	IssuedAt time.Time `json:"issuedAt"`
}
