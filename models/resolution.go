package models

// VideoResolution is the response for a catalog-id to video-id resolution.
// Cached is true when the id came from the persistent mapping store rather
// than a fresh search.
type VideoResolution struct {
	VideoID string `json:"videoId"`
	Cached  bool   `json:"cached"`
}

// StreamResolution is the response for a video-id to stream-URL resolution.
type StreamResolution struct {
	URL    string `json:"url"`
	Cached bool   `json:"cached"`
}

// Source records where a playback stage's value came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceInFlight Source = "inflight"
	SourceDirect   Source = "direct"
)

// PlaybackResult is what a play request ultimately returns: a playable URL
// plus per-stage provenance for observability.
type PlaybackResult struct {
	CatalogID       string `json:"catalogId"`
	VideoID         string `json:"videoId"`
	URL             string `json:"url"`
	VideoIDSource   Source `json:"videoIdSource"`
	StreamURLSource Source `json:"streamUrlSource"`
}

// BatchTrackResult is the per-track outcome of a batch resolve.
type BatchTrackResult struct {
	CatalogID string `json:"catalogId"`
	VideoID   string `json:"videoId,omitempty"`
	URL       string `json:"url,omitempty"`
	Cached    bool   `json:"cached"`
	Error     string `json:"error,omitempty"`
}

// BatchResolveResponse wraps the per-track results of a batch resolve.
type BatchResolveResponse struct {
	Results []BatchTrackResult `json:"results"`
}
