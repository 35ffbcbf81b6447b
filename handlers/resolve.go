package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sourcegraph/conc/pool"

	"tunebridge/models"
	"tunebridge/services/extract"
	resolvesvc "tunebridge/services/resolve"
	"tunebridge/utils"
)

// batchConcurrency caps how many tracks a batch request resolves at once.
const batchConcurrency = 2

// maxBatchTracks bounds one batch request.
const maxBatchTracks = 25

type resolveService interface {
	ResolveVideoID(ctx context.Context, track models.TrackRef) (models.VideoResolution, error)
	ResolveStreamURL(ctx context.Context, videoID string) (models.StreamResolution, error)
	ResolveTrack(ctx context.Context, track models.TrackRef) (models.VideoResolution, models.StreamResolution, error)
}

// ResolveHandler exposes the resolution pipeline over HTTP.
type ResolveHandler struct {
	Service resolveService
}

var _ resolveService = (*resolvesvc.Service)(nil)

func NewResolveHandler(s resolveService) *ResolveHandler {
	return &ResolveHandler{Service: s}
}

// ResolveVideo handles GET /resolve/video/{catalogId}?title&artist&durationMs.
func (h *ResolveHandler) ResolveVideo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	track := models.TrackRef{
		CatalogID: vars["catalogId"],
		Title:     r.URL.Query().Get("title"),
		Artist:    r.URL.Query().Get("artist"),
	}
	if ms := r.URL.Query().Get("durationMs"); ms != "" {
		if parsed, err := strconv.ParseInt(ms, 10, 64); err == nil && parsed > 0 {
			track.DurationMs = parsed
		}
	}

	if track.CatalogID == "" || track.Title == "" {
		writeError(w, http.StatusBadRequest, "catalogId and title are required")
		return
	}

	resolution, err := h.Service.ResolveVideoID(r.Context(), track)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resolution)
}

// ResolveStream handles GET /resolve/stream/{videoId}.
func (h *ResolveHandler) ResolveStream(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["videoId"]
	if !utils.IsValidVideoID(videoID) {
		writeError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	resolution, err := h.Service.ResolveStreamURL(r.Context(), videoID)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resolution)
}

// ResolveBatch handles POST /resolve/batch. Tracks resolve concurrently but
// bounded, mirroring the prefetcher's throttle on the external services.
func (h *ResolveHandler) ResolveBatch(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Tracks []models.TrackRef `json:"tracks"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(request.Tracks) == 0 {
		writeError(w, http.StatusBadRequest, "tracks are required")
		return
	}
	if len(request.Tracks) > maxBatchTracks {
		writeError(w, http.StatusBadRequest, "too many tracks in one batch")
		return
	}

	log.Printf("[resolve-handler] batch resolve for %d tracks", len(request.Tracks))

	results := make([]models.BatchTrackResult, len(request.Tracks))
	p := pool.New().WithMaxGoroutines(batchConcurrency)
	for i, track := range request.Tracks {
		p.Go(func() {
			results[i] = h.resolveOne(r.Context(), track)
		})
	}
	p.Wait()

	writeJSON(w, http.StatusOK, models.BatchResolveResponse{Results: results})
}

func (h *ResolveHandler) resolveOne(ctx context.Context, track models.TrackRef) models.BatchTrackResult {
	result := models.BatchTrackResult{CatalogID: track.CatalogID}
	if track.CatalogID == "" || track.Title == "" {
		result.Error = "catalogId and title are required"
		return result
	}

	vid, stream, err := h.Service.ResolveTrack(ctx, track)
	result.VideoID = vid.VideoID
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.URL = stream.URL
	result.Cached = vid.Cached && stream.Cached
	return result
}

// writeResolveError maps pipeline errors onto the HTTP surface: no-match is
// a 404, extraction failures keep their classification, search trouble is a
// bad gateway.
func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resolvesvc.ErrNoMatch):
		writeError(w, http.StatusNotFound, err.Error())
	case isExtractError(err):
		writeError(w, extract.StatusCode(err), err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func isExtractError(err error) bool {
	var ee *extract.Error
	return errors.As(err, &ee)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
