package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"tunebridge/models"
	"tunebridge/services/playback"
	"tunebridge/services/prefetch"
)

const (
	// sessionIdleTimeout is how long an untouched session survives before
	// its scheduler is stopped and its caches dropped.
	sessionIdleTimeout = 30 * time.Minute

	sessionReapInterval = 5 * time.Minute
)

// session bundles the per-consumer state: the client cache layer, the
// prefetch scheduler warming it, and the playback resolver reading it.
type session struct {
	ID        string
	Cache     *prefetch.SessionCache
	Scheduler *prefetch.Scheduler
	Playback  *playback.Service

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionHandler manages listening sessions and their prefetch/playback
// surface.
type SessionHandler struct {
	resolver prefetch.Resolver

	mu       sync.Mutex
	sessions map[string]*session

	reapOnce sync.Once
}

func NewSessionHandler(resolver prefetch.Resolver) *SessionHandler {
	return &SessionHandler{
		resolver: resolver,
		sessions: make(map[string]*session),
	}
}

// Create handles POST /session.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	cache := prefetch.NewSessionCache(0)
	scheduler := prefetch.NewScheduler(h.resolver, cache)

	s := &session{
		ID:        id,
		Cache:     cache,
		Scheduler: scheduler,
		Playback:  playback.NewService(h.resolver, cache, scheduler),
		lastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()

	h.reapOnce.Do(func() { go h.reapLoop() })

	log.Printf("[session] created %s", id)
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": id})
}

// Candidates handles POST /session/{sessionId}/candidates. The posted
// ranked track list replaces the session's prefetch targets.
func (h *SessionHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(mux.Vars(r)["sessionId"])
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var request struct {
		Tracks []models.TrackRef `json:"tracks"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.touch()
	s.Scheduler.SetCandidates(request.Tracks)
	w.WriteHeader(http.StatusAccepted)
}

// Play handles GET /session/{sessionId}/play/{catalogId}?title&artist&durationMs.
func (h *SessionHandler) Play(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s, ok := h.lookup(vars["sessionId"])
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

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
	if track.CatalogID == "" {
		writeError(w, http.StatusBadRequest, "catalogId is required")
		return
	}

	s.touch()
	result, err := s.Playback.Play(r.Context(), track)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /session/{sessionId}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	s.Scheduler.Stop()
	log.Printf("[session] deleted %s", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) lookup(id string) (*session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// reapLoop drops sessions idle past the timeout. Their in-flight work
// settles normally; only future scheduling stops.
func (h *SessionHandler) reapLoop() {
	ticker := time.NewTicker(sessionReapInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-sessionIdleTimeout)

		h.mu.Lock()
		var stale []*session
		for id, s := range h.sessions {
			if s.idleSince().Before(cutoff) {
				stale = append(stale, s)
				delete(h.sessions, id)
			}
		}
		h.mu.Unlock()

		for _, s := range stale {
			s.Scheduler.Stop()
			log.Printf("[session] reaped idle session %s", s.ID)
		}
	}
}
