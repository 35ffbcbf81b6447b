// Package match scores video-platform search results against catalog track
// metadata and picks a single confident winner, or none at all.
package match

import (
	"strings"

	"tunebridge/models"
)

// Scoring weights. These are empirically tuned rather than derived; adjust
// here, not at call sites.
const (
	scoreTitleContains = 10 // candidate title contains the full track title
	scoreTitleWords    = 5  // >=70% of significant title words present
	scoreArtistContains = 5
	scoreArtistWords    = 3
	scoreComboTitleFirst  = 20 // candidate title is exactly "title artist"
	scoreComboArtistFirst = 30 // candidate title is exactly "artist title", the canonical upload format
	scoreDurationClose  = 10 // duration within 5s of the catalog duration
	scoreDurationNear   = 5  // duration within 10s

	durationCloseMs = 5000
	durationNearMs  = 10000

	// MinScore is the confidence floor. A winner below it is rejected so the
	// matcher never returns a low-confidence guess.
	MinScore = 15

	// wordOverlapRatio is the fraction of significant words that must appear
	// for the partial word-overlap bonus.
	wordOverlapRatio = 0.7

	// minWordLen filters out short filler words ("a", "of") from overlap checks.
	minWordLen = 2
)

// Best scores every candidate against the target and returns the highest
// scorer, or ok=false when no candidate clears MinScore. Ties keep the
// earlier candidate since the upstream search already rank-orders results.
func Best(target models.TrackRef, candidates []models.CandidateVideo) (models.MatchResult, bool) {
	title := Normalize(target.Title)
	artist := Normalize(target.Artist)

	best := models.MatchResult{}
	found := false
	for _, c := range candidates {
		if c.VideoID == "" || c.Title == "" {
			continue
		}
		s := Score(title, artist, target.DurationMs, c)
		if !found || s > best.Score {
			best = models.MatchResult{VideoID: c.VideoID, Score: s, DurationSeconds: c.DurationSeconds}
			found = true
		}
	}

	if !found || best.Score < MinScore {
		return models.MatchResult{}, false
	}
	return best, true
}

// Score computes the additive match score for one candidate. The title and
// artist arguments must already be normalized.
func Score(title, artist string, durationMs int64, c models.CandidateVideo) int {
	candTitle := Normalize(c.Title)
	score := 0

	if title != "" {
		if strings.Contains(candTitle, title) {
			score += scoreTitleContains
		} else if wordOverlap(title, candTitle) >= wordOverlapRatio {
			score += scoreTitleWords
		}
	}

	if artist != "" {
		candText := candTitle
		if c.ChannelName != "" {
			candText += " " + Normalize(c.ChannelName)
		}
		if strings.Contains(candText, artist) {
			score += scoreArtistContains
		} else if wordOverlap(artist, candText) >= wordOverlapRatio {
			score += scoreArtistWords
		}
	}

	// Exact-format uploads ("Artist - Title") are the strongest signal. The
	// bonus requires the whole title to be the combination; a title that
	// merely embeds it (trailing "(Official Video)" and the like) already
	// collected the containment bonuses above.
	if title != "" && artist != "" {
		switch candTitle {
		case artist + " " + title:
			score += scoreComboArtistFirst
		case title + " " + artist:
			score += scoreComboTitleFirst
		}
	}

	if durationMs > 0 && c.DurationSeconds > 0 {
		diff := c.DurationSeconds*1000 - durationMs
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff < durationCloseMs:
			score += scoreDurationClose
		case diff < durationNearMs:
			score += scoreDurationNear
		}
	}

	return score
}

// wordOverlap returns the fraction of significant words from want that occur
// in have. Words of minWordLen or fewer runes are ignored.
func wordOverlap(want, have string) float64 {
	words := strings.Fields(want)
	total := 0
	hits := 0
	for _, w := range words {
		if len([]rune(w)) <= minWordLen {
			continue
		}
		total++
		if strings.Contains(have, w) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
