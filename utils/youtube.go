package utils

import (
	"net/url"
	"regexp"
	"strings"
)

const watchBaseURL = "https://www.youtube.com/watch"

// videoIDPattern matches the platform's 11-character video ids.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// WatchURL builds the canonical watch-style URL for a video id.
func WatchURL(videoID string) string {
	return watchBaseURL + "?v=" + url.QueryEscape(strings.TrimSpace(videoID))
}

// IsValidVideoID reports whether s looks like a platform video id. This is a
// sanity filter for path parameters, not a guarantee the video exists.
func IsValidVideoID(s string) bool {
	return videoIDPattern.MatchString(strings.TrimSpace(s))
}

// VideoIDFromURL extracts the video id from watch, share and embed URL
// shapes. Returns "" when none is present.
func VideoIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "youtu.be"):
		return strings.Trim(strings.TrimPrefix(u.Path, "/"), "/")
	case strings.Contains(host, "youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		for _, prefix := range []string{"/embed/", "/v/", "/shorts/"} {
			if strings.HasPrefix(u.Path, prefix) {
				return strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
			}
		}
	}
	return ""
}
