package resolve

import (
	"testing"
	"time"

	"tunebridge/models"
)

func TestURLCache_TTLBoundary(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	c := NewURLCache(2 * time.Hour)
	c.now = func() time.Time { return now }

	c.Set(models.StreamURLEntry{VideoID: "abc123", URL: "https://cdn.example.com/a.m4a", IssuedAt: t0})

	now = t0.Add(1*time.Hour + 59*time.Minute)
	if _, ok := c.Get("abc123"); !ok {
		t.Fatal("expected hit at t0+1h59m")
	}

	now = t0.Add(2*time.Hour + 1*time.Minute)
	if _, ok := c.Get("abc123"); ok {
		t.Fatal("expected miss at t0+2h01m")
	}

	// expired entry was evicted, not just hidden
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be dropped, cache has %d entries", c.Len())
	}
}

func TestURLCache_ExactExpiryIsMiss(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	c := NewURLCache(2 * time.Hour)
	c.now = func() time.Time { return now }

	c.Set(models.StreamURLEntry{VideoID: "v", URL: "https://u", IssuedAt: t0})

	now = t0.Add(2 * time.Hour)
	if _, ok := c.Get("v"); ok {
		t.Fatal("entry must not be served at exactly t0+TTL")
	}
}

func TestURLCache_SetReplaces(t *testing.T) {
	c := NewURLCache(2 * time.Hour)
	c.Set(models.StreamURLEntry{VideoID: "v", URL: "https://old"})
	c.Set(models.StreamURLEntry{VideoID: "v", URL: "https://new"})

	entry, ok := c.Get("v")
	if !ok {
		t.Fatal("expected hit")
	}
	if entry.URL != "https://new" {
		t.Errorf("expected newest URL, got %q", entry.URL)
	}
}

func TestURLCache_IgnoresEmptyEntries(t *testing.T) {
	c := NewURLCache(2 * time.Hour)
	c.Set(models.StreamURLEntry{VideoID: "", URL: "https://u"})
	c.Set(models.StreamURLEntry{VideoID: "v", URL: ""})
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}
