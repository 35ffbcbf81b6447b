package database

import (
	"database/sql"
	"fmt"
	"time"

	"tunebridge/models"
)

// MappingRepository persists catalog-id to video-id associations. Rows are
// created on the first successful match and overwritten on re-match; nothing
// ever deletes them.
type MappingRepository struct {
	db *sql.DB
}

// Get returns the mapping for a catalog id, or nil when none exists.
func (r *MappingRepository) Get(catalogID string) (*models.Mapping, error) {
	if catalogID == "" {
		return nil, fmt.Errorf("catalog id is required")
	}

	row := r.db.QueryRow(
		`SELECT catalog_id, video_id, duration_ms, updated_at FROM song_mappings WHERE catalog_id = ?`,
		catalogID,
	)

	var m models.Mapping
	var updatedAt string
	err := row.Scan(&m.CatalogID, &m.VideoID, &m.DurationMs, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query mapping: %w", err)
	}

	if ts, perr := time.Parse(time.RFC3339Nano, updatedAt); perr == nil {
		m.UpdatedAt = ts
	}
	return &m, nil
}

// Upsert writes the mapping for a catalog id, overwriting any previous row.
// Last writer wins; every write derives its fields independently so
// concurrent upserts for the same catalog id are safe.
func (r *MappingRepository) Upsert(catalogID, videoID string, durationMs int64) error {
	if catalogID == "" || videoID == "" {
		return fmt.Errorf("catalog id and video id are required")
	}

	_, err := r.db.Exec(
		`INSERT INTO song_mappings (catalog_id, video_id, duration_ms, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(catalog_id) DO UPDATE SET
		   video_id = excluded.video_id,
		   duration_ms = excluded.duration_ms,
		   updated_at = excluded.updated_at`,
		catalogID, videoID, durationMs, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert mapping: %w", err)
	}
	return nil
}
