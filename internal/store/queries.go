package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avkatev/autocrawl/internal/model"
)

func (s *Store) queryIDs(ctx context.Context, sql string, args ...any) ([]int64, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SeriesIDsWithoutSpecs filters ids down to the series that have no spec rows
// yet, preserving input order.
func (s *Store) SeriesIDsWithoutSpecs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	have, err := s.queryIDs(ctx,
		`SELECT DISTINCT series_id FROM specs WHERE series_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("series with specs: %w", err)
	}
	haveSet := make(map[int64]bool, len(have))
	for _, id := range have {
		haveSet[id] = true
	}
	var missing []int64
	for _, id := range ids {
		if !haveSet[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// SeriesIDsWithSpecs lists every series that has at least one spec row.
func (s *Store) SeriesIDsWithSpecs(ctx context.Context) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `SELECT DISTINCT series_id FROM specs ORDER BY series_id`)
	if err != nil {
		return nil, fmt.Errorf("series with specs: %w", err)
	}
	return ids, nil
}

// SeriesIDsWithPhotos lists every series that has at least one photo row.
func (s *Store) SeriesIDsWithPhotos(ctx context.Context) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `SELECT DISTINCT series_id FROM photos ORDER BY series_id`)
	if err != nil {
		return nil, fmt.Errorf("series with photos: %w", err)
	}
	return ids, nil
}

// SpecIDsBySeries lists the spec ids stored for one series.
func (s *Store) SpecIDsBySeries(ctx context.Context, seriesID int64) ([]int64, error) {
	ids, err := s.queryIDs(ctx,
		`SELECT id FROM specs WHERE series_id = $1 ORDER BY id`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("specs of series %d: %w", seriesID, err)
	}
	return ids, nil
}

// SpecSeriesID returns the parent series of a spec, or ErrMissingSpec.
func (s *Store) SpecSeriesID(ctx context.Context, specID int64) (int64, error) {
	var seriesID int64
	err := s.db.QueryRow(ctx,
		`SELECT series_id FROM specs WHERE id = $1`, specID).Scan(&seriesID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("spec %d: %w", specID, ErrMissingSpec)
	}
	if err != nil {
		return 0, fmt.Errorf("series of spec %d: %w", specID, err)
	}
	return seriesID, nil
}

// PhotosBySeries lists the stored photos of a series, including any local
// paths written by earlier download runs.
func (s *Store) PhotosBySeries(ctx context.Context, seriesID int64) ([]model.Photo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, series_id, spec_id, category_id, color_id, original_url, spec_name, local_path
		FROM photos WHERE series_id = $1 ORDER BY id`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("photos of series %d: %w", seriesID, err)
	}
	defer rows.Close()
	var photos []model.Photo
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.ID, &p.SeriesID, &p.SpecID, &p.CategoryID, &p.ColorID,
			&p.OriginalURL, &p.SpecName, &p.LocalPath); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// SetPhotoLocalPath records where a photo landed on disk.
func (s *Store) SetPhotoLocalPath(ctx context.Context, photoID, path string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE photos SET local_path = $2, updated_at = now() WHERE id = $1`, photoID, path)
	if err != nil {
		return fmt.Errorf("set photo local path %s: %w", photoID, err)
	}
	return nil
}

// PanoramaPhotosBySpec lists the stored panorama frames of a spec.
func (s *Store) PanoramaPhotosBySpec(ctx context.Context, specID int64) ([]model.PanoramaPhoto, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, spec_id, color_id, seq, url, local_path
		FROM panorama_photos WHERE spec_id = $1 ORDER BY color_id, seq`, specID)
	if err != nil {
		return nil, fmt.Errorf("panorama photos of spec %d: %w", specID, err)
	}
	defer rows.Close()
	var photos []model.PanoramaPhoto
	for rows.Next() {
		var p model.PanoramaPhoto
		if err := rows.Scan(&p.ID, &p.SpecID, &p.ColorID, &p.Seq, &p.URL, &p.LocalPath); err != nil {
			return nil, fmt.Errorf("scan panorama photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// SpecIDsWithPanoramaColors lists every spec that has panorama metadata.
func (s *Store) SpecIDsWithPanoramaColors(ctx context.Context) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `SELECT DISTINCT spec_id FROM panorama_colors ORDER BY spec_id`)
	if err != nil {
		return nil, fmt.Errorf("specs with panorama colors: %w", err)
	}
	return ids, nil
}

// SpecIDsWithPanoramaPhotos lists every spec that has panorama frames.
func (s *Store) SpecIDsWithPanoramaPhotos(ctx context.Context) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `SELECT DISTINCT spec_id FROM panorama_photos ORDER BY spec_id`)
	if err != nil {
		return nil, fmt.Errorf("specs with panorama photos: %w", err)
	}
	return ids, nil
}

// SavedPanoramaExtID returns the resolved ext id stored for a spec, or nil
// when no color row carries one yet.
func (s *Store) SavedPanoramaExtID(ctx context.Context, specID int64) (*int64, error) {
	var extID int64
	err := s.db.QueryRow(ctx, `
		SELECT ext_id FROM panorama_colors
		WHERE spec_id = $1 AND ext_id IS NOT NULL
		ORDER BY color_id LIMIT 1`, specID).Scan(&extID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("saved ext id of spec %d: %w", specID, err)
	}
	return &extID, nil
}

// BackfillPanoramaExtID stamps a freshly resolved ext id onto the spec's color
// rows that still lack one. Returns the number of rows updated.
func (s *Store) BackfillPanoramaExtID(ctx context.Context, specID, extID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE panorama_colors SET ext_id = $2, updated_at = now()
		WHERE spec_id = $1 AND ext_id IS NULL`, specID, extID)
	if err != nil {
		return 0, fmt.Errorf("backfill ext id spec %d: %w", specID, err)
	}
	return tag.RowsAffected(), nil
}

// SetPanoramaPhotoLocalPath records where a panorama frame landed on disk.
func (s *Store) SetPanoramaPhotoLocalPath(ctx context.Context, id, path string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE panorama_photos SET local_path = $2, updated_at = now() WHERE id = $1`, id, path)
	if err != nil {
		return fmt.Errorf("set panorama photo local path %s: %w", id, err)
	}
	return nil
}
