package store

import (
	"context"
	"fmt"

	"github.com/avkatev/autocrawl/internal/model"
)

// All upserts follow the same contract: rows are merged under the entity's
// natural key with ON CONFLICT, duplicate keys inside one batch are dropped
// first-wins before touching the database, and RETURNING (xmax = 0) tells an
// insert apart from an update.

// upsertRow executes one upsert statement and reports whether it inserted.
func (s *Store) upsertRow(ctx context.Context, sql string, args ...any) (bool, error) {
	var inserted bool
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&inserted); err != nil {
		return false, err
	}
	return inserted, nil
}

const upsertBrandSQL = `
	INSERT INTO brands (id, name, logo_url, series_count, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		logo_url = EXCLUDED.logo_url,
		series_count = EXCLUDED.series_count,
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertBrands merges brand rows keyed by catalog id.
func (s *Store) UpsertBrands(ctx context.Context, brands []model.Brand) (Counts, error) {
	var counts Counts
	seen := make(map[int64]bool, len(brands))
	for _, b := range brands {
		if seen[b.ID] {
			counts.Skipped++
			continue
		}
		seen[b.ID] = true
		inserted, err := s.upsertRow(ctx, upsertBrandSQL, b.ID, b.Name, b.LogoURL, b.SeriesCount)
		if err != nil {
			return counts, fmt.Errorf("upsert brand %d: %w", b.ID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

const upsertSeriesSQL = `
	INSERT INTO series (id, brand_id, name, is_new_energy, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (id) DO UPDATE SET
		brand_id = EXCLUDED.brand_id,
		name = EXCLUDED.name,
		is_new_energy = COALESCE(EXCLUDED.is_new_energy, series.is_new_energy),
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertSeries merges series rows keyed by catalog id. An unknown new-energy
// flag never overwrites a known one.
func (s *Store) UpsertSeries(ctx context.Context, series []model.Series) (Counts, error) {
	var counts Counts
	seen := make(map[int64]bool, len(series))
	for _, sr := range series {
		if seen[sr.ID] {
			counts.Skipped++
			continue
		}
		seen[sr.ID] = true
		inserted, err := s.upsertRow(ctx, upsertSeriesSQL, sr.ID, sr.BrandID, sr.Name, sr.IsNewEnergy)
		if err != nil {
			return counts, fmt.Errorf("upsert series %d: %w", sr.ID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

const upsertSpecSQL = `
	INSERT INTO specs (id, series_id, name, min_price, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (id) DO UPDATE SET
		series_id = EXCLUDED.series_id,
		name = EXCLUDED.name,
		min_price = EXCLUDED.min_price,
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertSpecs merges spec rows keyed by catalog id.
func (s *Store) UpsertSpecs(ctx context.Context, specs []model.Spec) (Counts, error) {
	var counts Counts
	seen := make(map[int64]bool, len(specs))
	for _, sp := range specs {
		if seen[sp.ID] {
			counts.Skipped++
			continue
		}
		seen[sp.ID] = true
		inserted, err := s.upsertRow(ctx, upsertSpecSQL, sp.ID, sp.SeriesID, sp.Name, sp.MinPrice)
		if err != nil {
			return counts, fmt.Errorf("upsert spec %d: %w", sp.ID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

const upsertParamTitleSQL = `
	INSERT INTO param_titles (series_id, title_id, item_name, group_name, item_type, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (series_id, title_id) DO UPDATE SET
		item_name = EXCLUDED.item_name,
		group_name = EXCLUDED.group_name,
		item_type = EXCLUDED.item_type,
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertParamTitles merges characteristic titles keyed by (series, title).
func (s *Store) UpsertParamTitles(ctx context.Context, titles []model.ParamTitle) (Counts, error) {
	var counts Counts
	type key struct {
		seriesID, titleID int64
	}
	seen := make(map[key]bool, len(titles))
	for _, t := range titles {
		k := key{t.SeriesID, t.TitleID}
		if seen[k] {
			counts.Skipped++
			continue
		}
		seen[k] = true
		inserted, err := s.upsertRow(ctx, upsertParamTitleSQL,
			t.SeriesID, t.TitleID, t.ItemName, t.GroupName, t.ItemType)
		if err != nil {
			return counts, fmt.Errorf("upsert param title %d/%d: %w", t.SeriesID, t.TitleID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

const upsertPhotoColorSQL = `
	INSERT INTO photo_colors (id, series_id, color_type, name, value, is_on_sale, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (series_id, id) DO UPDATE SET
		color_type = EXCLUDED.color_type,
		name = EXCLUDED.name,
		value = EXCLUDED.value,
		is_on_sale = COALESCE(EXCLUDED.is_on_sale, photo_colors.is_on_sale),
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertPhotoColors merges photo colors keyed by (series, color).
func (s *Store) UpsertPhotoColors(ctx context.Context, colors []model.PhotoColor) (Counts, error) {
	var counts Counts
	type key struct {
		seriesID, id int64
	}
	seen := make(map[key]bool, len(colors))
	for _, c := range colors {
		k := key{c.SeriesID, c.ID}
		if seen[k] {
			counts.Skipped++
			continue
		}
		seen[k] = true
		inserted, err := s.upsertRow(ctx, upsertPhotoColorSQL,
			c.ID, c.SeriesID, c.ColorType, c.Name, c.Value, c.IsOnSale)
		if err != nil {
			return counts, fmt.Errorf("upsert photo color %d/%d: %w", c.SeriesID, c.ID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

const upsertPhotoCategorySQL = `
	INSERT INTO photo_categories (series_id, id, name, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (series_id, id) DO UPDATE SET
		name = EXCLUDED.name,
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertPhotoCategories merges photo categories keyed by (series, category).
func (s *Store) UpsertPhotoCategories(ctx context.Context, categories []model.PhotoCategory) (Counts, error) {
	var counts Counts
	type key struct {
		seriesID, id int64
	}
	seen := make(map[key]bool, len(categories))
	for _, c := range categories {
		k := key{c.SeriesID, c.ID}
		if seen[k] {
			counts.Skipped++
			continue
		}
		seen[k] = true
		inserted, err := s.upsertRow(ctx, upsertPhotoCategorySQL, c.SeriesID, c.ID, c.Name)
		if err != nil {
			return counts, fmt.Errorf("upsert photo category %d/%d: %w", c.SeriesID, c.ID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

const upsertPhotoSQL = `
	INSERT INTO photos (id, series_id, spec_id, category_id, color_id, original_url, spec_name, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (id) DO UPDATE SET
		series_id = EXCLUDED.series_id,
		spec_id = EXCLUDED.spec_id,
		category_id = EXCLUDED.category_id,
		color_id = EXCLUDED.color_id,
		original_url = EXCLUDED.original_url,
		spec_name = EXCLUDED.spec_name,
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertPhotos merges photo rows keyed by catalog id. local_path is owned by
// the download stage and is never touched here.
func (s *Store) UpsertPhotos(ctx context.Context, photos []model.Photo) (Counts, error) {
	var counts Counts
	seen := make(map[string]bool, len(photos))
	for _, p := range photos {
		if seen[p.ID] {
			counts.Skipped++
			continue
		}
		seen[p.ID] = true
		inserted, err := s.upsertRow(ctx, upsertPhotoSQL,
			p.ID, p.SeriesID, p.SpecID, p.CategoryID, p.ColorID, p.OriginalURL, p.SpecName)
		if err != nil {
			return counts, fmt.Errorf("upsert photo %s: %w", p.ID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

const upsertPanoramaColorSQL = `
	INSERT INTO panorama_colors (id, spec_id, ext_id, base_color_name, color_name, color_value, color_id, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (spec_id, color_id) DO UPDATE SET
		id = EXCLUDED.id,
		ext_id = COALESCE(EXCLUDED.ext_id, panorama_colors.ext_id),
		base_color_name = EXCLUDED.base_color_name,
		color_name = EXCLUDED.color_name,
		color_value = EXCLUDED.color_value,
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertPanoramaColors merges panorama color variants keyed by (spec, color).
// A nil ext id never overwrites a resolved one.
func (s *Store) UpsertPanoramaColors(ctx context.Context, colors []model.PanoramaColor) (Counts, error) {
	var counts Counts
	type key struct {
		specID, colorID int64
	}
	seen := make(map[key]bool, len(colors))
	for _, c := range colors {
		k := key{c.SpecID, c.ColorID}
		if seen[k] {
			counts.Skipped++
			continue
		}
		seen[k] = true
		inserted, err := s.upsertRow(ctx, upsertPanoramaColorSQL,
			c.ID, c.SpecID, c.ExtID, c.BaseColorName, c.ColorName, c.ColorValue, c.ColorID)
		if err != nil {
			return counts, fmt.Errorf("upsert panorama color %d/%d: %w", c.SpecID, c.ColorID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

const upsertPanoramaPhotoSQL = `
	INSERT INTO panorama_photos (id, spec_id, color_id, seq, url, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (id) DO UPDATE SET
		spec_id = EXCLUDED.spec_id,
		color_id = EXCLUDED.color_id,
		seq = EXCLUDED.seq,
		url = EXCLUDED.url,
		updated_at = now()
	RETURNING (xmax = 0)`

// UpsertPanoramaPhotos merges panorama frames keyed by synthetic id.
// local_path is owned by the download stage and is never touched here.
func (s *Store) UpsertPanoramaPhotos(ctx context.Context, photos []model.PanoramaPhoto) (Counts, error) {
	var counts Counts
	seen := make(map[string]bool, len(photos))
	for _, p := range photos {
		if seen[p.ID] {
			counts.Skipped++
			continue
		}
		seen[p.ID] = true
		inserted, err := s.upsertRow(ctx, upsertPanoramaPhotoSQL,
			p.ID, p.SpecID, p.ColorID, p.Seq, p.URL)
		if err != nil {
			return counts, fmt.Errorf("upsert panorama photo %s: %w", p.ID, err)
		}
		counts.bump(inserted)
	}
	return counts, nil
}

func (c *Counts) bump(inserted bool) {
	if inserted {
		c.Inserted++
	} else {
		c.Updated++
	}
}
