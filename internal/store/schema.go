package store

import (
	"context"
	"fmt"
)

// Schema statements are idempotent so every run can apply them at startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS brands (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		logo_url TEXT NOT NULL DEFAULT '',
		series_count INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS series (
		id BIGINT PRIMARY KEY,
		brand_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		is_new_energy BOOLEAN,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_series_brand ON series (brand_id)`,
	`CREATE TABLE IF NOT EXISTS specs (
		id BIGINT PRIMARY KEY,
		series_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		min_price TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_specs_series ON specs (series_id)`,
	`CREATE TABLE IF NOT EXISTS param_titles (
		series_id BIGINT NOT NULL,
		title_id BIGINT NOT NULL,
		item_name TEXT NOT NULL,
		group_name TEXT NOT NULL DEFAULT '',
		item_type TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (series_id, title_id)
	)`,
	`CREATE TABLE IF NOT EXISTS param_values (
		spec_id BIGINT NOT NULL,
		title_id BIGINT NOT NULL,
		item_name TEXT NOT NULL,
		sub_name TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (spec_id, title_id, item_name, sub_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_param_values_stable
		ON param_values (spec_id, title_id, sub_name)`,
	`CREATE TABLE IF NOT EXISTS photo_colors (
		id BIGINT NOT NULL,
		series_id BIGINT NOT NULL,
		color_type TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		is_on_sale BOOLEAN,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (series_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS photo_categories (
		series_id BIGINT NOT NULL,
		id BIGINT NOT NULL,
		name TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (series_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		series_id BIGINT NOT NULL,
		spec_id BIGINT NOT NULL,
		category_id BIGINT NOT NULL,
		color_id BIGINT NOT NULL,
		original_url TEXT NOT NULL,
		spec_name TEXT NOT NULL DEFAULT '',
		local_path TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_series ON photos (series_id)`,
	`CREATE TABLE IF NOT EXISTS panorama_colors (
		id BIGINT NOT NULL,
		spec_id BIGINT NOT NULL,
		ext_id BIGINT,
		base_color_name TEXT NOT NULL DEFAULT '',
		color_name TEXT NOT NULL DEFAULT '',
		color_value TEXT NOT NULL DEFAULT '',
		color_id BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (spec_id, color_id)
	)`,
	`CREATE TABLE IF NOT EXISTS panorama_photos (
		id TEXT PRIMARY KEY,
		spec_id BIGINT NOT NULL,
		color_id BIGINT NOT NULL,
		seq INT NOT NULL,
		url TEXT NOT NULL,
		local_path TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_panorama_photos_spec ON panorama_photos (spec_id)`,
}

// EnsureSchema creates all tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
