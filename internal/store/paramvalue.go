package store

import (
	"context"
	"fmt"

	"github.com/avkatev/autocrawl/internal/model"
)

// Characteristic values carry a denormalized item name copied from the title
// vocabulary. When the vocabulary is corrected upstream, rows written by
// earlier crawls still hold the old name and a plain upsert would leave both
// versions behind. Reconciliation therefore keys on the stable triple
// (spec, title, sub name): stale rows under a different item name are removed
// before the corrected value lands.

const (
	selectParamValueNamesSQL = `
	SELECT item_name FROM param_values
	WHERE spec_id = $1 AND title_id = $2 AND sub_name = $3`

	deleteStaleParamValueSQL = `
	DELETE FROM param_values
	WHERE spec_id = $1 AND title_id = $2 AND sub_name = $3 AND item_name = $4`

	updateParamValueSQL = `
	UPDATE param_values SET value = $5, updated_at = now()
	WHERE spec_id = $1 AND title_id = $2 AND sub_name = $3 AND item_name = $4`

	insertParamValueSQL = `
	INSERT INTO param_values (spec_id, title_id, item_name, sub_name, value, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())`
)

// UpsertParamValues reconciles characteristic values against storage.
// Duplicate stable keys within the batch are dropped first-wins.
func (s *Store) UpsertParamValues(ctx context.Context, values []model.ParamValue) (Counts, error) {
	var counts Counts
	type key struct {
		specID, titleID int64
		subName         string
	}
	seen := make(map[key]bool, len(values))
	for _, v := range values {
		k := key{v.SpecID, v.TitleID, v.SubName}
		if seen[k] {
			counts.Skipped++
			continue
		}
		seen[k] = true
		if err := s.reconcileParamValue(ctx, v, &counts); err != nil {
			return counts, fmt.Errorf("upsert param value %d/%d/%q: %w",
				v.SpecID, v.TitleID, v.SubName, err)
		}
	}
	return counts, nil
}

func (s *Store) reconcileParamValue(ctx context.Context, v model.ParamValue, counts *Counts) error {
	rows, err := s.db.Query(ctx, selectParamValueNamesSQL, v.SpecID, v.TitleID, v.SubName)
	if err != nil {
		return fmt.Errorf("lookup existing names: %w", err)
	}
	var matched bool
	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan existing name: %w", err)
		}
		if name == v.ItemName {
			matched = true
		} else {
			stale = append(stale, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate existing names: %w", err)
	}

	for _, name := range stale {
		if _, err := s.db.Exec(ctx, deleteStaleParamValueSQL,
			v.SpecID, v.TitleID, v.SubName, name); err != nil {
			return fmt.Errorf("delete stale row %q: %w", name, err)
		}
	}

	if matched {
		if _, err := s.db.Exec(ctx, updateParamValueSQL,
			v.SpecID, v.TitleID, v.SubName, v.ItemName, v.Value); err != nil {
			return fmt.Errorf("update value: %w", err)
		}
		counts.Updated++
		return nil
	}
	if _, err := s.db.Exec(ctx, insertParamValueSQL,
		v.SpecID, v.TitleID, v.ItemName, v.SubName, v.Value); err != nil {
		return fmt.Errorf("insert value: %w", err)
	}
	counts.Inserted++
	return nil
}
