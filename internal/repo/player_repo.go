// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Player model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a player is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Ingest semantics (StorePlayers):
//   - Each row is inserted in its own transaction. A failure partway through a
//     batch never rolls back rows already committed by the same batch.
//   - Numeric statistic fields are coerced best-effort; a value that cannot be
//     parsed is stored as NULL, never as an error.
//   - Rows colliding with the unique (player_name, position) index are skipped
//     and counted, not treated as failures.
package repo

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-roster-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// BatchResult summarizes a bulk ingest: how many rows were inserted, and how
// many were skipped because an identical (player_name, position) pair already
// existed. When StorePlayers returns an error, the counts cover the rows
// attempted before the failing one.
type BatchResult struct {
	Inserted int
	Skipped  int
}

// GetPlayer fetches a single player by ID. If the record does not exist, it
// returns ErrNotFound. On other DB errors, the raw error is returned.
func GetPlayer(ctx context.Context, db *gorm.DB, id int) (*domain.Player, error) {
	var p domain.Player
	if err := db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPlayers returns the total number of stored players.
// A raw COUNT is used so a missing table surfaces as an error.
func CountPlayers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM players").Scan(&total).Error
	return total, err
}

// ListPlayersPage returns a slice of players ordered by ID ascending.
// The caller is responsible for computing offset and limit
// (e.g., (page-1)*pageSize). An out-of-range page yields an empty slice.
func ListPlayersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Player, error) {
	var out []domain.Player
	err := db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// StorePlayers ingests a batch of raw player records. Every record is mapped
// to a Player row (identity defaults, per-field numeric coercion, verbatim
// JSON payload) and inserted in its own transaction, so earlier rows stay
// committed if a later row fails. The first hard failure aborts the remainder
// of the batch and is returned together with the counts accumulated so far.
func StorePlayers(ctx context.Context, db *gorm.DB, records []map[string]any) (BatchResult, error) {
	var res BatchResult
	for _, rec := range records {
		p, err := playerFromRecord(rec)
		if err != nil {
			return res, err
		}
		inserted := false
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			create := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(p)
			if create.Error != nil {
				return create.Error
			}
			inserted = create.RowsAffected > 0
			return nil
		})
		if err != nil {
			return res, err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

// UpdatePlayerData overwrites the data column of one player with the full
// replacement payload. Typed statistic columns are deliberately left
// untouched and go stale; the data payload is the read-path source of truth.
// Returns ErrNotFound when no row matched the ID.
func UpdatePlayerData(ctx context.Context, db *gorm.DB, id int, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("id = ?", id).
		Update("data", string(payload))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// playerFromRecord maps one normalized feed record onto a Player row.
// The complete record is serialized into Data; identity fields fall back to
// "Unknown"; statistic fields are coerced independently and may end up nil.
func playerFromRecord(rec map[string]any) (*domain.Player, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return &domain.Player{
		PlayerName: stringField(rec, "player_name", "name"),
		Position:   stringField(rec, "position"),

		Games:          intField(rec, "games"),
		Hits:           intField(rec, "hits"),
		AtBat:          intField(rec, "at-bat", "at_bat"),
		Runs:           intField(rec, "runs"),
		Double2B:       intField(rec, "double_(2b)"),
		ThirdBaseman:   intField(rec, "third_baseman"),
		HomeRun:        intField(rec, "home_run"),
		RunBattedIn:    intField(rec, "run_batted_in"),
		AWalk:          intField(rec, "a_walk"),
		Strikeouts:     intField(rec, "strikeouts"),
		StolenBase:     intField(rec, "stolen_base"),
		CaughtStealing: intField(rec, "caught_stealing"),

		Avg:                floatField(rec, "avg"),
		OnBasePercentage:   floatField(rec, "on-base_percentage", "on_base_percentage"),
		SluggingPercentage: floatField(rec, "slugging_percentage"),
		OnBasePlusSlugging: floatField(rec, "on-base_plus_slugging", "on_base_plus_slugging"),

		Data: string(payload),
	}, nil
}

// stringField returns the first non-empty string value among keys,
// or "Unknown" when none is usable.
func stringField(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return "Unknown"
}

// intField coerces the first present value among keys to an int.
// Absent keys, nil values, and unparseable values all yield nil.
func intField(rec map[string]any, keys ...string) *int {
	v, ok := firstValue(rec, keys)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case int:
		n := t
		return &n
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n := int(i)
			return &n
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return &i
		}
	}
	return nil
}

// floatField coerces the first present value among keys to a float64.
// Absent keys, nil values, and unparseable values all yield nil.
func floatField(rec map[string]any, keys ...string) *float64 {
	v, ok := firstValue(rec, keys)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		f := t
		return &f
	case int:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

// firstValue returns the first non-nil value among keys.
func firstValue(rec map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
