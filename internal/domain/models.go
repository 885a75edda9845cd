// Package domain defines the persistence model for baseball players. The type
// here is mapped with GORM and forms the core data layer of the roster
// application.
package domain

import "time"

// Player represents one batting line ingested from the external feed.
//
// The table keeps two representations of the same record:
//   - typed statistic columns, populated best-effort at ingest time so the
//     stats remain queryable with plain SQL;
//   - Data, the complete original payload serialized as JSON, which is the
//     source of truth when reconstructing a player for API responses.
//
// Updates rewrite only Data; the typed columns are refreshed exclusively by
// the bulk ingest and go stale after an update. Readers must treat Data as
// authoritative.
//
// Fields:
//   - ID: integer primary key assigned by the store on insert.
//   - PlayerName / Position: identity pair, unique together; both default to
//     "Unknown" when absent from the ingested record.
//   - Games … OnBasePlusSlugging: nullable statistic columns; a nil pointer
//     means the source value was absent or failed numeric coercion.
//   - Data: the raw ingested record, serialized verbatim.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Player struct {
	ID         int    `json:"id"          gorm:"primaryKey;autoIncrement"`
	PlayerName string `json:"player_name" gorm:"type:varchar(255);not null;default:'Unknown';uniqueIndex:ux_players_name_position,priority:1"`
	Position   string `json:"position"    gorm:"type:varchar(255);not null;default:'Unknown';uniqueIndex:ux_players_name_position,priority:2"`

	Games          *int `json:"games,omitempty"`
	AtBat          *int `json:"at_bat,omitempty"          gorm:"column:at_bat"`
	Runs           *int `json:"runs,omitempty"`
	Hits           *int `json:"hits,omitempty"`
	Double2B       *int `json:"double_2b,omitempty"       gorm:"column:double_2b"`
	ThirdBaseman   *int `json:"third_baseman,omitempty"`
	HomeRun        *int `json:"home_run,omitempty"`
	RunBattedIn    *int `json:"run_batted_in,omitempty"`
	AWalk          *int `json:"a_walk,omitempty"          gorm:"column:a_walk"`
	Strikeouts     *int `json:"strikeouts,omitempty"`
	StolenBase     *int `json:"stolen_base,omitempty"`
	CaughtStealing *int `json:"caught_stealing,omitempty"`

	Avg                *float64 `json:"avg,omitempty"`
	OnBasePercentage   *float64 `json:"on_base_percentage,omitempty"`
	SluggingPercentage *float64 `json:"slugging_percentage,omitempty"`
	OnBasePlusSlugging *float64 `json:"on_base_plus_slugging,omitempty"`

	Data string `json:"-" gorm:"type:text;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Player.
func (Player) TableName() string { return "players" }
