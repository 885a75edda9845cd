// Package services – PlayerService
//
// This file implements PlayerService, the application-level component that
// owns the player roster. It serves the paginated listing (triggering the
// one-time populate sweep from the external feed when the store is empty)
// and full-replacement updates of a player's raw payload.
//
// Records returned by ListPage are reconstructed by parsing the stored JSON
// payload and overlaying the typed identity columns (id, player_name,
// position), which take precedence over same-named keys in the payload.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// pagination parameters and populate-sweep outcomes.
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-roster-backend/internal/domain"
	"github.com/tbourn/go-roster-backend/internal/feed"
	"github.com/tbourn/go-roster-backend/internal/repo"
)

// PlayerRepo defines the repository contract required by the player services.
// Implementations are responsible for persistence of player rows.
type PlayerRepo interface {
	// GetPlayer fetches a player by ID, or repo.ErrNotFound.
	GetPlayer(ctx context.Context, db *gorm.DB, id int) (*domain.Player, error)

	// CountPlayers returns the total number of stored players.
	CountPlayers(ctx context.Context, db *gorm.DB) (int64, error)

	// StorePlayers ingests a batch of normalized records, one transaction per row.
	StorePlayers(ctx context.Context, db *gorm.DB, records []map[string]any) (repo.BatchResult, error)

	// ListPlayersPage returns a slice of players ordered by ID.
	ListPlayersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Player, error)

	// UpdatePlayerData overwrites a player's raw payload.
	UpdatePlayerData(ctx context.Context, db *gorm.DB, id int, data map[string]any) error
}

// PlayerPage is the listing response: one page of reconstructed records plus
// truth-telling totals.
type PlayerPage struct {
	Players      []map[string]any `json:"players"`
	TotalPlayers int64            `json:"total_players"`
	TotalPages   int              `json:"total_pages"`
	CurrentPage  int              `json:"current_page"`
	PageSize     int              `json:"page_size"`
}

// PlayerService provides roster-level operations: the paginated listing with
// its empty-store populate sweep, and payload updates.
type PlayerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the player repository used by this service.
	Repo PlayerRepo
	// Feed supplies the external records for the populate sweep.
	Feed feed.Source
}

// NewPlayerService constructs a PlayerService.
func NewPlayerService(db *gorm.DB, r PlayerRepo, src feed.Source) *PlayerService {
	return &PlayerService{DB: db, Repo: r, Feed: src}
}

// ListPage returns one page of players. When the store is observed empty it
// first runs the populate sweep: fetch the external feed and bulk-store the
// records. A page past the end yields an empty list with correct totals.
func (s *PlayerService) ListPage(ctx context.Context, page, pageSize int) (*PlayerPage, error) {
	tr := otel.Tracer("services/PlayerService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 || pageSize < 1 || pageSize > 100 {
		return nil, ErrInvalidPage
	}

	total, err := s.Repo.CountPlayers(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	if total == 0 {
		if total, err = s.populate(ctx); err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Bool("populated", true))
	}

	offset := (page - 1) * pageSize
	rows, err := s.Repo.ListPlayersPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, err
	}

	players := make([]map[string]any, 0, len(rows))
	for i := range rows {
		players = append(players, reconstructPlayer(&rows[i]))
	}

	return &PlayerPage{
		Players:      players,
		TotalPlayers: total,
		TotalPages:   int((total + int64(pageSize) - 1) / int64(pageSize)),
		CurrentPage:  page,
		PageSize:     pageSize,
	}, nil
}

// Update replaces the raw payload of one player. The typed statistic columns
// are left untouched (they go stale; the payload is the read-path source of
// truth). Returns ErrPlayerNotFound when the ID does not exist.
func (s *PlayerService) Update(ctx context.Context, id int, data map[string]any) error {
	tr := otel.Tracer("services/PlayerService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.Int("player.id", id)))
	defer span.End()

	err := s.Repo.UpdatePlayerData(ctx, s.DB, id, data)
	if err == repo.ErrNotFound {
		return ErrPlayerNotFound
	}
	return err
}

// populate runs the one-time sweep and returns the resulting row count.
func (s *PlayerService) populate(ctx context.Context) (int64, error) {
	log.Info().Msg("no players in store, fetching and populating")

	records, err := s.Feed.FetchPlayers(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPopulateFailed, err)
	}

	res, err := s.Repo.StorePlayers(ctx, s.DB, records)
	log.Info().
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Int("fetched", len(records)).
		Msg("populate sweep finished")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPopulateFailed, err)
	}

	return s.Repo.CountPlayers(ctx, s.DB)
}

// reconstructPlayer merges the stored payload with the typed identity
// columns; the columns win over same-named payload keys.
func reconstructPlayer(p *domain.Player) map[string]any {
	out := map[string]any{}
	if err := json.Unmarshal([]byte(p.Data), &out); err != nil {
		out = map[string]any{}
	}
	out["id"] = p.ID
	out["player_name"] = p.PlayerName
	out["position"] = p.Position
	return out
}
