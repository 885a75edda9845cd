// Package services – DescriptionService
//
// This file implements DescriptionService, which produces a short
// natural-language description for a single player and persists it into the
// player's raw payload. The text generator is consulted only after the player
// is confirmed to exist; generation itself never fails (the llm package
// degrades to canned sentences), but persisting the result can.
package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-roster-backend/internal/llm"
	"github.com/tbourn/go-roster-backend/internal/repo"
)

// DescriptionService generates and persists player descriptions.
type DescriptionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the player repository used by this service.
	Repo PlayerRepo
	// Generator produces the description text.
	Generator llm.Generator
}

// NewDescriptionService constructs a DescriptionService.
func NewDescriptionService(db *gorm.DB, r PlayerRepo, g llm.Generator) *DescriptionService {
	return &DescriptionService{DB: db, Repo: r, Generator: g}
}

// Generate looks up the player, asks the generator for a description, writes
// it into the player's payload under the "description" key, and returns it.
// Returns ErrPlayerNotFound (without consulting the generator) when the ID
// does not exist; any other error means persisting the description failed.
func (s *DescriptionService) Generate(ctx context.Context, id int) (string, error) {
	tr := otel.Tracer("services/DescriptionService")
	ctx, span := tr.Start(ctx, "Generate", trace.WithAttributes(attribute.Int("player.id", id)))
	defer span.End()

	p, err := s.Repo.GetPlayer(ctx, s.DB, id)
	if err != nil {
		if err == repo.ErrNotFound {
			return "", ErrPlayerNotFound
		}
		return "", err
	}

	data := map[string]any{}
	if err := json.Unmarshal([]byte(p.Data), &data); err != nil {
		data = map[string]any{}
	}

	name := stringOr(data["player_name"], p.PlayerName)
	position := stringOr(data["position"], p.Position)
	team := stringOr(data["team"], "")

	desc := s.Generator.Describe(ctx, name, position, team, data)

	data["description"] = desc
	if err := s.Repo.UpdatePlayerData(ctx, s.DB, id, data); err != nil {
		if err == repo.ErrNotFound {
			return "", ErrPlayerNotFound
		}
		return "", err
	}
	return desc, nil
}

// stringOr returns v if it is a non-empty string, otherwise def.
func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
