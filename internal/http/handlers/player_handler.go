// Player HTTP handlers.
//
// This file exposes REST endpoints for roster resources:
//   - GET  /                          (welcome message)
//   - GET  /players                   (list, paginated, populates on first use)
//   - PUT  /players/{id}              (full record replacement)
//   - GET  /player/{id}/description   (LLM-generated description)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-roster-backend/internal/services"
	"github.com/tbourn/go-roster-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// PlayerService defines roster operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PlayerService interface {
	// ListPage returns a page of player records plus pagination totals,
	// populating the store from the upstream feed when it is empty.
	ListPage(ctx context.Context, page, pageSize int) (*services.PlayerPage, error)
	// Update replaces the stored payload of a player.
	Update(ctx context.Context, id int, data map[string]any) error
}

// DescriptionService defines description generation consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DescriptionService interface {
	// Generate produces, persists, and returns a short description for a player.
	Generate(ctx context.Context, id int) (string, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for the roster API. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	playerSvc PlayerService
	descSvc   DescriptionService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(playerSvc PlayerService, descSvc DescriptionService) *Handlers {
	return &Handlers{playerSvc: playerSvc, descSvc: descSvc}
}

//
// Helpers
//

// pagination parses the page and page_size query parameters. Omitted
// parameters fall back to defaults; malformed values are reported as errors
// so the handler can reject the request. Range validation (page >= 1,
// 1 <= page_size <= 100) happens in the service layer.
func pagination(c *gin.Context) (page, pageSize int, err error) {
	const (
		defaultPage     = 1
		defaultPageSize = 10
	)
	page, err = utils.PageParam(c.Query("page"), defaultPage)
	if err != nil {
		return 0, 0, fmt.Errorf("page must be an integer")
	}
	pageSize, err = utils.PageParam(c.Query("page_size"), defaultPageSize)
	if err != nil {
		return 0, 0, fmt.Errorf("page_size must be an integer")
	}
	return page, pageSize, nil
}

// playerID parses the {id} path parameter as a positive integer.
func playerID(c *gin.Context) (int, error) {
	id, err := utils.PageParam(c.Param("id"), 0)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("player id must be a positive integer")
	}
	return id, nil
}

//
// Handlers
//

// Root returns the welcome message, mainly used as a liveness smoke check.
func (h *Handlers) Root(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"message": "Hello World from Backend"})
}

// ListPlayers returns a page of player records.
//
// Query parameters:
//   - page: 1-based page number (default 1)
//   - page_size: records per page, 1-100 (default 10)
//
// On the first request against an empty store the upstream feed is fetched
// and persisted before the page is served.
func (h *Handlers) ListPlayers(c *gin.Context) {
	page, pageSize, err := pagination(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	res, err := h.playerSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, res)
}

// UpdatePlayer replaces a player's stored record with the request body.
//
// The body must be a JSON object; it becomes the new payload verbatim. The
// typed name/position columns are not rewritten, so subsequent listings keep
// serving them from the columns while the rest of the record reflects the
// update.
func (h *Handlers) UpdatePlayer(c *gin.Context) {
	id, err := playerID(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.playerSvc.Update(c.Request.Context(), id, body); err != nil {
		switch {
		case errors.Is(err, services.ErrPlayerNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "Player not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, gin.H{"message": fmt.Sprintf("Player ID %d updated successfully", id)})
}

// GetDescription generates and returns a short description for a player.
// The description is also persisted into the player's stored record.
func (h *Handlers) GetDescription(c *gin.Context) {
	id, err := playerID(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	desc, err := h.descSvc.Generate(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPlayerNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "Player not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeDescribeFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, gin.H{"description": desc})
}
