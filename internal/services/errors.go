// Package services defines the business logic for the player roster. This
// file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrPlayerNotFound indicates that the requested player does not exist.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrPopulateFailed is returned when the one-time populate sweep could not
	// fetch or store the external feed.
	ErrPopulateFailed = errors.New("failed to populate players")

	// ErrInvalidPage is returned when pagination parameters fall outside the
	// accepted ranges (page >= 1, page_size in [1,100]).
	ErrInvalidPage = errors.New("invalid pagination parameters")
)
