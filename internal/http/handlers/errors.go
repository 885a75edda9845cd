package handlers

// Machine-readable error codes returned in the ErrorResponse envelope.
// Codes are part of the public API contract: clients branch on them, so
// they must stay stable across releases.
const (
	// Transport-level codes
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternalError    = "internal_error"

	// Domain-level codes
	ErrCodeListFailed     = "list_failed"
	ErrCodeUpdateFailed   = "update_failed"
	ErrCodeDescribeFailed = "describe_failed"
)
