package scoping

import "errors"

var (
	ErrBudgetExceeded     = errors.New("evaluation budget exceeded")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Error codes returned in the HTTP error envelope.
const (
	CodeValidation         = "validation_error"
	CodePlanning           = "planning_error"
	CodeBudgetExceeded     = "budget_exceeded"
	CodeCanceled           = "request_canceled"
	CodeCatalogUnavailable = "catalog_unavailable"
	CodeInternal           = "internal_error"
	CodeNotFound           = "not_found"
)

// StatusClientClosedRequest is written when the caller went away before a
// result was ready.
const StatusClientClosedRequest = 499
