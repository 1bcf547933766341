// Package common holds the error taxonomy shared by every engine and handler.
// Services wrap these sentinels with context; handlers translate them to HTTP
// status codes with HTTPStatus.
package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound means the referenced account or request does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means the operation is not valid for the entity's current status
	ErrInvalidState = errors.New("invalid state for this operation")
	// ErrForbidden means the caller has no authority over the entity
	ErrForbidden = errors.New("not allowed")
	// ErrPlanNotAllowed means the requested plan exceeds what the sponsor may sponsor
	ErrPlanNotAllowed = errors.New("plan not allowed for this sponsor")
	// ErrConflict means a non-terminal request already exists for the account
	ErrConflict = errors.New("conflicting pending request")
	// ErrInsufficientFunds means the amount exceeds the withdrawable balance
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidInput means a malformed amount or missing fields
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal means a storage or transaction failure; prior state is unchanged
	ErrInternal = errors.New("internal error")
)

// ErrReferralCycle rejects a sponsor reassignment that would make an account
// its own ancestor. It belongs to the Conflict family for status mapping.
var ErrReferralCycle = fmt.Errorf("sponsor is a descendant of the subject: %w", ErrConflict)

// HTTPStatus maps a taxonomy error to the status code the routing layer
// should surface. Unknown errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrPlanNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
