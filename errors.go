package lemystere

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("lemystere: not found")
	ErrSlugConflict = errors.New("lemystere: slug already exists")
	ErrUnauthorized = errors.New("lemystere: not signed in")
	ErrForbidden    = errors.New("lemystere: admin access required")
	ErrBadLogin     = errors.New("lemystere: invalid email or password")
)

// APIError is the error object of every non-2xx JSON response.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps well-known statuses back onto the sentinel errors so callers
// can use errors.Is on either side of the wire.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 409:
		return ErrSlugConflict
	}
	return nil
}

// Error codes used in APIError.Code.
const (
	CodeBadRequest   = "bad_request"
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal_error"
)
