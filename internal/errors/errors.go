package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors. Mark wrapped errors with one of these so the HTTP layer can
// map them to a status code and a stable error code.
var (
	ErrValidation       = new(ErrCodeValidation, "invalid argument")
	ErrUnauthenticated  = new(ErrCodeUnauthenticated, "unauthenticated")
	ErrPermissionDenied = new(ErrCodePermissionDenied, "permission denied")
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrQuotaExceeded    = new(ErrCodeQuotaExceeded, "quota exceeded")
	ErrGenerationParse  = new(ErrCodeGenerationParse, "generation output could not be parsed")
	ErrUpstream         = new(ErrCodeUpstream, "upstream provider error")
	ErrGateway          = new(ErrCodeGateway, "payment gateway error")
	ErrDatabase         = new(ErrCodeInternal, "database error")
	ErrSystem           = new(ErrCodeInternal, "system error")

	// sentinels in resolution order; an error carrying several marks maps to
	// the first one listed
	sentinels = []*InternalError{
		ErrValidation,
		ErrUnauthenticated,
		ErrPermissionDenied,
		ErrNotFound,
		ErrQuotaExceeded,
		ErrGenerationParse,
		ErrUpstream,
		ErrGateway,
		ErrDatabase,
		ErrSystem,
	}

	// maps errors to http status codes
	statusCodeMap = map[*InternalError]int{
		ErrValidation:       http.StatusBadRequest,
		ErrUnauthenticated:  http.StatusUnauthorized,
		ErrPermissionDenied: http.StatusForbidden,
		ErrNotFound:         http.StatusNotFound,
		ErrQuotaExceeded:    http.StatusTooManyRequests,
		ErrGenerationParse:  http.StatusBadGateway,
		ErrUpstream:         http.StatusBadGateway,
		ErrGateway:          http.StatusBadGateway,
		ErrDatabase:         http.StatusInternalServerError,
		ErrSystem:           http.StatusInternalServerError,
	}

	// errors the caller can reasonably retry as-is
	retryable = map[*InternalError]bool{
		ErrGenerationParse: true,
		ErrUpstream:        true,
		ErrGateway:         true,
		ErrDatabase:        true,
		ErrSystem:          true,
	}
)

const (
	ErrCodeValidation       = "invalid_argument"
	ErrCodeUnauthenticated  = "unauthenticated"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeNotFound         = "not_found"
	ErrCodeQuotaExceeded    = "quota_exceeded"
	ErrCodeGenerationParse  = "generation_parse_error"
	ErrCodeUpstream         = "upstream_error"
	ErrCodeGateway          = "gateway_error"
	ErrCodeInternal         = "internal"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is matches on identity for sentinels. ErrDatabase and ErrSystem share a code,
// so comparing codes would conflate them.
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}
	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}
	return e == t
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsGenerationParse(err error) bool {
	return errors.Is(err, ErrGenerationParse)
}

// Sentinel returns the taxonomy sentinel err resolves to, or nil when err
// carries no mark.
func Sentinel(err error) *InternalError {
	for _, e := range sentinels {
		if errors.Is(err, e) {
			return e
		}
	}
	return nil
}

// HasMark reports whether err already carries a taxonomy mark.
func HasMark(err error) bool {
	return Sentinel(err) != nil
}

// HTTPStatusFromErr returns the status of the sentinel err resolves to,
// falling back to 500.
func HTTPStatusFromErr(err error) int {
	if e := Sentinel(err); e != nil {
		return statusCodeMap[e]
	}
	return http.StatusInternalServerError
}

// CodeFromErr returns the machine-readable code for err.
func CodeFromErr(err error) string {
	if e := Sentinel(err); e != nil {
		return e.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether retrying the same request is likely to help.
// Unmarked errors are treated as transient.
func IsRetryable(err error) bool {
	if e := Sentinel(err); e != nil {
		return retryable[e]
	}
	return true
}
