package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"

	ierr "github.com/quecocinohoy/backend/internal/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the shared validator instance
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateRequest validates a DTO and returns an ErrValidation-marked error
// carrying the failing fields as details.
func ValidateRequest(req interface{}) error {
	if err := GetValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fe := range validateErrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return ierr.WithError(err).
			WithHint("Revisá los datos enviados.").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
