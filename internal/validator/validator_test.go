package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/quecocinohoy/backend/internal/errors"
)

type signup struct {
	Email    string   `validate:"required,email"`
	Password string   `validate:"required,min=8"`
	Tags     []string `validate:"max=2"`
}

func TestValidateRequest(t *testing.T) {
	require.NoError(t, ValidateRequest(signup{Email: "ana@example.com", Password: "password123"}))

	err := ValidateRequest(signup{Email: "not-an-email", Password: "short", Tags: []string{"a", "b", "c"}})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	assert.Equal(t, "Revisá los datos enviados.", ierr.DisplayMessage(err))
	assert.Equal(t, map[string]any{
		"Email":    "email",
		"Password": "min",
		"Tags":     "max",
	}, ierr.ReportableDetails(err))
}

func TestGetValidator_Shared(t *testing.T) {
	assert.Same(t, GetValidator(), GetValidator())
}
