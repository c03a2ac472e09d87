package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "\n")
}

// required secrets per environment; development runs without external providers
var requirements = map[Environment][]string{
	Development: {"JWT_SECRET"},
	Test:        {"JWT_SECRET"},
	CI:          {"JWT_SECRET", "DB_PASSWORD"},
	Production: {
		"JWT_SECRET",
		"DB_PASSWORD",
		"DEEPSEEK_API_KEY",
		"OPENAI_API_KEY",
		"MERCADOPAGO_ACCESS_TOKEN",
	},
}

// ValidateConfig checks struct rules and the secrets required by the environment
func ValidateConfig(cfg *Config) error {
	var errs ValidationErrors

	if err := validator.New().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if ok := asValidationErrors(err, &fieldErrs); ok {
			for _, fe := range fieldErrs {
				errs = append(errs, ValidationError{Field: fe.Namespace(), Message: "failed " + fe.Tag()})
			}
		} else {
			errs = append(errs, ValidationError{Field: "config", Message: err.Error()})
		}
	}

	values := map[string]string{
		"JWT_SECRET":               cfg.JWT.Secret,
		"DB_PASSWORD":              cfg.DB.Password,
		"DEEPSEEK_API_KEY":         cfg.LLM.APIKey,
		"OPENAI_API_KEY":           cfg.Image.APIKey,
		"MERCADOPAGO_ACCESS_TOKEN": cfg.Gateway.AccessToken,
	}
	for _, name := range requirements[cfg.Environment()] {
		if values[name] == "" {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("required in %s (environment variable or secret %s)", cfg.Environment(), strings.ToLower(name)),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = fieldErrs
	}
	return ok
}
