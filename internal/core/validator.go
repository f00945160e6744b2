package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"skykeeper/internal/types"
)

// Validator wraps go-playground/validator so handlers can validate request
// payloads and receive structured AppErrors instead of raw validation
// errors. Field names in error details use the JSON tag, matching what the
// client actually sent.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator with JSON tag names registered.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates the given struct against its `validate` tags.
// It returns a *types.AppError (400) describing the first failing field, or
// nil if validation passes.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// Programming error: a non-struct was passed in.
		v.logger.Error("validator received invalid value", "error", err.Error())
		return types.NewAppError(types.ErrCodeInternalUnexpected, "an unexpected error occurred", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidField, "request validation failed", err)
	}

	fe := fieldErrs[0]
	details := map[string]any{"field": fe.Field()}

	switch fe.Tag() {
	case "required":
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"missing required field: "+fe.Field(),
			nil,
			details,
		)
	case "email":
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidEmail,
			"invalid email address",
			nil,
			details,
		)
	default:
		details["rule"] = fe.Tag()
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidField,
			"invalid value for field: "+fe.Field(),
			nil,
			details,
		)
	}
}
