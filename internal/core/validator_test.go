package core

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"skykeeper/internal/types"
)

type signupForm struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func newTestValidator() *Validator {
	return NewValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidateStruct_Valid(t *testing.T) {
	v := newTestValidator()

	err := v.ValidateStruct(signupForm{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStruct_FieldErrors(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name      string
		form      signupForm
		wantCode  types.ErrorCode
		wantField string
	}{
		{
			name:      "missing name",
			form:      signupForm{Email: "ada@example.com", Password: "correct horse"},
			wantCode:  types.ErrCodeValidationMissingField,
			wantField: "name",
		},
		{
			name:      "invalid email",
			form:      signupForm{Name: "Ada", Email: "not-an-email", Password: "correct horse"},
			wantCode:  types.ErrCodeValidationInvalidEmail,
			wantField: "email",
		},
		{
			name:      "short password",
			form:      signupForm{Name: "Ada", Email: "ada@example.com", Password: "short"},
			wantCode:  types.ErrCodeValidationInvalidField,
			wantField: "password",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStruct(tc.form)
			if err == nil {
				t.Fatal("expected an error")
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T", err)
			}
			if appErr.Code != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, appErr.Code)
			}
			// Field names in details must use the JSON tag, not the Go name.
			if got := appErr.Details["field"]; got != tc.wantField {
				t.Errorf("expected field %q in details, got %v", tc.wantField, got)
			}
		})
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	v := newTestValidator()

	err := v.ValidateStruct("not a struct")
	if err == nil {
		t.Fatal("expected an error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("expected code %s, got %s", types.ErrCodeInternalUnexpected, appErr.Code)
	}
}
