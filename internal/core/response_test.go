package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skykeeper/internal/types"
)

// --- JSON helper tests ---

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	data := APIResponse{Data: map[string]string{"city": "London"}}
	JSON(w, r, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	dataMap, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected data to be a map, got %T", body.Data)
	}
	if dataMap["city"] != "London" {
		t.Errorf("expected city=London, got %v", dataMap["city"])
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := types.WithRequestID(r.Context(), "req-marshal-fail")
	r = r.WithContext(ctx)

	// Channels cannot be marshalled to JSON.
	unmarshalable := make(chan int)
	JSON(w, r, http.StatusOK, unmarshalable)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode fallback error: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected code %s, got %s", types.ErrCodeInternalUnexpected, errResp.Error.Code)
	}
	if errResp.Error.RequestID != "req-marshal-fail" {
		t.Errorf("expected request_id req-marshal-fail, got %s", errResp.Error.RequestID)
	}
}

// --- Error helper tests ---

func TestError_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-1"))

	appErr := types.NewAppErrorWithDetails(
		types.ErrCodeNotFoundSnapshot,
		"weather record not found",
		nil,
		map[string]any{"id": "wx_missing"},
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeNotFoundSnapshot) {
		t.Errorf("expected code %s, got %s", types.ErrCodeNotFoundSnapshot, errResp.Error.Code)
	}
	if errResp.Error.Message != "weather record not found" {
		t.Errorf("unexpected message: %s", errResp.Error.Message)
	}
	if errResp.Error.Details["id"] != "wx_missing" {
		t.Errorf("expected details to carry the record id, got %v", errResp.Error.Details)
	}
	if errResp.Error.RequestID != "req-1" {
		t.Errorf("expected request_id req-1, got %s", errResp.Error.RequestID)
	}
}

func TestError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	appErr := types.NewAppError(types.ErrCodeUpstreamWeather, "weather provider unavailable", nil)
	wrapped := errorsJoin("fetching weather: ", appErr)
	Error(w, r, wrapped)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", resp.StatusCode)
	}
}

func TestError_GenericError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, errors.New("database exploded: password=hunter2"))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected code %s, got %s", types.ErrCodeInternalUnexpected, errResp.Error.Code)
	}
	// The internal message must never leak.
	if strings.Contains(errResp.Error.Message, "hunter2") {
		t.Error("internal error message leaked to client")
	}
}

// errorsJoin wraps an error with a prefix, preserving the chain for errors.As.
func errorsJoin(prefix string, err error) error {
	return &wrappedErr{prefix: prefix, err: err}
}

type wrappedErr struct {
	prefix string
	err    error
}

func (w *wrappedErr) Error() string { return w.prefix + w.err.Error() }
func (w *wrappedErr) Unwrap() error { return w.err }

// --- DecodeJSON tests ---

type decodePayload struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
}

func TestDecodeJSON_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"city":"Paris","temperature":21.5}`))

	var dst decodePayload
	if err := DecodeJSON(w, r, &dst); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if dst.City != "Paris" || dst.Temperature != 21.5 {
		t.Errorf("unexpected decode result: %+v", dst)
	}
}

func TestDecodeJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed JSON", `{"city":`},
		{"unknown field", `{"city":"Paris","nope":1}`},
		{"type mismatch", `{"city":"Paris","temperature":"warm"}`},
		{"multiple values", `{"city":"Paris"}{"city":"Lyon"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var dst decodePayload
			err := DecodeJSON(w, r, &dst)
			if err == nil {
				t.Fatal("expected an error")
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T", err)
			}
			if appErr.Code != errCodeValidationInvalidJSON {
				t.Errorf("expected code %s, got %s", errCodeValidationInvalidJSON, appErr.Code)
			}
			if appErr.HTTPStatus() != http.StatusBadRequest {
				t.Errorf("expected 400 status, got %d", appErr.HTTPStatus())
			}
		})
	}
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	big := `{"city":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))

	var dst decodePayload
	err := DecodeJSON(w, r, &dst)
	if err == nil {
		t.Fatal("expected an error for oversized body")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != errCodeValidationInvalidJSON {
		t.Errorf("expected code %s, got %s", errCodeValidationInvalidJSON, appErr.Code)
	}
}
