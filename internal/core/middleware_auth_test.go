package core

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"skykeeper/internal/config"
	"skykeeper/internal/types"
)

// fakeAuthenticator is a function-field mock for the Authenticator interface.
type fakeAuthenticator struct {
	resolveFunc func(ctx context.Context, token string) (*types.Actor, error)
}

func (f *fakeAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	return f.resolveFunc(ctx, token)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewServer(&config.Config{}, logger)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s
}

// echoActorHandler writes the Actor id from context, or "none".
func echoActorHandler(w http.ResponseWriter, r *http.Request) {
	if actor, ok := types.GetActor(r.Context()); ok {
		_, _ = w.Write([]byte(actor.ID))
		return
	}
	_, _ = w.Write([]byte("none"))
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	s := newTestServer(t)
	s.Authenticator = &fakeAuthenticator{
		resolveFunc: func(ctx context.Context, token string) (*types.Actor, error) {
			if token != "good-token" {
				t.Errorf("expected token good-token, got %q", token)
			}
			return &types.Actor{ID: "usr_1", Name: "Ada"}, nil
		},
	}

	handler := s.AuthMiddleware(http.HandlerFunc(echoActorHandler))

	r := httptest.NewRequest(http.MethodGet, "/api/weather/saved/usr_1", nil)
	r.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "usr_1" {
		t.Errorf("expected actor id usr_1 in context, got %q", body)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	s := newTestServer(t)
	s.Authenticator = &fakeAuthenticator{
		resolveFunc: func(ctx context.Context, token string) (*types.Actor, error) {
			t.Fatal("ResolveToken must not be called without a header")
			return nil, nil
		},
	}

	handler := s.AuthMiddleware(http.HandlerFunc(echoActorHandler))

	r := httptest.NewRequest(http.MethodGet, "/api/weather/save", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	var resp APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeAuthTokenMissing) {
		t.Errorf("expected code %s, got %s", types.ErrCodeAuthTokenMissing, resp.Error.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	s := newTestServer(t)
	s.Authenticator = &fakeAuthenticator{
		resolveFunc: func(ctx context.Context, token string) (*types.Actor, error) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token expired", nil)
		},
	}

	handler := s.AuthMiddleware(http.HandlerFunc(echoActorHandler))

	r := httptest.NewRequest(http.MethodGet, "/api/weather/save", nil)
	r.Header.Set("Authorization", "Bearer stale-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	var resp APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeAuthTokenExpired) {
		t.Errorf("expected code %s, got %s", types.ErrCodeAuthTokenExpired, resp.Error.Code)
	}
}

func TestAuthMiddleware_PublicPathsBypass(t *testing.T) {
	s := newTestServer(t)
	s.Authenticator = &fakeAuthenticator{
		resolveFunc: func(ctx context.Context, token string) (*types.Actor, error) {
			t.Fatal("ResolveToken must not be called for public paths")
			return nil, nil
		},
	}

	handler := s.AuthMiddleware(http.HandlerFunc(echoActorHandler))

	for _, path := range []string{"/health", "/api/auth/signup", "/api/auth/login"} {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("path %s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"trailing space", "Bearer abc123  ", "abc123"},
		{"empty token", "Bearer ", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"no scheme", "abc123", ""},
		{"empty header", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractBearerToken(tc.header); got != tc.want {
				t.Errorf("extractBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}
