package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skykeeper/internal/types"
)

func TestAPIClient_LoginAndBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body["email"])
			_, _ = w.Write([]byte(`{"data":{"user":{"id":"usr_1","name":"Ada","email":"ada@example.com"},"token":"tok-123","expiresAt":"2026-02-02T12:00:00Z"}}`))
		case "/api/weather/saved/usr_1":
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"data":[]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, nil)

	result, err := c.Login(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", result.User.ID)
	assert.Equal(t, "tok-123", result.Token)

	c.SetToken(result.Token)
	snaps, err := c.ListSaved(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Empty(t, snaps)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestAPIClient_SaveSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/weather/save", r.URL.Path)

		var payload SavePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "London", payload.City)

		_, _ = w.Write([]byte(`{"data":{"id":"wx_1","ownerId":"usr_1","city":"London","temperature":18.5,"description":"light rain","humidity":72,"savedAt":"2026-02-01T12:00:00Z","refreshedAt":null}}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, nil)
	snap, err := c.SaveSnapshot(context.Background(), SavePayload{
		City:        "London",
		Temperature: 18.5,
		Description: "light rain",
		Humidity:    72,
	})
	require.NoError(t, err)
	assert.Equal(t, "wx_1", snap.ID)
	assert.Nil(t, snap.RefreshedAt)
}

func TestAPIClient_ErrorEnvelopeBecomesAppError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found_snapshot","message":"weather record not found","details":{"id":"wx_ghost"},"request_id":"req-1"}}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, nil)
	err := c.DeleteSnapshot(context.Background(), "wx_ghost")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundSnapshot, appErr.Code)
	assert.Equal(t, "weather record not found", appErr.Message)
	assert.Equal(t, "wx_ghost", appErr.Details["id"])
}

func TestAPIClient_MalformedErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, nil)
	_, err := c.LookupWeather(context.Background(), "London")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
	assert.Contains(t, appErr.Message, "502")
}

func TestAPIClient_LookupEscapesCity(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("city")
		_, _ = w.Write([]byte(`{"data":{"city":"São Paulo","temperature":25,"description":"clear sky","humidity":60}}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, nil)
	reading, err := c.LookupWeather(context.Background(), "São Paulo")
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", gotQuery)
	assert.Equal(t, "São Paulo", reading.City)
}
