package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"skykeeper/internal/types"
)

// AuthResult is the decoded payload of a signup or login call.
type AuthResult struct {
	User      *types.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// SavePayload is the request body for saving a snapshot.
type SavePayload struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
}

// UpdatePayload is the partial request body for refreshing a snapshot.
// Only non-nil fields are sent.
type UpdatePayload struct {
	Temperature *float64   `json:"temperature,omitempty"`
	Description *string    `json:"description,omitempty"`
	Humidity    *float64   `json:"humidity,omitempty"`
	RefreshedAt *time.Time `json:"refreshedAt,omitempty"`
}

// APIClient is a typed client for the SkyKeeper API. Server errors are
// decoded from the error envelope back into *types.AppError, so callers can
// branch on error codes the same way server code does.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewAPIClient creates a client for the API at baseURL. If httpClient is
// nil, a default client with a 15 second timeout is used.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SetToken sets the bearer token presented on subsequent requests.
func (c *APIClient) SetToken(token string) {
	c.token = token
}

// Signup registers a new account.
func (c *APIClient) Signup(ctx context.Context, name, email, password string) (*AuthResult, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login exchanges credentials for a session token.
func (c *APIClient) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LookupWeather fetches a live reading for the city.
func (c *APIClient) LookupWeather(ctx context.Context, city string) (*types.Reading, error) {
	path := "/api/weather/lookup?city=" + url.QueryEscape(city)
	var reading types.Reading
	if err := c.do(ctx, http.MethodGet, path, nil, &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// SaveSnapshot persists a weather snapshot and returns the stored record.
func (c *APIClient) SaveSnapshot(ctx context.Context, payload SavePayload) (*types.WeatherSnapshot, error) {
	var snap types.WeatherSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/weather/save", payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSaved returns the user's saved snapshots, newest-first.
func (c *APIClient) ListSaved(ctx context.Context, userID string) ([]*types.WeatherSnapshot, error) {
	path := "/api/weather/saved/" + url.PathEscape(userID)
	snaps := []*types.WeatherSnapshot{}
	if err := c.do(ctx, http.MethodGet, path, nil, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// UpdateSnapshot applies a partial update and returns the updated record.
func (c *APIClient) UpdateSnapshot(ctx context.Context, id string, payload UpdatePayload) (*types.WeatherSnapshot, error) {
	path := "/api/weather/update/" + url.PathEscape(id)
	var snap types.WeatherSnapshot
	if err := c.do(ctx, http.MethodPut, path, payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteSnapshot removes a saved snapshot on the server.
func (c *APIClient) DeleteSnapshot(ctx context.Context, id string) error {
	path := "/api/weather/delete/" + url.PathEscape(id)
	var confirmation struct {
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodDelete, path, nil, &confirmation)
}

// do executes one request against the API. The response envelope's data
// field is decoded into dst when dst is non-nil; error envelopes are decoded
// into *types.AppError.
func (c *APIClient) do(ctx context.Context, method, path string, body, dst any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	// Correlates client-side failures with server request logs.
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to server failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if dst == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response envelope: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// decodeAPIError rebuilds a *types.AppError from the server error envelope.
// When the body is not a well-formed envelope, a generic error carrying the
// HTTP status is returned instead.
func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("server returned %d", resp.StatusCode),
			err,
		)
	}

	return types.NewAppErrorWithDetails(
		types.ErrorCode(envelope.Error.Code),
		envelope.Error.Message,
		nil,
		envelope.Error.Details,
	)
}
