package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"skykeeper/internal/config"
	"skykeeper/internal/types"
)

// userAgent identifies SkyKeeper to the weather provider.
const userAgent = "skykeeper/1.0"

// OpenWeatherClient fetches current conditions from the OpenWeather API.
// The API key never leaves the server; clients only ever see normalized
// Reading values.
type OpenWeatherClient struct {
	baseURL string
	apiKey  types.SecretString
	base    *baseClient
	logger  *slog.Logger
}

// NewOpenWeatherClient creates a client from the weather provider config.
func NewOpenWeatherClient(cfg config.WeatherConfig, logger *slog.Logger) *OpenWeatherClient {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &OpenWeatherClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		base:    newBaseClient(httpClient, "openweather", userAgent),
		logger:  logger,
	}
}

// openWeatherResponse mirrors the subset of the provider payload we consume.
type openWeatherResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Lookup fetches current conditions for the named city. The city is trimmed
// before use; an empty city fails validation without touching the network.
//
// Error codes:
//   - validation_missing_required_field: city is empty after trimming.
//   - not_found_city: the provider does not recognize the city.
//   - upstream_weather_unavailable: provider errors, bad responses, network
//     failures, or an open circuit breaker.
//   - upstream_rate_limited: the provider rejected the call with 429.
func (c *OpenWeatherClient) Lookup(ctx context.Context, city string) (*types.Reading, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"missing required field: city",
			nil,
			map[string]any{"field": "city"},
		)
	}

	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", c.apiKey.Unmask())
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build provider request", err)
	}

	resp, err := c.base.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Fall through to decoding below.
	case http.StatusNotFound:
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeNotFoundCity,
			"city not found: "+city,
			nil,
			map[string]any{"city": city},
		)
	case http.StatusUnauthorized:
		// A rejected API key is an operator problem, not a caller problem.
		c.logger.Error("weather provider rejected the API key")
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"weather provider rejected the request",
			nil,
		)
	default:
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			fmt.Sprintf("weather provider returned %d", resp.StatusCode),
			nil,
		)
	}

	var payload openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"failed to decode weather provider response",
			err,
		)
	}

	reading := &types.Reading{
		// Prefer the provider's canonical city name ("london" -> "London").
		City:        payload.Name,
		Temperature: payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
	}
	if reading.City == "" {
		reading.City = city
	}
	if len(payload.Weather) > 0 {
		reading.Description = payload.Weather[0].Description
	}

	return reading, nil
}
