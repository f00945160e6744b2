// Package weather provides the anti-corruption layer between SkyKeeper
// domain logic and the upstream weather provider. All outbound HTTP calls
// are routed through the baseClient, which enforces circuit breaking, trace
// propagation, and error mapping.
//
// Lookups are deliberately single-shot: a failed fetch is reported to the
// caller rather than retried, and the circuit breaker protects the provider
// from hammering when it is down.
package weather

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"skykeeper/internal/types"
)

// baseClient wraps an *http.Client and a circuit breaker for outbound calls
// to the weather provider.
type baseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// newBaseClient creates a baseClient with the given http client and breaker
// name.
func newBaseClient(httpClient *http.Client, breakerName, userAgent string) *baseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &baseClient{
		client:    httpClient,
		breaker:   cb,
		userAgent: userAgent,
	}
}

// do executes the HTTP request with:
//  1. Trace ID injection (X-Request-Id from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping
//  4. Error mapping to types.AppError
//
// On success (any response with status < 500 and not 429), do returns the
// response as-is; the caller is responsible for closing the body and
// interpreting 4xx statuses. There is no retry: a failed attempt counts
// against the breaker and is reported immediately.
func (c *baseClient) do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// Treat 5xx and 429 as errors for the circuit breaker.
		if r.StatusCode >= 500 {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		if r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned 429")
		}
		return r, nil
	})

	if err == nil {
		return resp, nil
	}

	// Close the failed response body before mapping the error.
	if resp != nil {
		resp.Body.Close()
	}

	return nil, c.mapError(resp, err)
}

// mapError translates HTTP-level failures into domain-level AppErrors.
func (c *baseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"circuit breaker is open; weather provider unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				"weather provider rate limit exceeded",
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamWeather,
				fmt.Sprintf("weather provider returned %d", resp.StatusCode),
				err,
			)
		}
	}

	// Generic upstream failure (network error, DNS failure, timeout).
	return types.NewAppError(
		types.ErrCodeUpstreamWeather,
		"weather provider request failed",
		err,
	)
}
