// Package handlers contains the HTTP handler implementations for the
// SkyKeeper API.
//
// This file implements the weather snapshot handler. It covers:
//   - Live condition lookup against the weather provider
//   - Save, list, refresh (partial update), and delete of saved snapshots
//   - Ownership enforcement on every record-scoped operation
//   - Route registration
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"skykeeper/internal/core"
	"skykeeper/internal/types"
)

// --- Service Interfaces ---
//
// These interfaces are defined locally following the handler injection
// pattern established in auth.go. The handlers depend on abstractions for
// testability and to avoid coupling to concrete implementations.

// SnapshotStore defines the data access contract for snapshot operations.
// Mirrors the concrete db.SnapshotRepository methods used by this handler.
type SnapshotStore interface {
	Create(ctx context.Context, snap *types.WeatherSnapshot) error
	GetByID(ctx context.Context, id string) (*types.WeatherSnapshot, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*types.WeatherSnapshot, error)
	UpdateFields(ctx context.Context, id string, patch types.SnapshotPatch) (*types.WeatherSnapshot, error)
	Delete(ctx context.Context, id string) error
}

// WeatherProvider fetches current conditions for a city.
type WeatherProvider interface {
	Lookup(ctx context.Context, city string) (*types.Reading, error)
}

// --- Request/Response Models ---

// SaveWeatherRequest is the request body for POST /api/weather/save.
// Numeric fields are pointers so that a missing field is distinguishable
// from a legitimate zero (0 degrees, 0 percent humidity). UserID is
// optional; ownership always comes from the session, but a body that names
// a different user is rejected rather than silently reassigned.
type SaveWeatherRequest struct {
	UserID      string   `json:"userId,omitempty"`
	City        string   `json:"city" validate:"required"`
	Temperature *float64 `json:"temperature" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Humidity    *float64 `json:"humidity" validate:"required,gte=0,lte=100"`
}

// UpdateWeatherRequest is the request body for PUT /api/weather/update/{id}.
// All fields are optional; only the fields present are applied.
type UpdateWeatherRequest struct {
	Temperature *float64   `json:"temperature,omitempty"`
	Description *string    `json:"description,omitempty"`
	Humidity    *float64   `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	RefreshedAt *time.Time `json:"refreshedAt,omitempty"`
}

// DeleteWeatherResponse confirms a completed delete.
type DeleteWeatherResponse struct {
	Message string `json:"message"`
}

// --- Handler ---

// WeatherHandler manages snapshot CRUD and live lookups.
type WeatherHandler struct {
	store     SnapshotStore
	provider  WeatherProvider
	validator *core.Validator
	logger    *slog.Logger
	clock     types.Clock
}

// NewWeatherHandler creates a new WeatherHandler with the provided
// dependencies. If clock is nil, the real clock is used.
func NewWeatherHandler(
	store SnapshotStore,
	provider WeatherProvider,
	v *core.Validator,
	l *slog.Logger,
	clock types.Clock,
) *WeatherHandler {
	if l == nil {
		l = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &WeatherHandler{
		store:     store,
		provider:  provider,
		validator: v,
		logger:    l,
		clock:     clock,
	}
}

// RegisterRoutes mounts weather routes on the provided chi.Router.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Route("/weather", func(r chi.Router) {
		r.Get("/lookup", h.Lookup)
		r.Post("/save", h.Save)
		r.Get("/saved/{userId}", h.List)
		r.Put("/update/{id}", h.Update)
		r.Delete("/delete/{id}", h.Delete)
	})
}

// --- Handler Methods ---

// Lookup handles GET /api/weather/lookup?city=<name>.
// It proxies the weather provider so the API key never reaches clients.
// The response is a live reading; nothing is persisted.
func (h *WeatherHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	if _, ok := types.GetActor(r.Context()); !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	reading, err := h.provider.Lookup(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: reading})
}

// Save handles POST /api/weather/save.
//
//  1. Decode and validate the request.
//  2. Stamp the record with the authenticated user as owner.
//  3. Set savedAt server-side; refreshedAt starts null and stays null until
//     the first refresh.
//  4. Persist and return the stored record.
func (h *WeatherHandler) Save(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	var req SaveWeatherRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.UserID != "" && req.UserID != actor.ID {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionOwnerMismatch,
			"cannot save a snapshot for another user",
			nil,
		))
		return
	}

	snap := &types.WeatherSnapshot{
		ID:          "wx_" + uuid.New().String(),
		OwnerID:     actor.ID,
		City:        strings.TrimSpace(req.City),
		Temperature: *req.Temperature,
		Description: strings.TrimSpace(req.Description),
		Humidity:    *req.Humidity,
		SavedAt:     h.clock.Now(),
		RefreshedAt: nil,
	}

	// Catches whitespace-only city/description that the struct tags let
	// through.
	if err := snap.Validate(); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.Create(r.Context(), snap); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "weather snapshot saved",
		"snapshot_id", snap.ID,
		"city", snap.City,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snap})
}

// List handles GET /api/weather/saved/{userId}.
//
// The path userId must match the authenticated user; a user can never read
// another user's saved snapshots. Records are returned newest-first by
// savedAt, and an empty collection is a successful empty list, not an error.
func (h *WeatherHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	userID := chi.URLParam(r, "userId")
	if userID != actor.ID {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionOwnerMismatch,
			"cannot access another user's weather records",
			nil,
		))
		return
	}

	snaps, err := h.store.ListByOwner(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snaps})
}

// Update handles PUT /api/weather/update/{id}.
//
//  1. Fetch the record; a missing id is 404.
//  2. Verify the authenticated user owns the record.
//  3. Validate the partial payload; refreshedAt must not precede savedAt.
//  4. Apply only the provided fields and return the updated record.
func (h *WeatherHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")

	var req UpdateWeatherRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if existing.OwnerID != actor.ID {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionOwnerMismatch,
			"cannot modify another user's weather record",
			nil,
		))
		return
	}

	if req.RefreshedAt != nil && req.RefreshedAt.Before(existing.SavedAt) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationRefreshTime,
			"refreshedAt must not precede savedAt",
			nil,
			map[string]any{"field": "refreshedAt"},
		))
		return
	}

	// A patch may omit the description, but it can never blank it out.
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationMissingField,
				"description must not be empty",
				nil,
				map[string]any{"field": "description"},
			))
			return
		}
		req.Description = &trimmed
	}

	patch := types.SnapshotPatch{
		Temperature: req.Temperature,
		Description: req.Description,
		Humidity:    req.Humidity,
		RefreshedAt: req.RefreshedAt,
	}

	updated, err := h.store.UpdateFields(r.Context(), id, patch)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "weather snapshot updated",
		"snapshot_id", id,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: updated})
}

// Delete handles DELETE /api/weather/delete/{id}.
//
// The delete is hard: the row is removed, not flagged. Deleting an id that
// does not exist is a 404 so a client retrying a delete can tell "already
// gone" from "still there".
func (h *WeatherHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if existing.OwnerID != actor.ID {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionOwnerMismatch,
			"cannot delete another user's weather record",
			nil,
		))
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "weather snapshot deleted",
		"snapshot_id", id,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: DeleteWeatherResponse{Message: "weather record deleted"},
	})
}
