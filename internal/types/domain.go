package types

import (
	"strings"
	"time"
)

// WeatherSnapshot is the core domain entity: one persisted weather reading for
// a city at a point in time, owned by a user.
//
// Invariants:
//   - ID is assigned once at creation ("wx_" + uuid) and never reused.
//   - OwnerID, City, Temperature, Description, Humidity are always present on
//     a persisted snapshot.
//   - SavedAt is set exactly once, at creation.
//   - RefreshedAt is nil until the first refresh; when set it is >= SavedAt.
type WeatherSnapshot struct {
	ID      string `json:"id" db:"id"`
	OwnerID string `json:"ownerId" db:"owner_id"`

	City        string  `json:"city" db:"city"`
	Temperature float64 `json:"temperature" db:"temperature"`
	Description string  `json:"description" db:"description"`
	Humidity    float64 `json:"humidity" db:"humidity"`

	SavedAt     time.Time  `json:"savedAt" db:"saved_at"`
	RefreshedAt *time.Time `json:"refreshedAt" db:"refreshed_at"`
}

// Validate checks the required-field shape enforced at creation time.
// ID and SavedAt are stamped by the service and are not checked here.
func (s *WeatherSnapshot) Validate() error {
	missing := func(field string) error {
		return NewAppErrorWithDetails(
			ErrCodeValidationMissingField,
			"missing required field",
			nil,
			map[string]any{"field": field},
		)
	}
	if s.OwnerID == "" {
		return missing("ownerId")
	}
	if strings.TrimSpace(s.City) == "" {
		return missing("city")
	}
	if strings.TrimSpace(s.Description) == "" {
		return missing("description")
	}
	return nil
}

// SnapshotPatch carries the partial update applied by the refresh flow.
// Nil fields are left untouched; ID, OwnerID, City, and SavedAt can never be
// patched.
type SnapshotPatch struct {
	Temperature *float64   `json:"temperature,omitempty"`
	Description *string    `json:"description,omitempty"`
	Humidity    *float64   `json:"humidity,omitempty"`
	RefreshedAt *time.Time `json:"refreshedAt,omitempty"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p SnapshotPatch) IsEmpty() bool {
	return p.Temperature == nil && p.Description == nil &&
		p.Humidity == nil && p.RefreshedAt == nil
}

// User is the account entity managed by the authentication subsystem.
// PasswordHash never leaves the auth layer.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Session is the bearer credential handed to a client after signup or login.
type Session struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Reading is the result of a live weather lookup, independent of persistence.
// City carries the provider's canonical city name, which may differ in casing
// or spelling from the query.
type Reading struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
}
