package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"skykeeper/internal/types"
)

// SnapshotRepository provides data access for the weather_snapshots table.
// It is the durable mapping from snapshot id to record, plus the secondary
// lookup "all snapshots with a given owner, ordered by saved_at descending".
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new SnapshotRepository backed by the
// given database connection (pool or transaction).
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// snapColumns defines the standard set of columns selected for snapshot queries.
const snapColumns = `s.id, s.owner_id, s.city, s.temperature, s.description, s.humidity,
	s.saved_at, s.refreshed_at`

// scanSnapshot scans a single snapshot row. The columns must match the order
// defined in snapColumns. Works for both pgx.Row and pgx.Rows since both
// expose Scan.
func scanSnapshot(row pgx.Row) (*types.WeatherSnapshot, error) {
	var snap types.WeatherSnapshot
	err := row.Scan(
		&snap.ID,
		&snap.OwnerID,
		&snap.City,
		&snap.Temperature,
		&snap.Description,
		&snap.Humidity,
		&snap.SavedAt,
		&snap.RefreshedAt,
	)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Create inserts a new snapshot record. The caller must set the ID (prefixed
// UUID, e.g. "wx_...") and stamp SavedAt before calling; RefreshedAt must be
// nil at creation. Required-field shape is enforced by NOT NULL columns as a
// backstop to the service-level validation.
func (r *SnapshotRepository) Create(ctx context.Context, snap *types.WeatherSnapshot) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO weather_snapshots (
			id, owner_id, city, temperature, description, humidity,
			saved_at, refreshed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.ID,
		snap.OwnerID,
		snap.City,
		snap.Temperature,
		snap.Description,
		snap.Humidity,
		snap.SavedAt,
		snap.RefreshedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create snapshot", err)
	}
	return nil
}

// GetByID retrieves a snapshot by its id. Returns ErrCodeNotFoundSnapshot if
// no current record resolves to the id. Ownership is enforced by the caller,
// which needs the record either way to compare owner ids.
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*types.WeatherSnapshot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+snapColumns+`
		 FROM weather_snapshots s
		 WHERE s.id = $1`,
		id,
	)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSnapshot, "snapshot not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve snapshot", err)
	}
	return snap, nil
}

// ListByOwner retrieves all snapshots owned by ownerID, newest saved_at first.
// An owner with no snapshots yields an empty slice, not an error.
func (r *SnapshotRepository) ListByOwner(ctx context.Context, ownerID string) ([]*types.WeatherSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+snapColumns+`
		 FROM weather_snapshots s
		 WHERE s.owner_id = $1
		 ORDER BY s.saved_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list snapshots", err)
	}
	defer rows.Close()

	results := []*types.WeatherSnapshot{}
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan snapshot row", scanErr)
		}
		results = append(results, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating snapshot rows", err)
	}

	return results, nil
}

// UpdateFields applies a partial update to an existing snapshot and returns
// the full updated record. Only the fields present in the patch are written;
// id, owner_id, city, and saved_at can never change. Returns
// ErrCodeNotFoundSnapshot when the id does not resolve to a current record
// (including a record deleted by a concurrent request).
func (r *SnapshotRepository) UpdateFields(ctx context.Context, id string, patch types.SnapshotPatch) (*types.WeatherSnapshot, error) {
	if patch.IsEmpty() {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "update requires at least one field", nil)
	}

	var setClauses []string
	var args []any
	argIdx := 1

	addSet := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.Temperature != nil {
		addSet("temperature", *patch.Temperature)
	}
	if patch.Description != nil {
		addSet("description", *patch.Description)
	}
	if patch.Humidity != nil {
		addSet("humidity", *patch.Humidity)
	}
	if patch.RefreshedAt != nil {
		addSet("refreshed_at", *patch.RefreshedAt)
	}

	query := fmt.Sprintf(
		`UPDATE weather_snapshots SET %s
		 WHERE id = $%d
		 RETURNING id, owner_id, city, temperature, description, humidity, saved_at, refreshed_at`,
		strings.Join(setClauses, ", "),
		argIdx,
	)
	args = append(args, id)

	snap, err := scanSnapshot(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSnapshot, "snapshot not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update snapshot", err)
	}
	return snap, nil
}

// Delete removes a snapshot permanently. A second delete of the same id fails
// with ErrCodeNotFoundSnapshot (idempotent-failure, not idempotent-success).
// Ids are uuid-based and never reused after deletion.
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM weather_snapshots WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete snapshot", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSnapshot, "snapshot not found", nil)
	}
	return nil
}
