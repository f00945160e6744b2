package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skykeeper/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows ---

// snapshotMockRows implements pgx.Rows for list queries over snapshot rows.
type snapshotMockRows struct {
	data    []types.WeatherSnapshot
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newSnapshotMockRows(data ...types.WeatherSnapshot) *snapshotMockRows {
	return &snapshotMockRows{data: data, idx: -1}
}

func (r *snapshotMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *snapshotMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	*dest[0].(*string) = row.ID
	*dest[1].(*string) = row.OwnerID
	*dest[2].(*string) = row.City
	*dest[3].(*float64) = row.Temperature
	*dest[4].(*string) = row.Description
	*dest[5].(*float64) = row.Humidity
	*dest[6].(*time.Time) = row.SavedAt
	*dest[7].(**time.Time) = row.RefreshedAt
	return nil
}

func (r *snapshotMockRows) Close()                                        { r.closed = true }
func (r *snapshotMockRows) Err() error                                    { return r.errVal }
func (r *snapshotMockRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (r *snapshotMockRows) FieldDescriptions() []pgconn.FieldDescription  { return nil }
func (r *snapshotMockRows) RawValues() [][]byte                           { return nil }
func (r *snapshotMockRows) Values() ([]any, error)                        { return nil, nil }
func (r *snapshotMockRows) Conn() *pgx.Conn                               { return nil }

func testSnapshot(id string) types.WeatherSnapshot {
	return types.WeatherSnapshot{
		ID:          id,
		OwnerID:     "usr_1",
		City:        "London",
		Temperature: 11.5,
		Description: "light rain",
		Humidity:    82,
		SavedAt:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

// ============================================================
// Create Tests
// ============================================================

func TestSnapshotRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	snap := testSnapshot("wx_create1")

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(ctx, &snap)
	require.NoError(t, err)
	db.AssertExpectations(t)

	// The insert carries all eight columns in snapColumns order.
	args := db.Calls[0].Arguments.Get(2).([]any)
	require.Len(t, args, 8)
	assert.Equal(t, "wx_create1", args[0])
	assert.Equal(t, "usr_1", args[1])
	assert.Nil(t, args[7]) // refreshed_at is nil at creation
}

func TestSnapshotRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	snap := testSnapshot("wx_create2")

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Create(ctx, &snap)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// ============================================================
// GetByID Tests
// ============================================================

func TestSnapshotRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	refreshed := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "wx_abc"
			*dest[1].(*string) = "usr_1"
			*dest[2].(*string) = "Tokyo"
			*dest[3].(*float64) = 18.2
			*dest[4].(*string) = "clear sky"
			*dest[5].(*float64) = 40
			*dest[6].(*time.Time) = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
			*dest[7].(**time.Time) = &refreshed
			return nil
		},
	}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"wx_abc"}).Return(row)

	snap, err := repo.GetByID(ctx, "wx_abc")
	require.NoError(t, err)
	assert.Equal(t, "wx_abc", snap.ID)
	assert.Equal(t, "usr_1", snap.OwnerID)
	assert.Equal(t, "Tokyo", snap.City)
	assert.Equal(t, 18.2, snap.Temperature)
	require.NotNil(t, snap.RefreshedAt)
	assert.Equal(t, refreshed, *snap.RefreshedAt)

	db.AssertExpectations(t)
}

func TestSnapshotRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"wx_missing"}).Return(row)

	_, err := repo.GetByID(ctx, "wx_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundSnapshot, appErr.Code)
}

// ============================================================
// ListByOwner Tests
// ============================================================

func TestSnapshotRepository_ListByOwner_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	newer := testSnapshot("wx_newer")
	newer.SavedAt = time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	older := testSnapshot("wx_older")

	db.On("Query", ctx, mock.AnythingOfType("string"), []any{"usr_1"}).
		Return(newSnapshotMockRows(newer, older), nil)

	results, err := repo.ListByOwner(ctx, "usr_1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "wx_newer", results[0].ID)
	assert.Equal(t, "wx_older", results[1].ID)

	db.AssertExpectations(t)
}

func TestSnapshotRepository_ListByOwner_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), []any{"usr_new"}).
		Return(newSnapshotMockRows(), nil)

	results, err := repo.ListByOwner(ctx, "usr_new")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSnapshotRepository_ListByOwner_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("timeout"))

	_, err := repo.ListByOwner(ctx, "usr_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// ============================================================
// UpdateFields Tests
// ============================================================

func TestSnapshotRepository_UpdateFields_PartialPatch(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	temp := 21.0
	refreshed := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "wx_abc"
			*dest[1].(*string) = "usr_1"
			*dest[2].(*string) = "London"
			*dest[3].(*float64) = temp
			*dest[4].(*string) = "light rain"
			*dest[5].(*float64) = 82
			*dest[6].(*time.Time) = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
			*dest[7].(**time.Time) = &refreshed
			return nil
		},
	}

	// temperature + refreshed_at patched, then the id: three placeholders.
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{temp, refreshed, "wx_abc"}).
		Return(row)

	snap, err := repo.UpdateFields(ctx, "wx_abc", types.SnapshotPatch{
		Temperature: &temp,
		RefreshedAt: &refreshed,
	})
	require.NoError(t, err)
	assert.Equal(t, temp, snap.Temperature)
	require.NotNil(t, snap.RefreshedAt)
	assert.Equal(t, refreshed, *snap.RefreshedAt)

	db.AssertExpectations(t)
}

func TestSnapshotRepository_UpdateFields_EmptyPatch(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)

	_, err := repo.UpdateFields(context.Background(), "wx_abc", types.SnapshotPatch{})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)

	// No statement may reach the database for an empty patch.
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestSnapshotRepository_UpdateFields_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	desc := "overcast"
	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.UpdateFields(ctx, "wx_gone", types.SnapshotPatch{Description: &desc})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundSnapshot, appErr.Code)
}

// ============================================================
// Delete Tests
// ============================================================

func TestSnapshotRepository_Delete_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"wx_abc"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	err := repo.Delete(ctx, "wx_abc")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSnapshotRepository_Delete_AlreadyGone(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"wx_abc"}).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(ctx, "wx_abc")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundSnapshot, appErr.Code)
}

func TestSnapshotRepository_Delete_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection reset"))

	err := repo.Delete(ctx, "wx_abc")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
