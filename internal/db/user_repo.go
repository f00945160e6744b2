package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"skykeeper/internal/types"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// UserRepository provides data access for the users table. It backs the
// authentication subsystem; weather handlers only ever see the opaque user id.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. The caller must set the ID ("usr_" + uuid) and
// the bcrypt password hash. A duplicate email maps to ErrCodeConflictEmail.
func (r *UserRepository) Create(ctx context.Context, user *types.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return types.NewAppError(types.ErrCodeConflictEmail, "email already registered", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// GetByEmail retrieves a user by email address. Returns ErrCodeAuthUserNotFound
// when no user exists; the auth service masks that as invalid credentials for
// enumeration protection.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	return r.getOne(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM users WHERE email = $1`,
		email,
	)
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	return r.getOne(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM users WHERE id = $1`,
		id,
	)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*types.User, error) {
	var user types.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthUserNotFound, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return &user, nil
}
