package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository maps verified phones to backend auth users.
type UserRepository interface {
	EnsureByPhone(ctx context.Context, phone string) (User, error)
}

// PostgresUserRepository stores auth users in the auth_users table.
type PostgresUserRepository struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// EnsureByPhone returns the auth user for phone, creating it on first sign-in.
func (r *PostgresUserRepository) EnsureByPhone(ctx context.Context, phone string) (User, error) {
	const query = `
        INSERT INTO auth_users (id, phone, created_at, last_sign_in_at)
        VALUES ($1, $2, $3, $3)
        ON CONFLICT (phone) DO UPDATE SET last_sign_in_at = EXCLUDED.last_sign_in_at
        RETURNING id, phone, created_at`

	var (
		id   uuid.UUID
		user User
	)
	if err := r.db.QueryRow(ctx, query, uuid.New(), phone, time.Now().UTC()).Scan(&id, &user.Phone, &user.CreatedAt); err != nil {
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
