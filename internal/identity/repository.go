package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no citizen profile exists for the key.
var ErrNotFound = errors.New("citizen profile not found")

// Repository persists citizen profiles in the users table.
type Repository interface {
	UpsertCitizen(ctx context.Context, citizen Citizen) (Citizen, error)
	FindCitizenByAuthUserID(ctx context.Context, authUserID string) (Citizen, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed citizen repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertCitizen inserts or updates the profile keyed by auth_user_id and
// returns the stored row.
func (r *PostgresRepository) UpsertCitizen(ctx context.Context, c Citizen) (Citizen, error) {
	authID, err := uuid.Parse(c.AuthUserID)
	if err != nil {
		return Citizen{}, err
	}
	id := uuid.New()
	now := time.Now().UTC()

	const query = `
        INSERT INTO users (id, auth_user_id, name, age, gender, phone_number, locality,
            district, mandal, village, role, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
        ON CONFLICT (auth_user_id) DO UPDATE SET
            name = EXCLUDED.name,
            age = EXCLUDED.age,
            gender = EXCLUDED.gender,
            phone_number = EXCLUDED.phone_number,
            locality = EXCLUDED.locality,
            district = EXCLUDED.district,
            mandal = EXCLUDED.mandal,
            village = EXCLUDED.village,
            updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`

	var (
		storedID           uuid.UUID
		createdAt, updated time.Time
	)
	err = r.db.QueryRow(ctx, query, id, authID, c.Name, c.Age, nullable(string(c.Gender)), c.PhoneNumber,
		nullable(c.Locality), c.District, c.Mandal, c.Village, string(RoleCitizen), now).
		Scan(&storedID, &createdAt, &updated)
	if err != nil {
		return Citizen{}, err
	}
	c.ID = storedID.String()
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updated.UTC()
	return c, nil
}

// FindCitizenByAuthUserID fetches the profile linked to a backend auth user.
func (r *PostgresRepository) FindCitizenByAuthUserID(ctx context.Context, authUserID string) (Citizen, error) {
	authID, err := uuid.Parse(authUserID)
	if err != nil {
		return Citizen{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, name, COALESCE(age, 0), gender, phone_number, locality,
            COALESCE(district, ''), COALESCE(mandal, ''), COALESCE(village, ''), created_at, updated_at
        FROM users WHERE auth_user_id = $1 AND role = $2`, authID, string(RoleCitizen))

	var (
		id               uuid.UUID
		gender, locality *string
		c                = Citizen{AuthUserID: authUserID}
	)
	if err := row.Scan(&id, &c.Name, &c.Age, &gender, &c.PhoneNumber, &locality,
		&c.District, &c.Mandal, &c.Village, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Citizen{}, ErrNotFound
		}
		return Citizen{}, err
	}
	c.ID = id.String()
	if gender != nil {
		c.Gender = Gender(*gender)
	}
	if locality != nil {
		c.Locality = *locality
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
