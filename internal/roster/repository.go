package roster

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository looks up roster entries.
type Repository interface {
	FindByCredentials(ctx context.Context, creds Credentials) (Entry, error)
}

// PostgresRepository reads the employees table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByCredentials(ctx context.Context, creds Credentials) (Entry, error) {
	const query = `
        SELECT id::text, name, department, employee_id, COALESCE(phone_number, ''),
               COALESCE(district, ''), COALESCE(mandal, ''), COALESCE(village, '')
        FROM employees
        WHERE name = $1 AND department = $2 AND employee_id = $3
        LIMIT 1`
	var e Entry
	err := r.db.QueryRow(ctx, query, creds.Name, creds.Department, creds.EmployeeID).
		Scan(&e.ID, &e.Name, &e.Department, &e.EmployeeID, &e.PhoneNumber, &e.District, &e.Mandal, &e.Village)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrInvalidCredentials
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}
