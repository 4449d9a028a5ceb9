package location

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads the reference set.
type Repository interface {
	LoadTriples(ctx context.Context) ([]Triple, error)
}

// PostgresRepository reads the telangana_locations reference table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LoadTriples(ctx context.Context) ([]Triple, error) {
	rows, err := r.db.Query(ctx, `SELECT district, COALESCE(mandal, ''), COALESCE(village, '') FROM telangana_locations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Triple
	for rows.Next() {
		var t Triple
		if err := rows.Scan(&t.District, &t.Mandal, &t.Village); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
