package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists feedback.
type Repository interface {
	Insert(ctx context.Context, f Feedback) (Feedback, error)
	Find(ctx context.Context, q Query) ([]Feedback, error)
}

// PostgresRepository stores feedback in citizen_feedback.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, f Feedback) (Feedback, error) {
	id := uuid.New()
	userID, err := uuid.Parse(f.UserID)
	if err != nil {
		return Feedback{}, fmt.Errorf("user id: %w", err)
	}
	now := time.Now().UTC()
	const query = `
        INSERT INTO citizen_feedback (id, user_id, service_type, rating, feedback_text, title,
            location, location_details, district, mandal, village, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, $12)`
	if _, err := r.db.Exec(ctx, query, id, userID, f.ServiceType, f.Rating, f.Text, f.Title,
		f.Location, f.LocationDetails, f.District, f.Mandal, f.Village, now); err != nil {
		return Feedback{}, err
	}
	f.ID = id.String()
	f.CreatedAt = now
	f.UpdatedAt = now
	return f, nil
}

// Find returns matching feedback, newest first.
func (r *PostgresRepository) Find(ctx context.Context, q Query) ([]Feedback, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.UserID != "" {
		add("user_id::text = $%d", q.UserID)
	}
	if q.District != "" {
		add("district = $%d", q.District)
	}
	if q.Mandal != "" {
		add("mandal = $%d", q.Mandal)
	}
	if q.Village != "" {
		add("village = $%d", q.Village)
	}
	if q.ServiceType != "" {
		add("service_type = $%d", q.ServiceType)
	}
	if q.MinRating > 0 {
		add("rating >= $%d", q.MinRating)
	}
	if q.MaxRating > 0 {
		add("rating <= $%d", q.MaxRating)
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(feedback_text ILIKE $%d OR COALESCE(title, '') ILIKE $%d OR COALESCE(service_type, '') ILIKE $%d)", n, n, n))
	}

	var b strings.Builder
	b.WriteString(`SELECT id::text, COALESCE(user_id::text, ''), COALESCE(service_type, ''), rating, feedback_text,
        COALESCE(title, ''), COALESCE(location, ''), COALESCE(location_details, ''),
        COALESCE(district, ''), COALESCE(mandal, ''), COALESCE(village, ''), created_at, updated_at
        FROM citizen_feedback`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.ServiceType, &f.Rating, &f.Text, &f.Title, &f.Location,
			&f.LocationDetails, &f.District, &f.Mandal, &f.Village, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
