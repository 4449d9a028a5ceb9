package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
)

// Repository persists broadcasts.
type Repository interface {
	Insert(ctx context.Context, m Message) (Message, error)
	ListFor(ctx context.Context, a Audience) ([]Message, error)
}

// PostgresRepository stores broadcasts in the messages table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, m Message) (Message, error) {
	id := uuid.New()
	now := time.Now().UTC()
	roles := make([]string, len(m.TargetRoles))
	for i, role := range m.TargetRoles {
		roles[i] = string(role)
	}
	const query = `
        INSERT INTO messages (id, sender_id, sender_name, department, title, content, urgency,
            district, mandal, village, target_roles, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12)`
	if _, err := r.db.Exec(ctx, query, id, m.SenderID, m.SenderName, m.Department, m.Title, m.Content,
		string(m.Urgency), m.District, m.Mandal, m.Village, roles, now); err != nil {
		return Message{}, err
	}
	m.ID = id.String()
	m.CreatedAt = now
	return m, nil
}

// ListFor returns messages visible to a, newest first.
func (r *PostgresRepository) ListFor(ctx context.Context, a Audience) ([]Message, error) {
	const query = `
        SELECT id::text, sender_id, sender_name, department, title, content, urgency,
            district, COALESCE(mandal, ''), COALESCE(village, ''), target_roles, created_at
        FROM messages
        WHERE district = $1
          AND (mandal IS NULL OR mandal = $2)
          AND (village IS NULL OR village = $3)
          AND $4 = ANY(target_roles)
        ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, a.District, a.Mandal, a.Village, string(a.Role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m       Message
			urgency string
			roles   []string
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Department, &m.Title, &m.Content, &urgency,
			&m.District, &m.Mandal, &m.Village, &roles, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Urgency = Urgency(urgency)
		for _, role := range roles {
			m.TargetRoles = append(m.TargetRoles, identity.Role(role))
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
