package dashboard

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const recentSQL = `SELECT w.id, w.title, w.status, w.priority, w.created_at,
	COALESCE(c.first_name || ' ' || c.last_name, '') AS created_by_name,
	COALESCE(a.first_name || ' ' || a.last_name, '') AS assigned_to_name
FROM %s w
LEFT JOIN users c ON c.id = w.created_by
LEFT JOIN users a ON a.id = w.assigned_to
ORDER BY w.created_at DESC, w.id DESC
LIMIT ?`

// Repository runs the read-only aggregate queries behind the dashboard.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Count runs a single COUNT(*) statement written with ? placeholders.
func (r *Repository) Count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (r *Repository) Recent(ctx context.Context, table string, limit int) ([]Activity, error) {
	out := []Activity{}
	q := r.db.Rebind(fmt.Sprintf(recentSQL, table))
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("recent %s: %w", table, err)
	}
	return out, nil
}
