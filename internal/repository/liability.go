package repository

import (
	"context"
	"database/sql"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
)

type LiabilityRepository struct {
	db *sql.DB
}

func NewLiabilityRepository(db *sql.DB) *LiabilityRepository {
	return &LiabilityRepository{db: db}
}

func (r *LiabilityRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM liabilities WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListUnpaid returns all unpaid liabilities ordered by due date, nearest
// first.
func (r *LiabilityRepository) ListUnpaid(ctx context.Context) ([]domain.Liability, error) {
	const query = `SELECT id, name, amount, due_date, paid FROM liabilities WHERE paid = false ORDER BY due_date`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Liability
	for rows.Next() {
		var l domain.Liability
		if err := rows.Scan(&l.ID, &l.Name, &l.Amount, &l.DueDate, &l.Paid); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
