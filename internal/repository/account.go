package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
)

// AccountRepository is the ledger accessor: balance, type and credit headroom
// reads for a single account or a set of accounts.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT id, name, account_type, available_balance, total_limit, available_credit FROM accounts WHERE id = $1`

	var a domain.Account
	var totalLimit, availableCredit sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.Name,
		&a.Type,
		&a.AvailableBalance,
		&totalLimit,
		&availableCredit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewReferenceError("account_id", fmt.Sprintf("account %d not found", id))
	}
	if err != nil {
		return nil, err
	}

	if totalLimit.Valid {
		v := totalLimit.Float64
		a.TotalLimit = &v
	}
	if availableCredit.Valid {
		v := availableCredit.Float64
		a.AvailableCredit = &v
	}
	return &a, nil
}

// List returns accounts for the given ids, or all accounts when ids is empty.
func (r *AccountRepository) List(ctx context.Context, ids []int64) ([]domain.Account, error) {
	base := `SELECT id, name, account_type, available_balance, total_limit, available_credit FROM accounts`

	args := []any{}
	if len(ids) > 0 {
		ph := make([]string, 0, len(ids))
		for i, id := range ids {
			ph = append(ph, fmt.Sprintf("$%d", i+1))
			args = append(args, id)
		}
		base += " WHERE id IN (" + strings.Join(ph, ", ") + ")"
	}
	base += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var a domain.Account
		var totalLimit, availableCredit sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.AvailableBalance, &totalLimit, &availableCredit); err != nil {
			return nil, err
		}
		if totalLimit.Valid {
			v := totalLimit.Float64
			a.TotalLimit = &v
		}
		if availableCredit.Valid {
			v := availableCredit.Float64
			a.AvailableCredit = &v
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BalanceHistory returns recorded balance points for an account since the
// given time, oldest first.
func (r *AccountRepository) BalanceHistory(ctx context.Context, accountID int64, since time.Time) ([]domain.BalancePoint, error) {
	query := `SELECT account_id, balance, recorded_at FROM balance_history WHERE account_id = $1 AND recorded_at >= $2 ORDER BY recorded_at`

	rows, err := r.db.QueryContext(ctx, query, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BalancePoint
	for rows.Next() {
		var p domain.BalancePoint
		if err := rows.Scan(&p.AccountID, &p.Balance, &p.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
