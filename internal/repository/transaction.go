package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
)

// TransactionRepository reads account history for the analytics engine.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByAccount returns an account's transactions since the given time,
// oldest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64, since time.Time) ([]domain.Transaction, error) {
	const query = `
		SELECT id, account_id, amount, description, category, transaction_type, transfer_account_id, transaction_date
		FROM transaction_history
		WHERE account_id = $1 AND transaction_date >= $2
		ORDER BY transaction_date`

	rows, err := r.db.QueryContext(ctx, query, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListByAccounts returns history rows for all given accounts grouped by
// account id.
func (r *TransactionRepository) ListByAccounts(ctx context.Context, accountIDs []int64, since time.Time) (map[int64][]domain.Transaction, error) {
	out := make(map[int64][]domain.Transaction, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}

	ph := make([]string, 0, len(accountIDs))
	args := []any{since}
	for i, id := range accountIDs {
		ph = append(ph, fmt.Sprintf("$%d", i+2))
		args = append(args, id)
	}

	query := `
		SELECT id, account_id, amount, description, category, transaction_type, transfer_account_id, transaction_date
		FROM transaction_history
		WHERE transaction_date >= $1 AND account_id IN (` + strings.Join(ph, ", ") + `)
		ORDER BY account_id, transaction_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		out[tx.AccountID] = append(out[tx.AccountID], tx)
	}
	return out, nil
}

// TransferCount counts transfer rows between the unordered account pair.
func (r *TransactionRepository) TransferCount(ctx context.Context, a, b int64) (int, error) {
	const query = `
		SELECT COUNT(*) FROM transaction_history
		WHERE transaction_type IN ('transfer_in', 'transfer_out')
		  AND ((account_id = $1 AND transfer_account_id = $2) OR (account_id = $2 AND transfer_account_id = $1))`

	var n int
	if err := r.db.QueryRowContext(ctx, query, a, b).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var transferAccountID sql.NullInt64
		if err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.Amount,
			&t.Description,
			&t.Category,
			&t.Type,
			&transferAccountID,
			&t.TransactionDate,
		); err != nil {
			return nil, err
		}
		if transferAccountID.Valid {
			v := transferAccountID.Int64
			t.TransferAccountID = &v
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
