package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
)

type PaymentsFilter struct {
	StartDate   *time.Time
	EndDate     *time.Time
	Category    *string
	LiabilityID *int64
	AccountID   *int64
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists the payment and its sources as one transaction. The caller
// has already validated the aggregate; a failure on any row rolls back all of
// them.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertPayment = `
		INSERT INTO payments (id, liability_id, income_id, amount, payment_date, category, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`

	if _, err := tx.ExecContext(ctx, insertPayment,
		p.ID, p.LiabilityID, p.IncomeID, p.Amount, p.PaymentDate, p.Category, p.Description,
	); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := insertSources(ctx, tx, p.ID, p.Sources); err != nil {
		return err
	}

	return tx.Commit()
}

// Update rewrites the payment row and, when replaceSources is set, swaps the
// full source set in the same transaction.
func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment, replaceSources bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const updatePayment = `
		UPDATE payments
		SET liability_id = $2, income_id = $3, amount = $4, payment_date = $5, category = $6, description = $7, updated_at = now()
		WHERE id = $1`

	res, err := tx.ExecContext(ctx, updatePayment,
		p.ID, p.LiabilityID, p.IncomeID, p.Amount, p.PaymentDate, p.Category, p.Description,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("payment %s not found", p.ID))
	}

	if replaceSources {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payment_sources WHERE payment_id = $1`, p.ID); err != nil {
			return fmt.Errorf("delete old sources: %w", err)
		}
		if err := insertSources(ctx, tx, p.ID, p.Sources); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertSources(ctx context.Context, tx *sql.Tx, paymentID string, sources []domain.PaymentSource) error {
	const insertSource = `
		INSERT INTO payment_sources (id, payment_id, account_id, amount)
		VALUES ($1, $2, $3, $4)`

	for _, s := range sources {
		if _, err := tx.ExecContext(ctx, insertSource, s.ID, paymentID, s.AccountID, s.Amount); err != nil {
			return fmt.Errorf("insert source for account %d: %w", s.AccountID, err)
		}
	}
	return nil
}

// Delete removes the payment; payment_sources rows go with it via the
// ON DELETE CASCADE foreign key. Returns false when the id did not exist.
func (r *PaymentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	const query = `
		SELECT id, liability_id, income_id, amount, payment_date, category, description, created_at, updated_at
		FROM payments WHERE id = $1`

	var p domain.Payment
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), &p); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError(fmt.Sprintf("payment %s not found", id))
		}
		return nil, err
	}

	sources, err := r.sourcesFor(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Sources = sources[p.ID]
	return &p, nil
}

func (r *PaymentRepository) List(ctx context.Context, f PaymentsFilter) ([]domain.Payment, error) {
	base := `
		SELECT DISTINCT p.id, p.liability_id, p.income_id, p.amount, p.payment_date, p.category, p.description, p.created_at, p.updated_at
		FROM payments p`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.AccountID != nil {
		base += ` JOIN payment_sources ps ON ps.payment_id = p.id`
		where = append(where, fmt.Sprintf("ps.account_id = $%d", i))
		args = append(args, *f.AccountID)
		i++
	}
	if f.StartDate != nil {
		where = append(where, fmt.Sprintf("p.payment_date >= $%d", i))
		args = append(args, *f.StartDate)
		i++
	}
	if f.EndDate != nil {
		where = append(where, fmt.Sprintf("p.payment_date <= $%d", i))
		args = append(args, *f.EndDate)
		i++
	}
	if f.Category != nil && *f.Category != "" {
		where = append(where, fmt.Sprintf("p.category = $%d", i))
		args = append(args, *f.Category)
		i++
	}
	if f.LiabilityID != nil {
		where = append(where, fmt.Sprintf("p.liability_id = $%d", i))
		args = append(args, *f.LiabilityID)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY p.payment_date DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	var ids []string
	for rows.Next() {
		var p domain.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return out, nil
	}

	sources, err := r.sourcesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for idx := range out {
		out[idx].Sources = sources[out[idx].ID]
	}
	return out, nil
}

// HasMoreThan reports whether more than limit payments match the filter;
// used to refuse oversized exports before materializing them.
func (r *PaymentRepository) HasMoreThan(ctx context.Context, limit int64, f PaymentsFilter) (bool, error) {
	base := `SELECT COUNT(DISTINCT p.id) > $1 FROM payments p`

	where := []string{"1=1"}
	args := []any{limit}
	i := 2

	if f.AccountID != nil {
		base += ` JOIN payment_sources ps ON ps.payment_id = p.id`
		where = append(where, fmt.Sprintf("ps.account_id = $%d", i))
		args = append(args, *f.AccountID)
		i++
	}
	if f.StartDate != nil {
		where = append(where, fmt.Sprintf("p.payment_date >= $%d", i))
		args = append(args, *f.StartDate)
		i++
	}
	if f.EndDate != nil {
		where = append(where, fmt.Sprintf("p.payment_date <= $%d", i))
		args = append(args, *f.EndDate)
		i++
	}
	if f.Category != nil && *f.Category != "" {
		where = append(where, fmt.Sprintf("p.category = $%d", i))
		args = append(args, *f.Category)
		i++
	}
	if f.LiabilityID != nil {
		where = append(where, fmt.Sprintf("p.liability_id = $%d", i))
		args = append(args, *f.LiabilityID)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ")

	var tooMany bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&tooMany); err != nil {
		return false, err
	}
	return tooMany, nil
}

// SourcesForPayment returns the child rows of one payment; exposed mainly so
// cascade behavior is observable in tests and diagnostics.
func (r *PaymentRepository) SourcesForPayment(ctx context.Context, paymentID string) ([]domain.PaymentSource, error) {
	sources, err := r.sourcesFor(ctx, []string{paymentID})
	if err != nil {
		return nil, err
	}
	return sources[paymentID], nil
}

// IncomeExists checks the external incomes table for a referenced id.
func (r *PaymentRepository) IncomeExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM incomes WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PaymentRepository) sourcesFor(ctx context.Context, paymentIDs []string) (map[string][]domain.PaymentSource, error) {
	ph := make([]string, 0, len(paymentIDs))
	args := make([]any, 0, len(paymentIDs))
	for i, id := range paymentIDs {
		ph = append(ph, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}

	query := `SELECT id, payment_id, account_id, amount FROM payment_sources WHERE payment_id IN (` +
		strings.Join(ph, ", ") + `) ORDER BY payment_id, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.PaymentSource)
	for rows.Next() {
		var s domain.PaymentSource
		if err := rows.Scan(&s.ID, &s.PaymentID, &s.AccountID, &s.Amount); err != nil {
			return nil, err
		}
		out[s.PaymentID] = append(out[s.PaymentID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner, p *domain.Payment) error {
	var liabilityID, incomeID sql.NullInt64
	var description sql.NullString
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(
		&p.ID,
		&liabilityID,
		&incomeID,
		&p.Amount,
		&p.PaymentDate,
		&p.Category,
		&description,
		&createdAt,
		&updatedAt,
	); err != nil {
		return err
	}
	if liabilityID.Valid {
		v := liabilityID.Int64
		p.LiabilityID = &v
	}
	if incomeID.Valid {
		v := incomeID.Int64
		p.IncomeID = &v
	}
	if description.Valid {
		v := description.String
		p.Description = &v
	}
	if createdAt.Valid {
		v := createdAt.Time
		p.CreatedAt = &v
	}
	if updatedAt.Valid {
		v := updatedAt.Time
		p.UpdatedAt = &v
	}
	return nil
}
