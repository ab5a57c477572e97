package repository

import (
	"context"
	"database/sql"

	"github.com/campfield/ticketoffice/internal/model"
)

type PaymentRepo struct{ DB *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{DB: db} }

// GetByIDForUser fetches a payment owned by the given user.
// sql.ErrNoRows doubles as the not-found and not-yours answer so
// handlers cannot leak payment existence across accounts.
func (r *PaymentRepo) GetByIDForUser(ctx context.Context, paymentID, userID uint64) (model.Payment, error) {
	var p model.Payment
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, method, currency, amount, state, created_at
         FROM payments WHERE id = ? AND user_id = ?`,
		paymentID, userID).Scan(&p.ID, &p.UserID, &p.Method, &p.Currency, &p.Amount, &p.State, &p.CreatedAt)
	return p, err
}

// ListActiveByUser returns the user's payments excluding cancelled
// and expired ones, newest first.
func (r *PaymentRepo) ListActiveByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, method, currency, amount, state, created_at
         FROM payments
         WHERE user_id = ? AND state NOT IN ('cancelled','expired')
         ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.Method, &p.Currency, &p.Amount, &p.State, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkPaid flips a pending payment to paid and marks its tickets
// paid in the same transaction. It is invoked from the gateway
// callback boundary. Returns sql.ErrNoRows when the payment is not
// pending (already paid, cancelled or expired) so duplicate gateway
// callbacks are harmless.
func (r *PaymentRepo) MarkPaid(ctx context.Context, paymentID uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET state = 'paid' WHERE id = ? AND state = 'pending'`, paymentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tickets SET paid = 1 WHERE payment_id = ?`, paymentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Cancel marks a pending payment cancelled. Tickets stay attached
// for bookkeeping but never show on receipts because the receipt
// query filters cancelled payments out.
func (r *PaymentRepo) Cancel(ctx context.Context, paymentID, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE payments SET state = 'cancelled'
         WHERE id = ? AND user_id = ? AND state = 'pending'`, paymentID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
