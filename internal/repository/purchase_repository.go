package repository

import (
	"context"
	"database/sql"

	"github.com/campfield/ticketoffice/internal/model"
)

// PurchaseRepo persists the outcome of a checkout commit: one
// payment row plus one ticket row per basket entry plus the
// reconciled attribute rows, all inside a single transaction. Either
// every row lands or none do; a failure partway leaves nothing
// visible to other connections.
type PurchaseRepo struct{ DB *sql.DB }

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{DB: db} }

// CreatePurchase inserts the payment and its ticket drafts
// atomically. On success the payment's ID and CreatedAt are
// populated and the generated ticket ids are returned in draft
// order.
func (r *PurchaseRepo) CreatePurchase(ctx context.Context, payment *model.Payment, drafts []model.TicketDraft) ([]uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO payments (user_id, method, currency, amount, state) VALUES (?,?,?,?,?)`,
		payment.UserID, payment.Method, payment.Currency, payment.Amount, payment.State)
	if err != nil {
		return nil, err
	}
	pid, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	payment.ID = uint64(pid)
	if err := tx.QueryRowContext(ctx,
		`SELECT created_at FROM payments WHERE id = ?`, payment.ID).Scan(&payment.CreatedAt); err != nil {
		return nil, err
	}

	ticketIDs := make([]uint64, 0, len(drafts))
	for _, d := range drafts {
		var expires interface{}
		if d.Expires != nil {
			expires = *d.Expires
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tickets (user_id, type_id, payment_id, paid, expires) VALUES (?,?,?,0,?)`,
			payment.UserID, d.TypeID, payment.ID, expires)
		if err != nil {
			return nil, err
		}
		tid, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ticketIDs = append(ticketIDs, uint64(tid))
		if err := insertAttribsTx(ctx, tx, uint64(tid), d.Attribs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return ticketIDs, nil
}

// insertAttribsTx bulk-inserts attribute rows for one ticket within
// the purchase transaction. An empty slice is a no-op.
func insertAttribsTx(ctx context.Context, tx *sql.Tx, ticketID uint64, attribs []model.TicketAttrib) error {
	if len(attribs) == 0 {
		return nil
	}
	query := `INSERT INTO ticket_attribs (ticket_id, name, value) VALUES `
	args := make([]interface{}, 0, len(attribs)*3)
	for i, a := range attribs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, ticketID, a.Name, a.Value)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
