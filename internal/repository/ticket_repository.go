package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/campfield/ticketoffice/internal/model"
)

// TicketRepo provides reads and updates for tickets after checkout
// has created them: receipt rendering, ownership transfer, listing
// and expiry. Creation happens only through PurchaseRepo.
type TicketRepo struct{ DB *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{DB: db} }

// ReceiptTicket is a ticket joined with its type for receipt
// rendering. Tickets are returned in catalogue display order so
// receipts group cleanly.
type ReceiptTicket struct {
	ID         uint64  `json:"id"`
	UserID     uint64  `json:"-"`
	TypeID     uint64  `json:"type_id"`
	TypeName   string  `json:"type_name"`
	Admits     string  `json:"admits"`
	TypeOrder  int     `json:"-"`
	Receipt    *string `json:"receipt,omitempty"`
	QRCode     *string `json:"qrcode,omitempty"`
	HolderName string  `json:"holder_name,omitempty"`
}

// ListPaidForReceipt returns the user's paid tickets whose payment
// is not cancelled, ordered by type display order. When ids is
// non-empty the set is restricted to those ticket ids. Tickets that
// are unpaid, cancelled or owned by someone else silently drop out
// of the result; an empty result is the caller's NotFound signal.
func (r *TicketRepo) ListPaidForReceipt(ctx context.Context, userID uint64, ids []uint64) ([]ReceiptTicket, error) {
	q := `SELECT t.id, t.user_id, t.type_id, tt.name, tt.admits, tt.display_order,
                 t.receipt, t.qrcode,
                 COALESCE((SELECT ta.value FROM ticket_attribs ta
                           WHERE ta.ticket_id = t.id AND ta.name = 'name'
                           ORDER BY ta.id LIMIT 1), '')
          FROM tickets t
          JOIN ticket_types tt ON tt.id = t.type_id
          JOIN payments p ON p.id = t.payment_id
          WHERE t.user_id = ? AND t.paid = 1 AND p.state <> 'cancelled'`
	args := []interface{}{userID}
	if len(ids) > 0 {
		placeholders := make([]string, 0, len(ids))
		for _, id := range ids {
			placeholders = append(placeholders, "?")
			args = append(args, id)
		}
		q += ` AND t.id IN (` + strings.Join(placeholders, ",") + `)`
	}
	q += ` ORDER BY tt.display_order, t.id`

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ReceiptTicket, 0)
	for rows.Next() {
		var rt ReceiptTicket
		var receipt, qrcode sql.NullString
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.TypeID, &rt.TypeName, &rt.Admits,
			&rt.TypeOrder, &receipt, &qrcode, &rt.HolderName); err != nil {
			return nil, err
		}
		if receipt.Valid {
			v := receipt.String
			rt.Receipt = &v
		}
		if qrcode.Valid {
			v := qrcode.String
			rt.QRCode = &v
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// SetReceiptIfEmpty stores the receipt identifier only when none
// exists yet and returns the value that ended up on the row. Calling
// it again with a different candidate is a no-op that returns the
// original, which is what makes receipt generation idempotent.
func (r *TicketRepo) SetReceiptIfEmpty(ctx context.Context, ticketID uint64, receipt string) (string, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tickets SET receipt = ? WHERE id = ? AND receipt IS NULL`,
		receipt, ticketID)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n > 0 {
		return receipt, nil
	}
	var existing string
	err = r.DB.QueryRowContext(ctx,
		`SELECT receipt FROM tickets WHERE id = ?`, ticketID).Scan(&existing)
	return existing, err
}

// SetQRCodeIfEmpty behaves like SetReceiptIfEmpty for check-in
// codes. Codes are globally unique; a duplicate-key collision with
// another ticket's code is returned as-is so the caller can retry
// with a fresh candidate.
func (r *TicketRepo) SetQRCodeIfEmpty(ctx context.Context, ticketID uint64, code string) (string, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tickets SET qrcode = ? WHERE id = ? AND qrcode IS NULL`,
		code, ticketID)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n > 0 {
		return code, nil
	}
	var existing string
	err = r.DB.QueryRowContext(ctx,
		`SELECT qrcode FROM tickets WHERE id = ?`, ticketID).Scan(&existing)
	return existing, err
}

// TicketWithType bundles a ticket with the type fields the transfer
// manager needs to check eligibility.
type TicketWithType struct {
	Ticket model.Ticket
	Type   model.TicketType
}

// GetWithTypeForUser loads a ticket owned by the given user along
// with its type. sql.ErrNoRows covers both "no such ticket" and
// "not yours" so callers cannot probe other users' tickets.
func (r *TicketRepo) GetWithTypeForUser(ctx context.Context, ticketID, userID uint64) (TicketWithType, error) {
	const q = `SELECT t.id, t.user_id, t.type_id, t.payment_id, t.paid, t.expires, t.receipt, t.qrcode, t.created_at,
                      tt.id, tt.name, tt.display_order, tt.admits, tt.user_limit, tt.is_transferable
               FROM tickets t
               JOIN ticket_types tt ON tt.id = t.type_id
               WHERE t.id = ? AND t.user_id = ?`
	var out TicketWithType
	var expires sql.NullTime
	var receipt, qrcode sql.NullString
	err := r.DB.QueryRowContext(ctx, q, ticketID, userID).Scan(
		&out.Ticket.ID, &out.Ticket.UserID, &out.Ticket.TypeID, &out.Ticket.PaymentID,
		&out.Ticket.Paid, &expires, &receipt, &qrcode, &out.Ticket.CreatedAt,
		&out.Type.ID, &out.Type.Name, &out.Type.Order, &out.Type.Admits,
		&out.Type.UserLimit, &out.Type.IsTransferable,
	)
	if err != nil {
		return out, err
	}
	if expires.Valid {
		v := expires.Time
		out.Ticket.Expires = &v
	}
	if receipt.Valid {
		v := receipt.String
		out.Ticket.Receipt = &v
	}
	if qrcode.Valid {
		v := qrcode.String
		out.Ticket.QRCode = &v
	}
	return out, nil
}

// Transfer reassigns ticket ownership and writes the immutable
// audit attribute in one transaction. The ownership check is part
// of the UPDATE predicate, so a concurrent transfer of the same
// ticket leaves exactly one winner; the loser gets ErrForbidden.
func (r *TicketRepo) Transfer(ctx context.Context, ticketID, fromUserID, toUserID uint64) error {
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
		`UPDATE tickets SET user_id = ? WHERE id = ? AND user_id = ?`,
		toUserID, ticketID, fromUserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ticket_attribs (ticket_id, name, value) VALUES (?,?,?)`,
		ticketID, model.AttribTransfer, model.TransferValue(fromUserID, toUserID)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// TicketListItem is a row of the "my tickets" listing.
type TicketListItem struct {
	ID           uint64     `json:"id"`
	TypeName     string     `json:"type_name"`
	Admits       string     `json:"admits"`
	Paid         bool       `json:"paid"`
	Transferable bool       `json:"transferable"`
	Expires      *time.Time `json:"expires,omitempty"`
	PaymentID    uint64     `json:"payment_id"`
	PaymentState string     `json:"payment_state"`
}

// ListByUser returns all of the user's tickets with type and
// payment context, newest first.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]TicketListItem, error) {
	const q = `SELECT t.id, tt.name, tt.admits, t.paid, tt.is_transferable, t.expires, p.id, p.state
               FROM tickets t
               JOIN ticket_types tt ON tt.id = t.type_id
               JOIN payments p ON p.id = t.payment_id
               WHERE t.user_id = ?
               ORDER BY t.created_at DESC, t.id DESC`
	rows, err := r.DB.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]TicketListItem, 0)
	for rows.Next() {
		var item TicketListItem
		var expires sql.NullTime
		if err := rows.Scan(&item.ID, &item.TypeName, &item.Admits, &item.Paid,
			&item.Transferable, &expires, &item.PaymentID, &item.PaymentState); err != nil {
			return nil, err
		}
		if expires.Valid {
			v := expires.Time
			item.Expires = &v
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ExpireOverduePurchases marks pending payments expired when any of
// their tickets passed the expiry deadline without being paid. Used
// by the scheduled reaper. Returns the number of payments expired.
func (r *TicketRepo) ExpireOverduePurchases(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE payments p SET p.state = 'expired'
               WHERE p.state = 'pending'
                 AND EXISTS (SELECT 1 FROM tickets t
                             WHERE t.payment_id = p.id AND t.paid = 0
                               AND t.expires IS NOT NULL AND t.expires < ?)`
	res, err := r.DB.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
