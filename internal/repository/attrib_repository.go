package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campfield/ticketoffice/internal/model"
)

// AttribRepo reads ticket attributes outside of the purchase and
// transfer transactions that write them.
type AttribRepo struct{ DB *sql.DB }

func NewAttribRepo(db *sql.DB) *AttribRepo { return &AttribRepo{DB: db} }

// ListByTicket returns all attributes of one ticket in insertion
// order.
func (r *AttribRepo) ListByTicket(ctx context.Context, ticketID uint64) ([]model.TicketAttrib, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, ticket_id, name, value FROM ticket_attribs WHERE ticket_id = ? ORDER BY id`,
		ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TicketAttrib, 0)
	for rows.Next() {
		var a model.TicketAttrib
		if err := rows.Scan(&a.ID, &a.TicketID, &a.Name, &a.Value); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TransferLog is one audit record of a transfer made by a user,
// joined with the ticket it moved.
type TransferLog struct {
	TicketID   uint64 `json:"ticket_id"`
	TypeName   string `json:"type_name"`
	ToUserID   uint64 `json:"to_user_id"`
	ToEmail    string `json:"to_email"`
	ToName     string `json:"to_name"`
}

// ListTransfersFrom returns the transfers the given user made, and
// only those: the LIKE pattern pins the audit value's left-hand id
// followed by the arrow, so user 1 never sees user 10's transfers
// and received-then-forwarded hops stay out of the view.
func (r *AttribRepo) ListTransfersFrom(ctx context.Context, userID uint64) ([]TransferLog, error) {
	pattern := fmt.Sprintf("%d ->%%", userID)
	const q = `SELECT ta.ticket_id, tt.name, ta.value
               FROM ticket_attribs ta
               JOIN tickets t ON t.id = ta.ticket_id
               JOIN ticket_types tt ON tt.id = t.type_id
               WHERE ta.name = ? AND ta.value LIKE ?
               ORDER BY ta.id DESC`
	rows, err := r.DB.QueryContext(ctx, q, model.AttribTransfer, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := make([]TransferLog, 0)
	for rows.Next() {
		var l TransferLog
		var value string
		if err := rows.Scan(&l.TicketID, &l.TypeName, &value); err != nil {
			return nil, err
		}
		from, to, ok := model.ParseTransferValue(value)
		if !ok || from != userID {
			continue
		}
		l.ToUserID = to
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Resolve recipient details in a second pass; transfer listings
	// are small so per-row lookups are fine.
	for i := range logs {
		var email, name string
		err := r.DB.QueryRowContext(ctx,
			`SELECT email, name FROM users WHERE id = ?`, logs[i].ToUserID).Scan(&email, &name)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		logs[i].ToEmail = email
		logs[i].ToName = name
	}
	return logs, nil
}
