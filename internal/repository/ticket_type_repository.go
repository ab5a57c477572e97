package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/campfield/ticketoffice/internal/model"
)

// TicketTypeRepo reads the ticket catalogue. Types are reference
// data: the service never writes them, administrators seed them out
// of band.
type TicketTypeRepo struct{ DB *sql.DB }

func NewTicketTypeRepo(db *sql.DB) *TicketTypeRepo { return &TicketTypeRepo{DB: db} }

const typeColumns = `id, name, display_order, admits, user_limit, is_transferable, token, sales_start, sales_end`

func scanType(scan func(dest ...interface{}) error) (*model.TicketType, error) {
	var t model.TicketType
	var token sql.NullString
	var start, end sql.NullTime
	err := scan(&t.ID, &t.Name, &t.Order, &t.Admits, &t.UserLimit,
		&t.IsTransferable, &token, &start, &end)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		v := token.String
		t.Token = &v
	}
	if start.Valid {
		v := start.Time
		t.SalesStart = &v
	}
	if end.Valid {
		v := end.Time
		t.SalesEnd = &v
	}
	t.Prices = map[string]decimal.Decimal{}
	return &t, nil
}

// List returns all ticket types ordered by display order, with
// their per-currency prices populated.
func (r *TicketTypeRepo) List(ctx context.Context) ([]*model.TicketType, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+typeColumns+` FROM ticket_types ORDER BY display_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]*model.TicketType, 0)
	index := make(map[uint64]*model.TicketType)
	for rows.Next() {
		t, err := scanType(rows.Scan)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
		index[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return types, nil
	}
	if err := r.loadPrices(ctx, index); err != nil {
		return nil, err
	}
	return types, nil
}

// GetByIDs returns the requested types keyed by id. Missing ids are
// simply absent from the map; callers decide whether that is fatal.
func (r *TicketTypeRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.TicketType, error) {
	out := make(map[uint64]*model.TicketType)
	if len(ids) == 0 {
		return out, nil
	}
	seen := make(map[uint64]struct{}, len(ids))
	args := make([]interface{}, 0, len(ids))
	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
		placeholders = append(placeholders, "?")
	}
	q := `SELECT ` + typeColumns + ` FROM ticket_types WHERE id IN (` +
		strings.Join(placeholders, ",") + `)`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanType(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadPrices(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadPrices fills the Prices map of every type in the index with
// one query across all of them.
func (r *TicketTypeRepo) loadPrices(ctx context.Context, index map[uint64]*model.TicketType) error {
	if len(index) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(index))
	placeholders := make([]string, 0, len(index))
	for id := range index {
		args = append(args, id)
		placeholders = append(placeholders, "?")
	}
	q := `SELECT type_id, currency, price FROM ticket_type_prices WHERE type_id IN (` +
		strings.Join(placeholders, ",") + `)`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var typeID uint64
		var currency string
		var price decimal.Decimal
		if err := rows.Scan(&typeID, &currency, &price); err != nil {
			return err
		}
		if t, ok := index[typeID]; ok {
			t.Prices[currency] = price
		}
	}
	return rows.Err()
}

// CountOwnedByUser returns how many tickets of the given type the
// user already holds, for enforcing per-user purchase limits.
// Cancelled and expired payments do not count against the limit.
func (r *TicketTypeRepo) CountOwnedByUser(ctx context.Context, typeID, userID uint64) (int, error) {
	const q = `SELECT COUNT(*)
               FROM tickets t
               JOIN payments p ON p.id = t.payment_id
               WHERE t.type_id = ? AND t.user_id = ?
                 AND p.state NOT IN ('cancelled','expired')`
	var n int
	err := r.DB.QueryRowContext(ctx, q, typeID, userID).Scan(&n)
	return n, err
}
