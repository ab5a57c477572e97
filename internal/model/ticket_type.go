package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Admission classes. The class governs which info form a ticket
// requires at purchase time and which receipt group it lands in.
const (
	AdmitsFull      = "full"
	AdmitsKids      = "kids"
	AdmitsCar       = "car"
	AdmitsCampervan = "campervan"
	AdmitsDonation  = "donation"
	AdmitsOther     = "other"
)

// TicketType is a catalogue entry describing a class of ticket that
// can be sold. Types are read-only reference data during a checkout
// session; only administrators change them, out of band.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name shown to buyers.
//  Order          – display order on the choose page and receipts.
//  Admits         – admission class (full, kids, car, campervan, donation, other).
//  UserLimit      – maximum units a single user may purchase.
//  IsTransferable – whether paid tickets of this type may change owner.
//  Token          – optional access token gating this type (nullable).
//  SalesStart     – start of the active sales window (nullable = always).
//  SalesEnd       – end of the active sales window (nullable = never).
//  Prices         – per-currency unit price, keyed by ISO code.
type TicketType struct {
	ID             uint64                     // ticket_types.id
	Name           string                     // ticket_types.name
	Order          int                        // ticket_types.order
	Admits         string                     // ticket_types.admits
	UserLimit      int                        // ticket_types.user_limit
	IsTransferable bool                       // ticket_types.is_transferable
	Token          *string                    // ticket_types.token (nullable)
	SalesStart     *time.Time                 // ticket_types.sales_start (nullable)
	SalesEnd       *time.Time                 // ticket_types.sales_end (nullable)
	Prices         map[string]decimal.Decimal // ticket_type_prices rows
}

// RequiresForm reports whether buyers must fill a per-ticket info
// form for this type. Only full and kids admissions carry forms.
func (t *TicketType) RequiresForm() bool {
	return t.Admits == AdmitsFull || t.Admits == AdmitsKids
}

// OnSale reports whether the type's sales window is open at the
// given instant and, when the type is token-gated, whether the
// supplied token unlocks it.
func (t *TicketType) OnSale(now time.Time, token string) bool {
	if t.SalesStart != nil && now.Before(*t.SalesStart) {
		return false
	}
	if t.SalesEnd != nil && now.After(*t.SalesEnd) {
		return false
	}
	if t.Token != nil && *t.Token != "" && *t.Token != token {
		return false
	}
	return true
}

// Price returns the unit price for the given currency. The second
// return value is false when the type is not sold in that currency.
func (t *TicketType) Price(currency string) (decimal.Decimal, bool) {
	p, ok := t.Prices[currency]
	return p, ok
}
