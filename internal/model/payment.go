package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment states. A payment starts pending and moves to paid when
// the external gateway confirms, cancelled when the buyer backs out,
// or expired when the reaper times out an unpaid purchase.
const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentCancelled = "cancelled"
	PaymentExpired   = "expired"
)

// Payment methods accepted at checkout. Gateway protocol details
// live outside this service; the method only selects the premium.
const (
	MethodCard         = "card"
	MethodBankTransfer = "banktransfer"
)

// Payment represents one checkout transaction. It is created
// atomically with its tickets and owns them for their whole life.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user the payment belongs to.
//  Method    – payment method (card, banktransfer).
//  Currency  – ISO currency code resolved from the session.
//  Amount    – ticket total plus the method premium.
//  State     – payment state (pending, paid, cancelled, expired).
//  CreatedAt – creation timestamp.
type Payment struct {
	ID        uint64          // payments.id
	UserID    uint64          // payments.user_id
	Method    string          // payments.method
	Currency  string          // payments.currency
	Amount    decimal.Decimal // payments.amount
	State     string          // payments.state
	CreatedAt time.Time       // payments.created_at
}

// bankTransferPremium is the flat surcharge applied to bank
// transfers to cover reconciliation overhead.
var bankTransferPremium = decimal.NewFromInt(2)

// Premium returns the payment-method surcharge added on top of the
// ticket total. Card payments carry none; bank transfers carry a
// flat 2.00 in any currency.
func Premium(method, currency string, total decimal.Decimal) decimal.Decimal {
	_ = currency
	if method == MethodBankTransfer {
		return bankTransferPremium
	}
	return decimal.Zero
}

// ValidMethod reports whether the submitted payment method is one
// this service accepts.
func ValidMethod(method string) bool {
	return method == MethodCard || method == MethodBankTransfer
}
