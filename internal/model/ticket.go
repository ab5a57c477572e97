package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ticket represents a purchased ticket row. A ticket belongs to
// exactly one payment for its whole life; ownership may move to a
// different user through a transfer but the payment reference never
// changes. Receipt and QRCode are generated lazily on the first
// receipt render and are stable once set.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – current owner of the ticket.
//  TypeID    – reference to the ticket type.
//  PaymentID – payment the ticket was bought under.
//  Paid      – whether the owning payment has completed.
//  Expires   – expiry deadline (nullable; set only for GBP/EUR purchases).
//  Receipt   – receipt identifier (nullable until first render).
//  QRCode    – check-in code embedded in the receipt QR (nullable).
//  CreatedAt – creation timestamp.
type Ticket struct {
	ID        uint64     // tickets.id
	UserID    uint64     // tickets.user_id
	TypeID    uint64     // tickets.type_id
	PaymentID uint64     // tickets.payment_id
	Paid      bool       // tickets.paid
	Expires   *time.Time // tickets.expires (nullable)
	Receipt   *string    // tickets.receipt (nullable)
	QRCode    *string    // tickets.qrcode (nullable)
	CreatedAt time.Time  // tickets.created_at
}

// Known attribute names stored in ticket_attribs. AttribTransfer
// rows are immutable audit entries written by the transfer manager;
// the rest are user-entered at purchase time. Unrecognised names are
// allowed and round-trip untouched.
const (
	AttribName       = "name"
	AttribAccessible = "accessible"
	AttribCarShare   = "carshare"
	AttribDonation   = "amount"
	AttribTransfer   = "transfer"
)

// TicketAttrib is a key/value record owned by exactly one ticket.
//
// Fields:
//  ID       – primary key identifier.
//  TicketID – owning ticket.
//  Name     – attribute name (see Attrib* constants).
//  Value    – attribute value; for transfer logs "<from> -> <to>".
type TicketAttrib struct {
	ID       uint64 // ticket_attribs.id
	TicketID uint64 // ticket_attribs.ticket_id
	Name     string // ticket_attribs.name
	Value    string // ticket_attribs.value
}

// TransferValue encodes a completed ownership transfer in the audit
// format parsed back by ParseTransferValue.
func TransferValue(fromUserID, toUserID uint64) string {
	return fmt.Sprintf("%d -> %d", fromUserID, toUserID)
}

// ParseTransferValue splits a transfer audit value into the two user
// ids. It returns ok=false for values not in the expected format.
func ParseTransferValue(v string) (fromUserID, toUserID uint64, ok bool) {
	parts := strings.Split(v, "->")
	if len(parts) != 2 {
		return 0, 0, false
	}
	if _, err := fmt.Sscan(strings.TrimSpace(parts[0]), &fromUserID); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscan(strings.TrimSpace(parts[1]), &toUserID); err != nil {
		return 0, 0, false
	}
	return fromUserID, toUserID, true
}

// SafeChars is the alphabet used for check-in codes. Glyphs that are
// easy to confuse when read aloud or scanned from paper (0/O, 1/I/L,
// 5/S, A/4, E/3, N/Z, U/V) are excluded.
const SafeChars = "2346789BCDFGHJKMPQRTVWXY"

// MaxCodeLength bounds check-in codes accepted by the QR endpoint.
const MaxCodeLength = 8

// ValidateSafeChars reports whether the code is non-empty, within
// the length bound and drawn entirely from the safe alphabet.
func ValidateSafeChars(code string) bool {
	if code == "" || len(code) > MaxCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(SafeChars, r) {
			return false
		}
	}
	return true
}

// TicketDraft describes a ticket to be created during checkout,
// before any row exists. The committer builds one draft per basket
// entry and hands the whole set to the purchase store atomically.
type TicketDraft struct {
	TypeID  uint64
	Price   decimal.Decimal
	Expires *time.Time
	Attribs []TicketAttrib
}
