package model

import (
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
)

// Checkout stages. The session is an explicit state machine: ticket
// selection, per-ticket info entry, payment method choice, and the
// terminal committed stage. Transitions are validated so a stray
// request cannot, for example, commit a session that never collected
// info for its form-bearing tickets.
const (
	StageSelecting  = "selecting"
	StageInfoEntry  = "info-entry"
	StageReadyToPay = "ready-to-pay"
	StageCommitted  = "committed"
)

// ErrBadTransition is returned when a checkout session is asked to
// move to a stage that is not reachable from its current one.
var ErrBadTransition = errors.New("invalid checkout stage transition")

// stageNext maps each stage to the stages reachable from it. Going
// backwards to selecting is always allowed (the buyer can rebuild
// the basket); committed is terminal.
var stageNext = map[string][]string{
	StageSelecting:  {StageInfoEntry, StageSelecting},
	StageInfoEntry:  {StageReadyToPay, StageSelecting, StageInfoEntry},
	StageReadyToPay: {StageCommitted, StageSelecting, StageInfoEntry},
	StageCommitted:  {},
}

// InfoEntry holds the attributes submitted for a single basket
// position. Position ties the entry to a specific basket index at
// emission time, so reconciliation never depends on submission
// order. Known attribute kinds get typed fields; anything else goes
// into Extra and is persisted verbatim.
type InfoEntry struct {
	Position   int               `json:"position"`
	Name       string            `json:"name,omitempty"`
	Accessible bool              `json:"accessible,omitempty"`
	CarShare   bool              `json:"carshare,omitempty"`
	Donation   *decimal.Decimal  `json:"donation,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Attribs flattens the entry into ticket_attribs rows. Boolean
// fields are only written when set; the zero value is meaningless
// noise in the table.
func (e *InfoEntry) Attribs() []TicketAttrib {
	var out []TicketAttrib
	if e.Name != "" {
		out = append(out, TicketAttrib{Name: AttribName, Value: e.Name})
	}
	if e.Accessible {
		out = append(out, TicketAttrib{Name: AttribAccessible, Value: "true"})
	}
	if e.CarShare {
		out = append(out, TicketAttrib{Name: AttribCarShare, Value: "true"})
	}
	if e.Donation != nil {
		out = append(out, TicketAttrib{Name: AttribDonation, Value: e.Donation.StringFixed(2)})
	}
	for k, v := range e.Extra {
		out = append(out, TicketAttrib{Name: k, Value: v})
	}
	return out
}

// CheckoutSession is the value object round-tripped through the
// session store under an opaque token. It replaces ad hoc per-key
// session state with named, typed fields and an explicit stage tag.
//
// Fields:
//  Token          – opaque session identifier (UUID).
//  Stage          – current checkout stage (see Stage* constants).
//  Basket         – ordered ticket type ids, one entry per unit.
//  Info           – submitted info entries keyed by basket position.
//  AnonymousEmail – email captured for implicit signup (anonymous buyers).
//  AnonymousName  – name captured for implicit signup.
//  Currency       – ISO currency code selected for this checkout.
//  TicketToken    – access token unlocking gated ticket types.
type CheckoutSession struct {
	Token          string      `json:"token"`
	Stage          string      `json:"stage"`
	Basket         []uint64    `json:"basket"`
	Info           []InfoEntry `json:"info,omitempty"`
	AnonymousEmail string      `json:"anonymous_account_email,omitempty"`
	AnonymousName  string      `json:"anonymous_account_name,omitempty"`
	Currency       string      `json:"currency,omitempty"`
	TicketToken    string      `json:"ticket_token,omitempty"`
}

// Advance moves the session to the requested stage, returning
// ErrBadTransition when the move is not legal from the current one.
// An empty stage is treated as selecting so fresh sessions work.
func (s *CheckoutSession) Advance(to string) error {
	from := s.Stage
	if from == "" {
		from = StageSelecting
	}
	for _, next := range stageNext[from] {
		if next == to {
			s.Stage = to
			return nil
		}
	}
	return ErrBadTransition
}

// InfoFor returns the info entry tagged with the given basket
// position, or nil when none was submitted.
func (s *CheckoutSession) InfoFor(position int) *InfoEntry {
	for i := range s.Info {
		if s.Info[i].Position == position {
			return &s.Info[i]
		}
	}
	return nil
}

// ClearPurchase empties the basket and info after a successful
// commit and marks the session committed. Currency and ticket token
// survive so a follow-up purchase keeps its settings.
func (s *CheckoutSession) ClearPurchase() {
	s.Basket = nil
	s.Info = nil
	s.AnonymousEmail = ""
	s.AnonymousName = ""
	s.Stage = StageCommitted
}

// String implements fmt.Stringer for log lines without dumping the
// buyer's contact details.
func (s *CheckoutSession) String() string {
	return "checkout(" + s.Stage + ", " + strconv.Itoa(len(s.Basket)) + " items)"
}
