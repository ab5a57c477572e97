// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketTransferredEvent is published after a ticket changes owner.
// Two notifications are derived from it downstream: one to the new
// owner and one to the original owner. NewAccount tells the
// consumer to use the welcome variant that explains the freshly
// created account.
type TicketTransferredEvent struct {
	TicketID      uint64 `json:"ticket_id"`
	TicketType    string `json:"ticket_type"`
	FromUserID    uint64 `json:"from_user_id"`
	FromEmail     string `json:"from_email"`
	ToUserID      uint64 `json:"to_user_id"`
	ToEmail       string `json:"to_email"`
	ToName        string `json:"to_name"`
	NewAccount    bool   `json:"new_account"`
	TransferredAt string `json:"transferred_at"`
}

// PaymentCreatedEvent is published after a checkout commit so the
// buyer can be sent payment instructions. Amount is a decimal
// string to avoid float drift in transit.
type PaymentCreatedEvent struct {
	PaymentID   uint64 `json:"payment_id"`
	UserID      uint64 `json:"user_id"`
	UserEmail   string `json:"user_email"`
	Method      string `json:"method"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	TicketCount int    `json:"ticket_count"`
	CreatedAt   string `json:"created_at"`
}
