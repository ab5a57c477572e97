package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/campfield/ticketoffice/internal/model"
	"github.com/campfield/ticketoffice/internal/monitoring"
	q "github.com/campfield/ticketoffice/internal/queue"
	"github.com/campfield/ticketoffice/internal/repository"
)

// transferTicketStore is the slice of the ticket repository the
// transfer manager needs.
type transferTicketStore interface {
	GetWithTypeForUser(ctx context.Context, ticketID, userID uint64) (repository.TicketWithType, error)
	Transfer(ctx context.Context, ticketID, fromUserID, toUserID uint64) error
}

// transferLogStore reads the transfer audit trail.
type transferLogStore interface {
	ListTransfersFrom(ctx context.Context, userID uint64) ([]repository.TransferLog, error)
}

// TransferService moves paid, transferable tickets between
// accounts, creating the target account on the fly when the
// recipient has never signed up.
type TransferService struct {
	tickets    transferTicketStore
	logs       transferLogStore
	users      userStore
	notifier   Notifier
	bcryptCost int
	password   passwordSource
	now        func() time.Time
}

func NewTransferService(tickets transferTicketStore, logs transferLogStore, users userStore,
	notifier Notifier, bcryptCost int) *TransferService {
	return &TransferService{
		tickets:    tickets,
		logs:       logs,
		users:      users,
		notifier:   notifier,
		bcryptCost: bcryptCost,
		password:   randomPassword,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Transfer hands a ticket from its owner to the account behind
// toEmail. Preconditions are checked before any write: the caller
// must own the ticket, the ticket must be paid, and its type must
// be transferable. A failed precondition changes nothing and maps
// to ErrTransferIneligible across the board so ownership cannot be
// probed. On success the audit attribute is written in the same
// transaction and both parties are notified best-effort.
func (s *TransferService) Transfer(ctx context.Context, ticketID, fromUserID uint64, toEmail, toName string) error {
	tw, err := s.tickets.GetWithTypeForUser(ctx, ticketID, fromUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTransferIneligible
		}
		return err
	}
	if !tw.Ticket.Paid || !tw.Type.IsTransferable {
		return ErrTransferIneligible
	}

	to, newAccount, err := s.resolveRecipient(ctx, toEmail, toName)
	if err != nil {
		return err
	}
	if to.ID == fromUserID {
		return ErrTransferIneligible
	}

	if err := s.tickets.Transfer(ctx, ticketID, fromUserID, to.ID); err != nil {
		monitoring.TrackTransfer("error")
		if errors.Is(err, repository.ErrForbidden) {
			// Lost a race with another transfer of the same ticket.
			return ErrTransferIneligible
		}
		return err
	}
	monitoring.TrackTransfer("ok")

	if s.notifier != nil {
		from, err := s.users.GetByID(ctx, fromUserID)
		if err != nil {
			log.Printf("transfer: sender lookup for notification failed (ignored): %v", err)
		}
		ev := q.TicketTransferredEvent{
			TicketID:      ticketID,
			TicketType:    tw.Type.Name,
			FromUserID:    fromUserID,
			FromEmail:     from.Email,
			ToUserID:      to.ID,
			ToEmail:       to.Email,
			ToName:        to.Name,
			NewAccount:    newAccount,
			TransferredAt: s.now().Format(time.RFC3339),
		}
		if err := s.notifier.TicketTransferred(ctx, ev); err != nil {
			log.Printf("transfer: notification failed (ignored): %v", err)
		}
	}
	return nil
}

// resolveRecipient finds the account for toEmail, creating one with
// a throwaway password when none exists. Creation racing another
// signup for the same email falls back to the winner's account.
func (s *TransferService) resolveRecipient(ctx context.Context, toEmail, toName string) (model.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(toEmail))
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, err
	}

	password, err := s.password()
	if err != nil {
		return model.User{}, false, err
	}
	id, err := s.users.Create(ctx, email, toName, password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			user, err := s.users.GetByEmail(ctx, email)
			return user, false, err
		}
		return model.User{}, false, err
	}
	return model.User{ID: id, Email: email, Name: toName}, true, nil
}

// Transferred lists the transfers the user initiated, newest first.
// Transfers made by previous owners of the same tickets are not
// included.
func (s *TransferService) Transferred(ctx context.Context, userID uint64) ([]repository.TransferLog, error) {
	return s.logs.ListTransfersFrom(ctx, userID)
}
