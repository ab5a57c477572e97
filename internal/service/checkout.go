package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campfield/ticketoffice/internal/model"
	"github.com/campfield/ticketoffice/internal/monitoring"
	q "github.com/campfield/ticketoffice/internal/queue"
	"github.com/campfield/ticketoffice/internal/repository"
)

// DefaultCurrency applies when a session never picked one.
const DefaultCurrency = "GBP"

// sessionStore is the slice of the basket store the committer needs.
type sessionStore interface {
	Get(ctx context.Context, token string) (*model.CheckoutSession, error)
	Put(ctx context.Context, sess *model.CheckoutSession) error
}

// typeCatalog resolves basket entries to ticket types.
type typeCatalog interface {
	GetByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.TicketType, error)
}

// userStore covers account resolution and implicit signup.
type userStore interface {
	Create(ctx context.Context, email, name, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// purchaseStore persists a payment and its tickets atomically.
type purchaseStore interface {
	CreatePurchase(ctx context.Context, payment *model.Payment, drafts []model.TicketDraft) ([]uint64, error)
}

// passwordSource mints out-of-band credentials for implicit signup.
type passwordSource func() (string, error)

// CheckoutConfig carries the policy knobs the committer needs,
// injected explicitly from the top-level Config.
type CheckoutConfig struct {
	ExpiryDaysTransfer     int // GBP purchases expire after this many days
	ExpiryDaysTransferEuro int // EUR purchases expire after this many days
	BcryptCost             int // cost for implicit-signup password hashes
}

// CheckoutService turns a checkout session into a persisted payment
// with tickets. It owns basket resolution, info reconciliation and
// the atomic commit.
type CheckoutService struct {
	sessions  sessionStore
	types     typeCatalog
	users     userStore
	purchases purchaseStore
	notifier  Notifier
	cfg       CheckoutConfig
	password  passwordSource
	now       func() time.Time
}

// NewCheckoutService wires a committer from its collaborators.
func NewCheckoutService(sessions sessionStore, types typeCatalog, users userStore,
	purchases purchaseStore, notifier Notifier, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{
		sessions:  sessions,
		types:     types,
		users:     users,
		purchases: purchases,
		notifier:  notifier,
		cfg:       cfg,
		password:  randomPassword,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// BasketLine is one basket entry resolved against the catalogue.
type BasketLine struct {
	Position int               `json:"position"`
	Type     *model.TicketType `json:"type"`
	Price    decimal.Decimal   `json:"price"`
}

// BasketAndTotal resolves the session basket into priced lines and
// their total. A missing or empty basket yields an empty slice and
// zero, never an error. Entries whose type vanished from the
// catalogue or is not sold in the session currency are skipped.
func (s *CheckoutService) BasketAndTotal(ctx context.Context, sess *model.CheckoutSession) ([]BasketLine, decimal.Decimal, error) {
	total := decimal.Zero
	if len(sess.Basket) == 0 {
		return nil, total, nil
	}
	types, err := s.types.GetByIDs(ctx, sess.Basket)
	if err != nil {
		return nil, total, err
	}
	currency := sess.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	lines := make([]BasketLine, 0, len(sess.Basket))
	for i, typeID := range sess.Basket {
		t, ok := types[typeID]
		if !ok {
			continue
		}
		price, ok := t.Price(currency)
		if !ok {
			continue
		}
		lines = append(lines, BasketLine{Position: i, Type: t, Price: price})
		total = total.Add(price)
	}
	return lines, total, nil
}

// reconcile matches submitted info entries to the basket's
// form-bearing positions. Every form-bearing position must have
// exactly one entry and no entry may point at a position that does
// not need one; anything else is ErrInfoMismatch. Returns attribute
// rows keyed by basket position.
func reconcile(sess *model.CheckoutSession, lines []BasketLine) (map[int][]model.TicketAttrib, error) {
	needForm := make(map[int]bool)
	for _, l := range lines {
		if l.Type.RequiresForm() {
			needForm[l.Position] = true
		}
	}
	seen := make(map[int]bool)
	attribs := make(map[int][]model.TicketAttrib)
	for i := range sess.Info {
		e := &sess.Info[i]
		if !needForm[e.Position] || seen[e.Position] {
			return nil, ErrInfoMismatch
		}
		seen[e.Position] = true
		attribs[e.Position] = e.Attribs()
	}
	if len(seen) != len(needForm) {
		return nil, ErrInfoMismatch
	}
	return attribs, nil
}

// Commit executes the checkout: implicit signup when anonymous,
// basket re-derivation, payment construction with the method
// premium, one ticket per basket entry with currency-based expiry,
// all persisted in a single transaction. The session's basket and
// info are cleared only after the transaction commits; any earlier
// failure leaves both the database and the session untouched.
func (s *CheckoutService) Commit(ctx context.Context, token string, userID uint64, method string) (*model.Payment, error) {
	if !model.ValidMethod(method) {
		monitoring.TrackCommit("invalid-method")
		return nil, ErrInvalidMethod
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	lines, total, err := s.BasketAndTotal(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 || total.IsZero() {
		monitoring.TrackCommit("empty")
		return nil, ErrEmptyBasket
	}
	attribs, err := reconcile(sess, lines)
	if err != nil {
		monitoring.TrackCommit("info-mismatch")
		return nil, err
	}
	// Validate the stage transition up front; the mutation only
	// reaches Redis after the database commit succeeds.
	if err := sess.Advance(model.StageCommitted); err != nil {
		return nil, err
	}

	user, err := s.resolveUser(ctx, sess, userID)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			monitoring.TrackCommit("duplicate-account")
		}
		return nil, err
	}

	currency := sess.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	amount := total.Add(model.Premium(method, currency, total))
	payment := &model.Payment{
		UserID:   user.ID,
		Method:   method,
		Currency: currency,
		Amount:   amount,
		State:    model.PaymentPending,
	}

	drafts := make([]model.TicketDraft, 0, len(lines))
	for _, l := range lines {
		d := model.TicketDraft{
			TypeID:  l.Type.ID,
			Price:   l.Price,
			Attribs: attribs[l.Position],
		}
		if exp := s.expiryFor(currency); exp != nil {
			d.Expires = exp
		}
		drafts = append(drafts, d)
	}

	log.Printf("checkout: creating %d tickets, %s %s %s (ticket total %s)",
		len(drafts), method, amount.StringFixed(2), currency, total.StringFixed(2))

	ticketIDs, err := s.purchases.CreatePurchase(ctx, payment, drafts)
	if err != nil {
		monitoring.TrackCommit("error")
		return nil, err
	}

	sess.ClearPurchase()
	if err := s.sessions.Put(ctx, sess); err != nil {
		// The purchase is committed; a stale session is annoying but
		// not fatal, and the committed stage blocks a double commit.
		log.Printf("checkout: failed to clear session %s: %v", sess.Token, err)
	}

	monitoring.TrackCommit("ok")
	if s.notifier != nil {
		ev := q.PaymentCreatedEvent{
			PaymentID:   payment.ID,
			UserID:      user.ID,
			UserEmail:   user.Email,
			Method:      method,
			Currency:    currency,
			Amount:      amount.StringFixed(2),
			TicketCount: len(ticketIDs),
			CreatedAt:   s.now().Format(time.RFC3339),
		}
		if err := s.notifier.PaymentCreated(ctx, ev); err != nil {
			log.Printf("checkout: payment notification failed (ignored): %v", err)
		}
	}
	return payment, nil
}

// resolveUser returns the acting user, creating one implicitly from
// the session's contact details when the caller is anonymous. A
// uniqueness-constraint failure means another request won the race;
// the commit aborts cleanly with ErrDuplicateAccount.
func (s *CheckoutService) resolveUser(ctx context.Context, sess *model.CheckoutSession, userID uint64) (model.User, error) {
	if userID != 0 {
		return s.users.GetByID(ctx, userID)
	}
	if sess.AnonymousEmail == "" || sess.AnonymousName == "" {
		return model.User{}, ErrMissingContact
	}
	password, err := s.password()
	if err != nil {
		return model.User{}, err
	}
	id, err := s.users.Create(ctx, sess.AnonymousEmail, sess.AnonymousName, password, s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			log.Printf("checkout: implicit signup raced for %s, possible double submit", sess.AnonymousEmail)
			return model.User{}, ErrDuplicateAccount
		}
		return model.User{}, err
	}
	return model.User{ID: id, Email: sess.AnonymousEmail, Name: sess.AnonymousName}, nil
}

// expiryFor returns the ticket expiry deadline for the currency, or
// nil when tickets in that currency never expire via this path.
func (s *CheckoutService) expiryFor(currency string) *time.Time {
	var days int
	switch currency {
	case "GBP":
		days = s.cfg.ExpiryDaysTransfer
	case "EUR":
		days = s.cfg.ExpiryDaysTransferEuro
	default:
		return nil
	}
	t := s.now().Add(time.Duration(days) * 24 * time.Hour)
	return &t
}
