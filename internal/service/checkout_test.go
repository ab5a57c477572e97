package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfield/ticketoffice/internal/model"
	q "github.com/campfield/ticketoffice/internal/queue"
	"github.com/campfield/ticketoffice/internal/repository"
)

// fakeSessions stores deep copies so service-side mutations only
// become visible through Put, like the real Redis store.
type fakeSessions struct {
	data   map[string]*model.CheckoutSession
	putErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: map[string]*model.CheckoutSession{}}
}

func cloneSession(s *model.CheckoutSession) *model.CheckoutSession {
	raw, _ := json.Marshal(s)
	var out model.CheckoutSession
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (f *fakeSessions) Get(ctx context.Context, token string) (*model.CheckoutSession, error) {
	if s, ok := f.data[token]; ok {
		return cloneSession(s), nil
	}
	return &model.CheckoutSession{Token: token, Stage: model.StageSelecting}, nil
}

func (f *fakeSessions) Put(ctx context.Context, sess *model.CheckoutSession) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.data[sess.Token] = cloneSession(sess)
	return nil
}

type fakeTypes struct{ types map[uint64]*model.TicketType }

func (f *fakeTypes) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.TicketType, error) {
	out := map[uint64]*model.TicketType{}
	for _, id := range ids {
		if t, ok := f.types[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

type fakeUsers struct {
	byEmail   map[string]model.User
	byID      map[uint64]model.User
	createErr error
	nextID    uint64
	created   []model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]model.User{}, byID: map[uint64]model.User{}, nextID: 100}
}

func (f *fakeUsers) add(u model.User) {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
}

func (f *fakeUsers) Create(ctx context.Context, email, name, password string, cost int) (uint64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	if _, ok := f.byEmail[email]; ok {
		return 0, repository.ErrEmailExists
	}
	f.nextID++
	u := model.User{ID: f.nextID, Email: email, Name: name}
	f.add(u)
	f.created = append(f.created, u)
	return u.ID, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return model.User{}, sql.ErrNoRows
}

func (f *fakeUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return model.User{}, sql.ErrNoRows
}

type fakePurchases struct {
	err     error
	payment *model.Payment
	drafts  []model.TicketDraft
}

func (f *fakePurchases) CreatePurchase(ctx context.Context, payment *model.Payment, drafts []model.TicketDraft) ([]uint64, error) {
	if f.err != nil {
		return nil, f.err
	}
	payment.ID = 555
	f.payment = payment
	f.drafts = drafts
	ids := make([]uint64, len(drafts))
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	return ids, nil
}

type fakeNotifier struct {
	transfers []q.TicketTransferredEvent
	payments  []q.PaymentCreatedEvent
	err       error
}

func (f *fakeNotifier) TicketTransferred(ctx context.Context, ev q.TicketTransferredEvent) error {
	if f.err != nil {
		return f.err
	}
	f.transfers = append(f.transfers, ev)
	return nil
}

func (f *fakeNotifier) PaymentCreated(ctx context.Context, ev q.PaymentCreatedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.payments = append(f.payments, ev)
	return nil
}

func gbp(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testCatalogue() *fakeTypes {
	return &fakeTypes{types: map[uint64]*model.TicketType{
		1: {ID: 1, Name: "Full Camp Ticket", Admits: model.AdmitsFull,
			Prices: map[string]decimal.Decimal{"GBP": gbp(90), "EUR": gbp(110)}},
		2: {ID: 2, Name: "Car Parking", Admits: model.AdmitsCar,
			Prices: map[string]decimal.Decimal{"GBP": gbp(15), "EUR": gbp(20), "USD": gbp(25)}},
	}}
}

type checkoutFixture struct {
	svc       *CheckoutService
	sessions  *fakeSessions
	users     *fakeUsers
	purchases *fakePurchases
	notifier  *fakeNotifier
	now       time.Time
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		sessions:  newFakeSessions(),
		users:     newFakeUsers(),
		purchases: &fakePurchases{},
		notifier:  &fakeNotifier{},
		now:       time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewCheckoutService(f.sessions, testCatalogue(), f.users, f.purchases, f.notifier,
		CheckoutConfig{ExpiryDaysTransfer: 10, ExpiryDaysTransferEuro: 14, BcryptCost: 4})
	f.svc.now = func() time.Time { return f.now }
	f.svc.password = func() (string, error) { return "throwaway", nil }
	return f
}

func (f *checkoutFixture) seedSession(sess *model.CheckoutSession) {
	f.sessions.data[sess.Token] = cloneSession(sess)
}

func readySession() *model.CheckoutSession {
	return &model.CheckoutSession{
		Token:  "tok",
		Stage:  model.StageReadyToPay,
		Basket: []uint64{1, 2},
		Info:   []model.InfoEntry{{Position: 0, Name: "Alex Doe"}},
	}
}

func TestCommitCreatesPaymentAndClearsSession(t *testing.T) {
	f := newCheckoutFixture(t)
	f.users.add(model.User{ID: 7, Email: "alex@example.org", Name: "Alex"})
	f.seedSession(readySession())

	payment, err := f.svc.Commit(context.Background(), "tok", 7, model.MethodBankTransfer)
	require.NoError(t, err)

	// 90 + 15 tickets plus the flat 2.00 bank transfer premium.
	assert.Equal(t, "107.00", payment.Amount.StringFixed(2))
	assert.Equal(t, "GBP", payment.Currency)
	assert.Equal(t, model.PaymentPending, payment.State)
	assert.EqualValues(t, 7, payment.UserID)

	require.Len(t, f.purchases.drafts, 2)
	assert.EqualValues(t, 1, f.purchases.drafts[0].TypeID)
	assert.Equal(t, "90", f.purchases.drafts[0].Price.String())
	require.Len(t, f.purchases.drafts[0].Attribs, 1)
	assert.Equal(t, model.AttribName, f.purchases.drafts[0].Attribs[0].Name)
	assert.Empty(t, f.purchases.drafts[1].Attribs)

	// GBP purchases expire after the configured 10 days.
	require.NotNil(t, f.purchases.drafts[0].Expires)
	assert.Equal(t, f.now.Add(10*24*time.Hour), *f.purchases.drafts[0].Expires)

	stored := f.sessions.data["tok"]
	require.NotNil(t, stored)
	assert.Equal(t, model.StageCommitted, stored.Stage)
	assert.Empty(t, stored.Basket)
	assert.Empty(t, stored.Info)

	require.Len(t, f.notifier.payments, 1)
	assert.Equal(t, "107.00", f.notifier.payments[0].Amount)
	assert.Equal(t, 2, f.notifier.payments[0].TicketCount)
}

func TestCommitEuroExpiry(t *testing.T) {
	f := newCheckoutFixture(t)
	f.users.add(model.User{ID: 7, Email: "alex@example.org"})
	sess := readySession()
	sess.Currency = "EUR"
	f.seedSession(sess)

	_, err := f.svc.Commit(context.Background(), "tok", 7, model.MethodCard)
	require.NoError(t, err)
	require.NotNil(t, f.purchases.drafts[0].Expires)
	assert.Equal(t, f.now.Add(14*24*time.Hour), *f.purchases.drafts[0].Expires)
}

func TestCommitOtherCurrencyNeverExpires(t *testing.T) {
	f := newCheckoutFixture(t)
	f.users.add(model.User{ID: 7, Email: "alex@example.org"})
	sess := &model.CheckoutSession{
		Token:    "tok",
		Stage:    model.StageReadyToPay,
		Basket:   []uint64{2},
		Currency: "USD",
	}
	f.seedSession(sess)

	_, err := f.svc.Commit(context.Background(), "tok", 7, model.MethodCard)
	require.NoError(t, err)
	assert.Nil(t, f.purchases.drafts[0].Expires)
}

func TestCommitInvalidMethod(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.Commit(context.Background(), "tok", 7, "cheque")
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestCommitEmptyBasket(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.Commit(context.Background(), "unknown-token", 7, model.MethodCard)
	assert.ErrorIs(t, err, ErrEmptyBasket)
	assert.Nil(t, f.purchases.payment)
}

func TestCommitInfoMismatch(t *testing.T) {
	cases := map[string][]model.InfoEntry{
		"missing entry":             nil,
		"entry for formless ticket": {{Position: 0, Name: "A"}, {Position: 1, Name: "B"}},
		"duplicate position":        {{Position: 0, Name: "A"}, {Position: 0, Name: "B"}},
		"wrong position":            {{Position: 1, Name: "A"}},
	}
	for name, info := range cases {
		t.Run(name, func(t *testing.T) {
			f := newCheckoutFixture(t)
			f.users.add(model.User{ID: 7, Email: "alex@example.org"})
			sess := readySession()
			sess.Info = info
			f.seedSession(sess)

			_, err := f.svc.Commit(context.Background(), "tok", 7, model.MethodCard)
			assert.ErrorIs(t, err, ErrInfoMismatch)
			assert.Nil(t, f.purchases.payment, "nothing may be persisted")
		})
	}
}

func TestCommitRejectsDoubleCommit(t *testing.T) {
	f := newCheckoutFixture(t)
	f.users.add(model.User{ID: 7, Email: "alex@example.org"})
	sess := readySession()
	sess.Stage = model.StageCommitted
	sess.Info = nil
	sess.Basket = []uint64{2}
	f.seedSession(sess)

	_, err := f.svc.Commit(context.Background(), "tok", 7, model.MethodCard)
	assert.ErrorIs(t, err, model.ErrBadTransition)
}

func TestCommitPurchaseFailureLeavesSessionIntact(t *testing.T) {
	f := newCheckoutFixture(t)
	f.users.add(model.User{ID: 7, Email: "alex@example.org"})
	f.purchases.err = errors.New("deadlock")
	f.seedSession(readySession())

	_, err := f.svc.Commit(context.Background(), "tok", 7, model.MethodCard)
	require.Error(t, err)

	stored := f.sessions.data["tok"]
	require.NotNil(t, stored)
	assert.Equal(t, model.StageReadyToPay, stored.Stage, "stage change must not persist")
	assert.Equal(t, []uint64{1, 2}, stored.Basket, "basket survives a failed commit")
	assert.Empty(t, f.notifier.payments)
}

func TestCommitAnonymousCreatesAccount(t *testing.T) {
	f := newCheckoutFixture(t)
	sess := readySession()
	sess.AnonymousEmail = "new@example.org"
	sess.AnonymousName = "New Buyer"
	f.seedSession(sess)

	payment, err := f.svc.Commit(context.Background(), "tok", 0, model.MethodCard)
	require.NoError(t, err)

	require.Len(t, f.users.created, 1)
	assert.Equal(t, "new@example.org", f.users.created[0].Email)
	assert.Equal(t, f.users.created[0].ID, payment.UserID)
}

func TestCommitAnonymousWithoutContact(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedSession(readySession())

	_, err := f.svc.Commit(context.Background(), "tok", 0, model.MethodCard)
	assert.ErrorIs(t, err, ErrMissingContact)
}

func TestCommitDuplicateAccountAbortsAndKeepsBasket(t *testing.T) {
	f := newCheckoutFixture(t)
	f.users.add(model.User{ID: 9, Email: "taken@example.org", Name: "Existing"})
	sess := readySession()
	sess.AnonymousEmail = "taken@example.org"
	sess.AnonymousName = "Someone Else"
	f.seedSession(sess)

	_, err := f.svc.Commit(context.Background(), "tok", 0, model.MethodCard)
	assert.ErrorIs(t, err, ErrDuplicateAccount)
	assert.Nil(t, f.purchases.payment, "zero writes on a duplicate account")

	stored := f.sessions.data["tok"]
	assert.Equal(t, []uint64{1, 2}, stored.Basket, "basket preserved so the buyer can sign in and retry")
	assert.Equal(t, model.StageReadyToPay, stored.Stage)
}

func TestBasketAndTotalSkipsUnknownTypesAndCurrencies(t *testing.T) {
	f := newCheckoutFixture(t)
	sess := &model.CheckoutSession{
		Token:    "tok",
		Basket:   []uint64{1, 99, 2},
		Currency: "USD", // only the car type has a USD price
	}

	lines, total, err := f.svc.BasketAndTotal(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Position, "positions refer to the original basket")
	assert.Equal(t, "25", total.String())
}

func TestBasketAndTotalEmpty(t *testing.T) {
	f := newCheckoutFixture(t)
	lines, total, err := f.svc.BasketAndTotal(context.Background(), &model.CheckoutSession{Token: "t"})
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.True(t, total.IsZero())
}
