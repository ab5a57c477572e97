package basket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfield/ticketoffice/internal/model"
)

func TestGetUnknownTokenYieldsFreshSession(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewStore(client, time.Hour)

	mock.ExpectGet("checkout:tok-1").RedisNil()

	sess, err := store.Get(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, model.StageSelecting, sess.Stage)
	assert.Empty(t, sess.Basket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCorruptSessionStartsOver(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewStore(client, time.Hour)

	mock.ExpectGet("checkout:tok-2").SetVal("{not json")

	sess, err := store.Get(context.Background(), "tok-2")
	require.NoError(t, err)
	assert.Equal(t, model.StageSelecting, sess.Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutAndGetRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewStore(client, time.Hour)

	sess := &model.CheckoutSession{
		Token:    "tok-3",
		Stage:    model.StageInfoEntry,
		Basket:   []uint64{4, 4, 9},
		Currency: "EUR",
	}
	raw, err := json.Marshal(sess)
	require.NoError(t, err)

	mock.ExpectSet("checkout:tok-3", raw, time.Hour).SetVal("OK")
	require.NoError(t, store.Put(context.Background(), sess))

	mock.ExpectGet("checkout:tok-3").SetVal(string(raw))
	got, err := store.Get(context.Background(), "tok-3")
	require.NoError(t, err)
	assert.Equal(t, sess.Basket, got.Basket)
	assert.Equal(t, model.StageInfoEntry, got.Stage)
	assert.Equal(t, "EUR", got.Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceRejectsIllegalTransitionWithoutWriting(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewStore(client, time.Hour)

	sess := &model.CheckoutSession{Token: "tok-4", Stage: model.StageSelecting}
	err := store.Advance(context.Background(), sess, model.StageCommitted)
	assert.ErrorIs(t, err, model.ErrBadTransition)
	assert.NoError(t, mock.ExpectationsWereMet(), "no Redis write on a rejected transition")
}

func TestDelete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewStore(client, time.Hour)

	mock.ExpectDel("checkout:tok-5").SetVal(1)
	require.NoError(t, store.Delete(context.Background(), "tok-5"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
