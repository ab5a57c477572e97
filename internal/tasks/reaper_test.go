package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfield/ticketoffice/internal/model"
)

type fakeExpiry struct {
	expired int64
	err     error
	gotNow  time.Time
}

func (f *fakeExpiry) ExpireOverduePurchases(ctx context.Context, now time.Time) (int64, error) {
	f.gotNow = now
	return f.expired, f.err
}

type fakeResults struct {
	inserted []model.ScheduledTaskResult
	err      error
}

func (f *fakeResults) Insert(ctx context.Context, res *model.ScheduledTaskResult) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, *res)
	return nil
}

func TestSweepRecordsRun(t *testing.T) {
	expiry := &fakeExpiry{expired: 3}
	results := &fakeResults{}
	r := NewReaper(expiry, results, time.Minute)
	now := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Sweep(context.Background()))
	assert.Equal(t, now, expiry.gotNow)

	require.Len(t, results.inserted, 1)
	run := results.inserted[0]
	assert.Equal(t, TaskName, run.Name)
	assert.Equal(t, now, run.StartTime)

	var payload map[string]int64
	require.NoError(t, json.Unmarshal(run.Result, &payload))
	assert.EqualValues(t, 3, payload["expired"])
}

func TestSweepRecordsZeroExpirations(t *testing.T) {
	results := &fakeResults{}
	r := NewReaper(&fakeExpiry{}, results, time.Minute)

	require.NoError(t, r.Sweep(context.Background()))
	require.Len(t, results.inserted, 1, "quiet runs are recorded too")

	var payload map[string]int64
	require.NoError(t, json.Unmarshal(results.inserted[0].Result, &payload))
	assert.Zero(t, payload["expired"])
}

func TestSweepPropagatesExpiryError(t *testing.T) {
	results := &fakeResults{}
	r := NewReaper(&fakeExpiry{err: errors.New("db gone")}, results, time.Minute)

	assert.Error(t, r.Sweep(context.Background()))
	assert.Empty(t, results.inserted, "failed sweeps record nothing")
}

func TestNewReaperDefaultsInterval(t *testing.T) {
	r := NewReaper(&fakeExpiry{}, &fakeResults{}, 0)
	assert.Equal(t, 10*time.Minute, r.interval)
}
