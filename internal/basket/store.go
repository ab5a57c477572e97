// Package basket implements the Redis-backed checkout session
// store. Each in-flight checkout lives under one key as a single
// JSON document, keyed by an opaque token the client carries in a
// header or cookie. A missing or expired key is not an error: the
// caller gets a fresh empty session, matching the "empty basket,
// zero total" contract.
package basket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campfield/ticketoffice/internal/model"
)

const keyPrefix = "checkout:"

// Store reads and writes checkout sessions.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns a Store using the given Redis client. Sessions
// expire after ttl of inactivity; every write refreshes the clock.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// NewToken mints an opaque session token.
func NewToken() string { return uuid.NewString() }

// Get loads the session for the token. An unknown token yields a
// fresh session in the selecting stage rather than an error, so
// first-time visitors and expired sessions behave identically.
func (s *Store) Get(ctx context.Context, token string) (*model.CheckoutSession, error) {
	if token == "" {
		token = NewToken()
	}
	raw, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return &model.CheckoutSession{Token: token, Stage: model.StageSelecting}, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		// A corrupt session is unrecoverable; start over.
		return &model.CheckoutSession{Token: token, Stage: model.StageSelecting}, nil
	}
	sess.Token = token
	return &sess, nil
}

// Put persists the session and refreshes its TTL.
func (s *Store) Put(ctx context.Context, sess *model.CheckoutSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+sess.Token, raw, s.ttl).Err()
}

// Delete removes the session outright (explicit abandonment).
func (s *Store) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, keyPrefix+token).Err()
}

// Advance validates and applies a stage transition, persisting the
// session on success.
func (s *Store) Advance(ctx context.Context, sess *model.CheckoutSession, stage string) error {
	if err := sess.Advance(stage); err != nil {
		return err
	}
	return s.Put(ctx, sess)
}
