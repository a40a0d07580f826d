package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
)

// RetryPolicy bounds how storage writes are retried.
type RetryPolicy struct {
	Tries   uint
	Initial time.Duration
	Max     time.Duration
}

// DefaultRetry makes three attempts with exponential backoff from 100ms.
var DefaultRetry = RetryPolicy{Tries: 3, Initial: 100 * time.Millisecond, Max: time.Second}

func (p RetryPolicy) options() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	tries := p.Tries
	if tries == 0 {
		tries = 1
	}
	return []backoff.RetryOption{backoff.WithBackOff(b), backoff.WithMaxTries(tries)}
}

func retry[T any](ctx context.Context, p RetryPolicy, log *logging.Logger, what string, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, domain.ErrReservationNotFound) || errors.Is(err, errCorrupt) {
			return v, backoff.Permanent(err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("op", what).Msg("storage write failed")
		return v, err
	}, p.options()...)
}

// RetryingReservations retries failed writes on a reservation store.
type RetryingReservations struct {
	domain.ReservationStore
	policy RetryPolicy
	log    *logging.Logger
}

// WithReservationRetry wraps s so Append and Update are retried under p.
func WithReservationRetry(s domain.ReservationStore, p RetryPolicy, log *logging.Logger) *RetryingReservations {
	return &RetryingReservations{ReservationStore: s, policy: p, log: log.Sub("store")}
}

func (r *RetryingReservations) Append(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	return retry(ctx, r.policy, r.log, "append reservation", func() (domain.Reservation, error) {
		return r.ReservationStore.Append(ctx, res)
	})
}

func (r *RetryingReservations) Update(ctx context.Context, id int, mutate func(*domain.Reservation)) (domain.Reservation, error) {
	return retry(ctx, r.policy, r.log, "update reservation", func() (domain.Reservation, error) {
		return r.ReservationStore.Update(ctx, id, mutate)
	})
}

// RetryingSessions retries failed saves on a session store.
type RetryingSessions struct {
	domain.SessionStore
	policy RetryPolicy
	log    *logging.Logger
}

// WithSessionRetry wraps s so Save is retried under p.
func WithSessionRetry(s domain.SessionStore, p RetryPolicy, log *logging.Logger) *RetryingSessions {
	return &RetryingSessions{SessionStore: s, policy: p, log: log.Sub("store")}
}

func (r *RetryingSessions) Save(ctx context.Context, sess *domain.Session) error {
	_, err := retry(ctx, r.policy, r.log, "save session", func() (struct{}, error) {
		return struct{}{}, r.SessionStore.Save(ctx, sess)
	})
	return err
}
