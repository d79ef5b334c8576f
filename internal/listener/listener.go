// Package listener watches the authoritative store for rule or binding
// changes via LISTEN/NOTIFY and drops the sync handler's cached version
// token, so the next edge pull recomputes it instead of waiting out a poll
// cycle.
package listener

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"traffic-decision-engine/internal/backoff"
	"traffic-decision-engine/internal/storage"
)

// Invalidator is what the listener pokes on change.
type Invalidator interface {
	Invalidate()
}

type notificationWaiter interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// ListenAndInvalidate holds a LISTEN connection open and invalidates the
// sync token on every notification. When the connection dies it is
// re-acquired and re-subscribed after a jittered backoff, so a restarted
// or failed-over database does not leave edges syncing against a stale
// token forever.
func ListenAndInvalidate(ctx context.Context, st *storage.Store, inv Invalidator, channel string, baseBackoff time.Duration) {
	if channel == "" {
		channel = st.ListenChannel()
	}
	for ctx.Err() == nil {
		if err := listenOnce(ctx, st, inv, channel); err != nil && ctx.Err() == nil {
			wait := backoff.Jitter(baseBackoff)
			log.Error().Err(err).Dur("retry_in", wait).Msg("listen connection lost; reconnecting")
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
		}
	}
	log.Info().Msg("listener stopped")
}

func listenOnce(ctx context.Context, st *storage.Store, inv Invalidator, channel string) error {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for rule changes")
	return watch(ctx, conn.Conn(), inv)
}

// watch invalidates on every notification. Invalidation is a single atomic
// store, so bursts are not coalesced; skipping one could leave the cached
// token serving 304s for data that has already changed.
func watch(ctx context.Context, w notificationWaiter, inv Invalidator) error {
	for {
		ntf, err := w.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		log.Info().Str("channel", ntf.Channel).Msg("rule data changed; invalidating sync token")
		inv.Invalidate()
	}
}
