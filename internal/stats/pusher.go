package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"traffic-decision-engine/internal/backoff"
	"traffic-decision-engine/internal/observability"
)

// Pusher posts completed hourly buckets to the central platform on a timer.
// Delivery is at-least-once: buckets are merged back on any failure and
// retried next tick, and the central store folds duplicates additively.
type Pusher struct {
	Agg       *Aggregator
	URL       string
	Token     string
	AccountID int64
	Interval  time.Duration
	Client    *http.Client
}

func NewPusher(agg *Aggregator, url, token string, accountID int64, interval time.Duration) *Pusher {
	return &Pusher{
		Agg:       agg,
		URL:       url,
		Token:     token,
		AccountID: accountID,
		Interval:  interval,
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Run pushes on a jittered timer until ctx is canceled, with one final
// flush attempt on shutdown.
func (p *Pusher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			p.PushOnce(flushCtx, time.Now())
			cancel()
			log.Info().Msg("stats pusher stopped")
			return
		case <-time.After(backoff.Jitter(p.Interval)):
			p.PushOnce(ctx, time.Now())
		}
	}
}

// PushOnce takes all completed-hour buckets and posts them. On failure the
// batch is restored for the next attempt.
func (p *Pusher) PushOnce(ctx context.Context, now time.Time) {
	batch := p.Agg.TakeCompleted(now)
	if batch.Empty() {
		return
	}
	batch.AccountID = p.AccountID
	batch.BatchID = uuid.NewString()
	batch.Timestamp = now.UTC()

	if err := p.post(ctx, batch); err != nil {
		observability.StatsPushes.WithLabelValues("error").Inc()
		log.Error().Err(err).Int("shield", len(batch.Shield)).Int("links", len(batch.Links)).Msg("stats push failed; retaining buckets")
		p.Agg.Restore(batch)
		return
	}
	observability.StatsPushes.WithLabelValues("ok").Inc()
	log.Info().Str("batch", batch.BatchID).Int("shield", len(batch.Shield)).Int("links", len(batch.Links)).Int("mab", len(batch.Mab)).Msg("stats pushed")
}

func (p *Pusher) post(ctx context.Context, batch Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Token)

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("stats push: unexpected status %d", resp.StatusCode)
	}
	return nil
}
