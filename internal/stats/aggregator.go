package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"traffic-decision-engine/internal/observability"
)

// Aggregator folds decision events into hourly buckets. Record is
// non-blocking: the queue is bounded and drops the oldest pending event on
// overflow, keeping the freshest counters flowing under load. Drops are
// counted in a metric so loss is observable.
type Aggregator struct {
	queue chan Event

	mu     sync.Mutex
	shield map[shieldKey]*ShieldRow
	links  map[linkKey]*LinkRow
	mab    map[mabKey]*MabRow
}

func NewAggregator(queueSize int) *Aggregator {
	return &Aggregator{
		queue:  make(chan Event, queueSize),
		shield: make(map[shieldKey]*ShieldRow),
		links:  make(map[linkKey]*LinkRow),
		mab:    make(map[mabKey]*MabRow),
	}
}

// Record enqueues one event without blocking the request path.
func (a *Aggregator) Record(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	for {
		select {
		case a.queue <- e:
			return
		default:
		}
		// queue full: evict the oldest pending event and retry
		select {
		case <-a.queue:
			observability.StatsEventsDropped.Inc()
		default:
		}
	}
}

// Run drains the queue until ctx is canceled, then folds whatever is still
// buffered so shutdown does not lose enqueued events.
func (a *Aggregator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-a.queue:
					a.fold(e)
				default:
					log.Info().Msg("stats drainer stopped")
					return
				}
			}
		case e := <-a.queue:
			a.fold(e)
		}
	}
}

func (a *Aggregator) fold(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hour := hourOf(e.At)
	switch e.Tier {
	case TierShield:
		k := shieldKey{Domain: e.Domain, RuleID: e.RuleID, Hour: hour}
		row, ok := a.shield[k]
		if !ok {
			row = &ShieldRow{Domain: e.Domain, RuleID: e.RuleID, Hour: time.Unix(hour, 0).UTC()}
			a.shield[k] = row
		}
		row.Hits++
		switch e.Action {
		case "block":
			row.Blocks++
		case "pass":
			row.Passes++
		}
	case TierLink:
		k := linkKey{Domain: e.Domain, RuleID: e.RuleID, Hour: hour, Country: e.Country, Device: e.Device}
		row, ok := a.links[k]
		if !ok {
			row = &LinkRow{Domain: e.Domain, RuleID: e.RuleID, Hour: time.Unix(hour, 0).UTC(), Country: e.Country, Device: e.Device}
			a.links[k] = row
		}
		row.Hits++
		if e.Action == "redirect" {
			row.Redirects++
		}
	}

	if e.Variant != "" {
		k := mabKey{RuleID: e.RuleID, Variant: e.Variant, Hour: hour}
		row, ok := a.mab[k]
		if !ok {
			row = &MabRow{RuleID: e.RuleID, VariantURL: e.Variant, Hour: time.Unix(hour, 0).UTC()}
			a.mab[k] = row
		}
		row.Impressions++
	}
}

// TakeCompleted removes and returns all buckets strictly older than the
// hour containing now. The open hour is never taken, so a racing increment
// can only land in a bucket that is not yet eligible for push.
func (a *Aggregator) TakeCompleted(now time.Time) Batch {
	cutoff := hourOf(now)

	a.mu.Lock()
	defer a.mu.Unlock()

	var b Batch
	for k, row := range a.shield {
		if k.Hour < cutoff {
			b.Shield = append(b.Shield, *row)
			delete(a.shield, k)
		}
	}
	for k, row := range a.links {
		if k.Hour < cutoff {
			b.Links = append(b.Links, *row)
			delete(a.links, k)
		}
	}
	for k, row := range a.mab {
		if k.Hour < cutoff {
			b.Mab = append(b.Mab, *row)
			delete(a.mab, k)
		}
	}
	return b
}

// Restore merges a failed batch back additively, so an unacknowledged push
// is retried rather than lost. Counters commute, so interleaved folds are
// safe.
func (a *Aggregator) Restore(b Batch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range b.Shield {
		k := shieldKey{Domain: r.Domain, RuleID: r.RuleID, Hour: r.Hour.Unix()}
		if row, ok := a.shield[k]; ok {
			row.Hits += r.Hits
			row.Blocks += r.Blocks
			row.Passes += r.Passes
		} else {
			r := r
			a.shield[k] = &r
		}
	}
	for _, r := range b.Links {
		k := linkKey{Domain: r.Domain, RuleID: r.RuleID, Hour: r.Hour.Unix(), Country: r.Country, Device: r.Device}
		if row, ok := a.links[k]; ok {
			row.Hits += r.Hits
			row.Redirects += r.Redirects
		} else {
			r := r
			a.links[k] = &r
		}
	}
	for _, r := range b.Mab {
		k := mabKey{RuleID: r.RuleID, Variant: r.VariantURL, Hour: r.Hour.Unix()}
		if row, ok := a.mab[k]; ok {
			row.Impressions += r.Impressions
		} else {
			r := r
			a.mab[k] = &r
		}
	}
}
