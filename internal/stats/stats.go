// Package stats accumulates two tiers of hourly counters and periodically
// pushes completed hours to the central platform. Shield buckets are the
// compact per-domain rollup for pass/block/bot-shield outcomes; link
// buckets add country/device dimensions for redirect outcomes; mab buckets
// count impressions per weighted-redirect variant.
package stats

import "time"

// Tier selects which rollup an event folds into.
type Tier int

const (
	TierShield Tier = iota
	TierLink
)

// Event is one decision outcome. Recorded fire-and-forget on the request
// path and folded into buckets by a single drainer goroutine.
type Event struct {
	Tier    Tier
	Domain  string
	RuleID  int64 // 0 when no rule matched
	Action  string
	Country string
	Device  string
	Variant string // weighted-redirect variant URL, impression tracking
	At      time.Time
}

type shieldKey struct {
	Domain string
	RuleID int64
	Hour   int64 // unix seconds, truncated to the hour
}

type linkKey struct {
	Domain  string
	RuleID  int64
	Hour    int64
	Country string
	Device  string
}

type mabKey struct {
	RuleID  int64
	Variant string
	Hour    int64
}

// ShieldRow is the wire form of one shield bucket.
type ShieldRow struct {
	Domain string    `json:"domain_name"`
	RuleID int64     `json:"rule_id,omitempty"`
	Hour   time.Time `json:"hour"`
	Hits   int64     `json:"hits"`
	Blocks int64     `json:"blocks"`
	Passes int64     `json:"passes"`
}

// LinkRow is the wire form of one link bucket.
type LinkRow struct {
	Domain    string    `json:"domain_name"`
	RuleID    int64     `json:"rule_id"`
	Hour      time.Time `json:"hour"`
	Country   string    `json:"country"`
	Device    string    `json:"device"`
	Hits      int64     `json:"hits"`
	Redirects int64     `json:"redirects"`
}

// MabRow is the wire form of one variant-impression bucket.
type MabRow struct {
	RuleID      int64     `json:"rule_id"`
	VariantURL  string    `json:"variant_url"`
	Hour        time.Time `json:"hour"`
	Impressions int64     `json:"impressions"`
}

// Batch is one push payload. BatchID is the idempotency key for
// at-least-once delivery: a retried batch carries the same id so the
// central store can dedupe.
type Batch struct {
	AccountID int64       `json:"account_id"`
	BatchID   string      `json:"batch_id"`
	Timestamp time.Time   `json:"timestamp"`
	Shield    []ShieldRow `json:"shield"`
	Links     []LinkRow   `json:"links"`
	Mab       []MabRow    `json:"mab"`
}

func (b Batch) Empty() bool {
	return len(b.Shield) == 0 && len(b.Links) == 0 && len(b.Mab) == 0
}

func hourOf(t time.Time) int64 {
	return t.UTC().Truncate(time.Hour).Unix()
}
