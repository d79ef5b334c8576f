// Package cache holds the edge-local rule snapshot. The snapshot is
// replaced wholesale on every successful sync and read by many concurrent
// requests; a single atomic swap means readers never observe a
// partially-updated rule list.
package cache

import (
	"time"

	"traffic-decision-engine/internal/rules"
)

// RuleSet is one immutable snapshot of all synced state. Per-domain rule
// lists are priority-sorted at compile time.
type RuleSet struct {
	Version  string
	ByDomain map[string][]rules.CompiledRule
	Configs  map[string]rules.DomainConfig
	Expires  time.Time
}

// RuleCache wraps the snapshot with TTL bookkeeping. Staleness is advisory:
// an expired snapshot keeps serving until the sync puller replaces it, so a
// central-store outage never fails requests.
type RuleCache struct {
	snap Snapshot[*RuleSet]
	ttl  time.Duration
}

func New(ttl time.Duration) *RuleCache {
	return &RuleCache{ttl: ttl}
}

// Get returns the rule list and domain config for one domain from the
// current snapshot. ok is false when no snapshot has been loaded yet.
func (c *RuleCache) Get(domain string) (list []rules.CompiledRule, cfg rules.DomainConfig, ok bool) {
	set, loaded := c.snap.Load()
	if !loaded {
		return nil, rules.DomainConfig{}, false
	}
	cfg, hasCfg := set.Configs[domain]
	if !hasCfg {
		cfg = rules.DomainConfig{Domain: domain, Enabled: true, DefaultAction: rules.ActionPass}
	}
	return set.ByDomain[domain], cfg, true
}

// Version returns the current snapshot's version token, or "" before the
// first sync.
func (c *RuleCache) Version() string {
	set, ok := c.snap.Load()
	if !ok {
		return ""
	}
	return set.Version
}

// Fresh reports whether the snapshot exists and its TTL has not elapsed.
// The sync puller uses this to decide whether a pull is due.
func (c *RuleCache) Fresh(now time.Time) bool {
	set, ok := c.snap.Load()
	return ok && now.Before(set.Expires)
}

// Replace swaps in a new snapshot with a fresh TTL.
func (c *RuleCache) Replace(version string, byDomain map[string][]rules.CompiledRule, configs map[string]rules.DomainConfig) {
	c.snap.Store(&RuleSet{
		Version:  version,
		ByDomain: byDomain,
		Configs:  configs,
		Expires:  time.Now().Add(c.ttl),
	})
}

// Touch resets the TTL on the existing snapshot after an "unchanged" sync
// response.
func (c *RuleCache) Touch() {
	set, ok := c.snap.Load()
	if !ok {
		return
	}
	next := *set
	next.Expires = time.Now().Add(c.ttl)
	c.snap.Store(&next)
}

// Invalidate marks the snapshot expired so the next sync tick pulls
// immediately. The data keeps serving meanwhile.
func (c *RuleCache) Invalidate() {
	set, ok := c.snap.Load()
	if !ok {
		return
	}
	next := *set
	next.Expires = time.Time{}
	c.snap.Store(&next)
}
