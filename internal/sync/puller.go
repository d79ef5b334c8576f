// Package sync pulls rule snapshots from the central platform. The
// protocol is a cheap poll: the edge sends its current version token and
// gets either "unchanged" (304) or a full replacement snapshot. Failures
// leave the existing cache serving; no request ever fails because a pull
// did.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"traffic-decision-engine/internal/backoff"
	"traffic-decision-engine/internal/cache"
	"traffic-decision-engine/internal/observability"
	"traffic-decision-engine/internal/rules"
)

// Response is the /sync wire format.
type Response struct {
	Version string               `json:"version"`
	Rules   []rules.Rule         `json:"rules"`
	Configs []rules.DomainConfig `json:"configs"`
}

type Puller struct {
	URL      string
	Token    string
	Cache    *cache.RuleCache
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client
}

func NewPuller(url, token string, c *cache.RuleCache, interval, timeout time.Duration) *Puller {
	return &Puller{
		URL:      url,
		Token:    token,
		Cache:    c,
		Interval: interval,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Run polls until ctx is canceled. The first pull happens immediately so
// the edge serves real rules as soon as the central store answers.
func (p *Puller) Run(ctx context.Context) {
	if err := p.PullOnce(ctx); err != nil {
		log.Error().Err(err).Msg("initial sync pull")
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sync puller stopped")
			return
		case <-time.After(backoff.Jitter(p.Interval)):
			if p.Cache.Fresh(time.Now()) {
				continue
			}
			if err := p.PullOnce(ctx); err != nil {
				log.Error().Err(err).Msg("sync pull failed; serving stale cache")
			}
		}
	}
}

// PullOnce performs one pull. An "unchanged" answer extends the TTL; a
// changed answer replaces the whole snapshot atomically. A pull exceeding
// its deadline is abandoned and the cache is simply not refreshed.
func (p *Puller) PullOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	u := p.URL
	if v := p.Cache.Version(); v != "" {
		u += "?version=" + url.QueryEscape(v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)

	resp, err := p.Client.Do(req)
	if err != nil {
		observability.SyncPulls.WithLabelValues("error").Inc()
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		observability.SyncPulls.WithLabelValues("unchanged").Inc()
		p.Cache.Touch()
		return nil
	case http.StatusOK:
		var body Response
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			observability.SyncPulls.WithLabelValues("error").Inc()
			return fmt.Errorf("decode sync response: %w", err)
		}
		p.apply(body)
		observability.SyncPulls.WithLabelValues("changed").Inc()
		return nil
	default:
		observability.SyncPulls.WithLabelValues("error").Inc()
		return fmt.Errorf("sync: unexpected status %d", resp.StatusCode)
	}
}

func (p *Puller) apply(body Response) {
	byDomain := rules.CompileAll(body.Rules)
	configs := make(map[string]rules.DomainConfig, len(body.Configs))
	for _, c := range body.Configs {
		configs[strings.ToLower(c.Domain)] = c
	}
	p.Cache.Replace(body.Version, byDomain, configs)
	log.Info().Str("version", body.Version).Int("rules", len(body.Rules)).Int("configs", len(body.Configs)).Msg("rule snapshot replaced")
}
