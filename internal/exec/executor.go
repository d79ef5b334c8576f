// Package exec turns a matched rule (or a domain's default policy) into the
// terminal per-request outcome: pass, block, or redirect. Stat events are
// recorded fire-and-forget; the response never waits on them.
package exec

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"traffic-decision-engine/internal/bandit"
	"traffic-decision-engine/internal/cache"
	"traffic-decision-engine/internal/classify"
	"traffic-decision-engine/internal/observability"
	"traffic-decision-engine/internal/rules"
	"traffic-decision-engine/internal/stats"
)

// Outcome is the terminal state for one request.
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeBlock
	OutcomeRedirect
)

// Decision is what the HTTP layer acts on.
type Decision struct {
	Outcome    Outcome
	URL        string // redirect target, interpolated
	StatusCode int    // 301 or 302 for redirects
}

type Executor struct {
	Cache  *cache.RuleCache
	Bandit bandit.Policy
	Stats  *stats.Aggregator
}

func New(c *cache.RuleCache, b bandit.Policy, s *stats.Aggregator) *Executor {
	return &Executor{Cache: c, Bandit: b, Stats: s}
}

// Decide runs the matcher against the current snapshot and applies the
// matched action, the bot shield, or the domain default, in that order.
func (e *Executor) Decide(ctx classify.Context) Decision {
	list, cfg, ok := e.Cache.Get(ctx.Host)
	if !ok || !cfg.Enabled {
		// no snapshot yet, or engine off for this domain: serve untouched
		return Decision{Outcome: OutcomePass}
	}

	if rule := rules.Match(ctx, list); rule != nil {
		return e.applyRule(ctx, rule)
	}

	if cfg.ShieldEnabled && ctx.Bot {
		d := e.defaultDecision(ctx, cfg.BotAction, cfg.BotRedirectURL)
		e.recordShield(ctx, 0, actionName(d))
		return d
	}

	d := e.defaultDecision(ctx, cfg.DefaultAction, cfg.DefaultURL)
	e.recordShield(ctx, 0, actionName(d))
	return d
}

func (e *Executor) applyRule(ctx classify.Context, rule *rules.CompiledRule) Decision {
	switch rule.Action {
	case rules.ActionBlock:
		e.recordShield(ctx, rule.ID, "block")
		return Decision{Outcome: OutcomeBlock}

	case rules.ActionRedirect:
		e.recordLink(ctx, rule.ID, "")
		return Decision{
			Outcome:    OutcomeRedirect,
			URL:        rules.Interpolate(rule.ActionURL, ctx),
			StatusCode: statusCode(rule.StatusCode),
		}

	case rules.ActionWeightedRedirect:
		if len(rule.Variants) == 0 {
			log.Warn().Int64("rule", rule.ID).Msg("weighted_redirect rule has no variants")
			e.recordShield(ctx, rule.ID, "pass")
			return Decision{Outcome: OutcomePass}
		}
		v := rule.Variants[e.Bandit.Select(rule.Variants)]
		observability.BanditSelections.WithLabelValues(e.Bandit.Name()).Inc()
		e.recordLink(ctx, rule.ID, v.URL)
		return Decision{
			Outcome:    OutcomeRedirect,
			URL:        rules.Interpolate(v.URL, ctx),
			StatusCode: statusCode(rule.StatusCode),
		}

	default: // pass
		e.recordShield(ctx, rule.ID, "pass")
		return Decision{Outcome: OutcomePass}
	}
}

func (e *Executor) defaultDecision(ctx classify.Context, action, url string) Decision {
	switch action {
	case "block":
		return Decision{Outcome: OutcomeBlock}
	case "redirect":
		if url == "" {
			return Decision{Outcome: OutcomePass}
		}
		return Decision{Outcome: OutcomeRedirect, URL: rules.Interpolate(url, ctx), StatusCode: http.StatusFound}
	default:
		return Decision{Outcome: OutcomePass}
	}
}

func (e *Executor) recordShield(ctx classify.Context, ruleID int64, action string) {
	observability.Decisions.WithLabelValues(action).Inc()
	e.Stats.Record(stats.Event{
		Tier:   stats.TierShield,
		Domain: ctx.Host,
		RuleID: ruleID,
		Action: action,
	})
}

func (e *Executor) recordLink(ctx classify.Context, ruleID int64, variant string) {
	observability.Decisions.WithLabelValues("redirect").Inc()
	e.Stats.Record(stats.Event{
		Tier:    stats.TierLink,
		Domain:  ctx.Host,
		RuleID:  ruleID,
		Action:  "redirect",
		Country: ctx.Country,
		Device:  ctx.Device,
		Variant: variant,
	})
}

func actionName(d Decision) string {
	switch d.Outcome {
	case OutcomeBlock:
		return "block"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "pass"
	}
}

func statusCode(code int) int {
	if code == http.StatusMovedPermanently {
		return code
	}
	return http.StatusFound
}
