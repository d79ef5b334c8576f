package rules

import (
	"strings"

	"traffic-decision-engine/internal/classify"
)

// Match evaluates rules in list order (already priority-descending) and
// returns the first enabled rule whose configured predicates all hold, or
// nil. A rule with no predicates matches unconditionally.
func Match(ctx classify.Context, list []CompiledRule) *CompiledRule {
	for i := range list {
		r := &list[i]
		if !r.Active || r.broken {
			continue
		}
		if r.matches(ctx) {
			return r
		}
	}
	return nil
}

func (r *CompiledRule) matches(ctx classify.Context) bool {
	c := r.Conditions

	if len(r.geoInclude) > 0 {
		if _, ok := r.geoInclude[ctx.Country]; !ok {
			return false
		}
	}
	if len(r.geoExclude) > 0 {
		if _, ok := r.geoExclude[ctx.Country]; ok {
			return false
		}
	}
	if c.Device != "" && c.Device != ctx.Device {
		return false
	}
	if c.OS != "" && c.OS != ctx.OS {
		return false
	}
	if c.Browser != "" && c.Browser != ctx.Browser {
		return false
	}
	if c.Bot != nil && *c.Bot != ctx.Bot {
		return false
	}
	if len(r.utmSources) > 0 {
		if _, ok := r.utmSources[strings.ToLower(ctx.Query.Get("utm_source"))]; !ok {
			return false
		}
	}
	if len(r.utmCampaigns) > 0 {
		if _, ok := r.utmCampaigns[strings.ToLower(ctx.Query.Get("utm_campaign"))]; !ok {
			return false
		}
	}
	if len(c.QueryParams) > 0 && !anyParamPresent(c.QueryParams, ctx) {
		return false
	}
	if r.pathRe != nil && !r.pathRe.MatchString(ctx.Path) {
		return false
	}
	if r.referrerRe != nil && !r.referrerRe.MatchString(ctx.Referrer) {
		return false
	}
	return true
}

func anyParamPresent(params []string, ctx classify.Context) bool {
	for _, p := range params {
		if ctx.Query.Has(p) {
			return true
		}
	}
	return false
}
