package rules

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// CompiledRule is the matcher-ready form of a Rule: set predicates become
// lookup maps, regex predicates are compiled once. Built at sync-ingest
// time, never mutated afterwards.
type CompiledRule struct {
	Rule

	geoInclude   map[string]struct{}
	geoExclude   map[string]struct{}
	utmSources   map[string]struct{}
	utmCampaigns map[string]struct{}
	pathRe       *regexp.Regexp
	referrerRe   *regexp.Regexp

	// A malformed regex marks the rule unmatchable: fail closed rather
	// than crash the matcher or silently widen the predicate.
	broken bool
}

// Compile normalizes and compiles one rule. Geo codes are uppercased, UTM
// values lowercased, matching what the classifier produces.
func Compile(r Rule) CompiledRule {
	cr := CompiledRule{Rule: r}
	cr.Conditions.Device = strings.ToLower(r.Conditions.Device)
	cr.Conditions.OS = strings.ToLower(r.Conditions.OS)
	cr.Conditions.Browser = strings.ToLower(r.Conditions.Browser)

	cr.geoInclude = upperSet(r.Conditions.GeoInclude)
	cr.geoExclude = upperSet(r.Conditions.GeoExclude)
	cr.utmSources = lowerSet(r.Conditions.UTMSources)
	cr.utmCampaigns = lowerSet(r.Conditions.UTMCampaigns)

	if p := r.Conditions.PathPattern; p != "" {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Warn().Int64("rule", r.ID).Str("pattern", p).Err(err).Msg("bad path pattern; rule disabled")
			cr.broken = true
		}
		cr.pathRe = re
	}
	if p := r.Conditions.ReferrerPattern; p != "" {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Warn().Int64("rule", r.ID).Str("pattern", p).Err(err).Msg("bad referrer pattern; rule disabled")
			cr.broken = true
		}
		cr.referrerRe = re
	}
	return cr
}

// CompileAll compiles rules grouped by domain, each group sorted by
// descending priority (ties broken by id for a stable total order).
func CompileAll(rs []Rule) map[string][]CompiledRule {
	byDomain := make(map[string][]CompiledRule)
	for _, r := range rs {
		d := strings.ToLower(r.Domain)
		byDomain[d] = append(byDomain[d], Compile(r))
	}
	for _, list := range byDomain {
		sortByPriority(list)
	}
	return byDomain
}

func sortByPriority(list []CompiledRule) {
	// insertion sort; per-domain rule lists are tens not thousands
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && less(list[j], list[j-1]); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

func less(a, b CompiledRule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ID < b.ID
}

func upperSet(vals []string) map[string]struct{} {
	if len(vals) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
	}
	return m
}

func lowerSet(vals []string) map[string]struct{} {
	if len(vals) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return m
}
