// Package rules holds the wire-level rule model shared by the edge and the
// central platform, the compiled form the matcher evaluates, and the URL
// template interpolation used by redirect actions.
package rules

// Rule actions.
const (
	ActionPass             = "pass"
	ActionBlock            = "block"
	ActionRedirect         = "redirect"
	ActionWeightedRedirect = "weighted_redirect"
)

// Rule is one routing rule as served by /sync. Within a domain, rules are
// evaluated strictly by descending priority; the first full match wins.
type Rule struct {
	ID         int64      `json:"id"`
	Domain     string     `json:"domain_name"`
	Priority   int        `json:"priority"`
	Conditions Conditions `json:"conditions"`
	Action     string     `json:"action"`
	ActionURL  string     `json:"action_url,omitempty"`
	StatusCode int        `json:"status_code,omitempty"` // 301 or 302, default 302
	Active     bool       `json:"active"`
	Variants   []Variant  `json:"variants,omitempty"`
}

// Conditions is a sum of optional predicates, AND-combined. A zero value
// matches every context.
type Conditions struct {
	GeoInclude      []string `json:"geo,omitempty"`
	GeoExclude      []string `json:"geo_exclude,omitempty"`
	Device          string   `json:"device,omitempty"` // "mobile" | "desktop"
	OS              string   `json:"os,omitempty"`
	Browser         string   `json:"browser,omitempty"`
	Bot             *bool    `json:"bot,omitempty"` // tri-state: nil = don't care
	UTMSources      []string `json:"utm_sources,omitempty"`
	UTMCampaigns    []string `json:"utm_campaigns,omitempty"`
	QueryParams     []string `json:"query_params,omitempty"` // any present
	PathPattern     string   `json:"path_pattern,omitempty"`
	ReferrerPattern string   `json:"referrer_pattern,omitempty"`
}

// Empty reports whether no predicate is configured.
func (c Conditions) Empty() bool {
	return len(c.GeoInclude) == 0 && len(c.GeoExclude) == 0 &&
		c.Device == "" && c.OS == "" && c.Browser == "" && c.Bot == nil &&
		len(c.UTMSources) == 0 && len(c.UTMCampaigns) == 0 &&
		len(c.QueryParams) == 0 && c.PathPattern == "" && c.ReferrerPattern == ""
}

// Variant is one candidate target under a weighted_redirect rule. Alpha and
// Beta are the Beta-distribution belief state updated by postbacks;
// Impressions and Conversions are raw diagnostics counters.
type Variant struct {
	URL         string  `json:"url"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	Impressions int64   `json:"impressions"`
	Conversions int64   `json:"conversions"`
}

// DomainConfig carries per-domain defaults applied when no rule matches.
type DomainConfig struct {
	Domain         string `json:"domain_name"`
	Enabled        bool   `json:"tds_enabled"`
	DefaultAction  string `json:"default_action"` // pass | block | redirect
	DefaultURL     string `json:"default_url,omitempty"`
	ShieldEnabled  bool   `json:"smartshield_enabled"`
	BotAction      string `json:"bot_action,omitempty"` // pass | block | redirect
	BotRedirectURL string `json:"bot_redirect_url,omitempty"`
}
