package rules

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"traffic-decision-engine/internal/classify"
)

func usContext() classify.Context {
	return classify.Context{
		Country: "US",
		Device:  classify.DeviceDesktop,
		OS:      "windows",
		Browser: "chrome",
		Host:    "example.com",
		Path:    "/foo",
		Query:   url.Values{},
	}
}

func boolPtr(b bool) *bool { return &b }

func TestMatch_Predicates(t *testing.T) {
	tests := []struct {
		name  string
		conds Conditions
		mut   func(*classify.Context)
		want  bool
	}{
		{"empty conditions match everything", Conditions{}, nil, true},
		{"geo include hit", Conditions{GeoInclude: []string{"us", "CA"}}, nil, true},
		{"geo include miss", Conditions{GeoInclude: []string{"DE"}}, nil, false},
		{"geo exclude hit", Conditions{GeoExclude: []string{"US"}}, nil, false},
		{"geo exclude miss", Conditions{GeoExclude: []string{"DE"}}, nil, true},
		{"device match", Conditions{Device: "Desktop"}, nil, true},
		{"device mismatch", Conditions{Device: "mobile"}, nil, false},
		{"os match", Conditions{OS: "windows"}, nil, true},
		{"browser mismatch", Conditions{Browser: "safari"}, nil, false},
		{"bot required but human", Conditions{Bot: boolPtr(true)}, nil, false},
		{"human required and human", Conditions{Bot: boolPtr(false)}, nil, true},
		{
			"utm source allow-list",
			Conditions{UTMSources: []string{"ads"}},
			func(c *classify.Context) { c.Query.Set("utm_source", "Ads") },
			true,
		},
		{"utm source missing", Conditions{UTMSources: []string{"ads"}}, nil, false},
		{
			"any query param present",
			Conditions{QueryParams: []string{"gclid", "fbclid"}},
			func(c *classify.Context) { c.Query.Set("fbclid", "abc") },
			true,
		},
		{"no query param present", Conditions{QueryParams: []string{"gclid"}}, nil, false},
		{"path regex match", Conditions{PathPattern: `^/foo`}, nil, true},
		{"path regex miss", Conditions{PathPattern: `^/bar`}, nil, false},
		{
			"referrer regex",
			Conditions{ReferrerPattern: `ref\.example\.org`},
			func(c *classify.Context) { c.Referrer = "https://ref.example.org/x" },
			true,
		},
		{"malformed regex fails closed", Conditions{PathPattern: `([`}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := usContext()
			if tt.mut != nil {
				tt.mut(&ctx)
			}
			list := []CompiledRule{Compile(Rule{ID: 1, Domain: "example.com", Active: true, Conditions: tt.conds})}
			got := Match(ctx, list)
			if tt.want {
				assert.NotNil(t, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestMatch_PriorityOrderIsStable(t *testing.T) {
	rs := []Rule{
		{ID: 3, Domain: "example.com", Priority: 5, Active: true},
		{ID: 1, Domain: "example.com", Priority: 10, Active: true},
		{ID: 2, Domain: "example.com", Priority: 10, Active: true},
		{ID: 4, Domain: "example.com", Priority: 1, Active: true},
	}
	list := CompileAll(rs)["example.com"]

	// descending priority; id breaks ties for a stable total order
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(list))

	got := Match(usContext(), list)
	assert.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
}

func TestMatch_FirstFullMatchWins(t *testing.T) {
	rs := []Rule{
		{ID: 1, Domain: "example.com", Priority: 10, Active: true, Conditions: Conditions{GeoInclude: []string{"DE"}}},
		{ID: 2, Domain: "example.com", Priority: 5, Active: true, Conditions: Conditions{GeoInclude: []string{"US"}}},
		{ID: 3, Domain: "example.com", Priority: 1, Active: true},
	}
	list := CompileAll(rs)["example.com"]

	got := Match(usContext(), list)
	assert.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID) // highest-priority rule that fully matches
}

func TestMatch_SkipsInactive(t *testing.T) {
	rs := []Rule{
		{ID: 1, Domain: "example.com", Priority: 10, Active: false},
		{ID: 2, Domain: "example.com", Priority: 5, Active: true},
	}
	list := CompileAll(rs)["example.com"]

	got := Match(usContext(), list)
	assert.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)
}

func TestMatch_NoRules(t *testing.T) {
	assert.Nil(t, Match(usContext(), nil))
}

func ids(list []CompiledRule) []int64 {
	out := make([]int64, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func BenchmarkMatch(b *testing.B) {
	var rs []Rule
	for i := 0; i < 30; i++ {
		rs = append(rs, Rule{
			ID: int64(i + 1), Domain: "example.com", Priority: i, Active: true,
			Conditions: Conditions{GeoInclude: []string{"DE", "FR", "GB"}},
		})
	}
	list := CompileAll(rs)["example.com"]
	ctx := usContext()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Match(ctx, list)
	}
}
