// Package classify turns raw requests into typed decision contexts.
// Classification never fails: unknown inputs degrade to sentinel values
// ("XX" for country, "unknown" for OS/browser) so the decision path always
// has a context to work with.
package classify

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"

	Unknown        = "unknown"
	UnknownCountry = "XX"
)

// Context is the immutable per-request decision context.
type Context struct {
	Country  string // ISO 3166-1 alpha-2, uppercase, "XX" if unknown
	Region   string
	Device   string // "mobile" | "desktop"
	OS       string
	Browser  string
	Bot      bool
	Host     string
	Path     string
	Query    url.Values
	Referrer string
	ClientIP string
}

// Options selects which upstream headers carry the geo hint.
type Options struct {
	CountryHeader string
	RegionHeader  string
}

func DefaultOptions() Options {
	return Options{CountryHeader: "CF-IPCountry", RegionHeader: "CF-Region"}
}

// Classify builds a decision context from an incoming request. Pure
// function over the request: no I/O, no failure mode.
func Classify(r *http.Request, opts Options) Context {
	ua := strings.ToLower(r.Header.Get("User-Agent"))

	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	return Context{
		Country:  normalizeCountry(r.Header.Get(opts.CountryHeader)),
		Region:   r.Header.Get(opts.RegionHeader),
		Device:   deviceClass(ua),
		OS:       lookup(osTable, ua),
		Browser:  lookup(browserTable, ua),
		Bot:      IsBot(ua),
		Host:     strings.ToLower(host),
		Path:     r.URL.Path,
		Query:    r.URL.Query(),
		Referrer: r.Referer(),
		ClientIP: clientIP(r),
	}
}

func normalizeCountry(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if len(c) != 2 || c == "XX" || c == "T1" {
		return UnknownCountry
	}
	return c
}

func deviceClass(ua string) string {
	// "Mobile" token absent on iPads in desktop-site mode, hence the
	// broader token list.
	for _, tok := range mobileTokens {
		if strings.Contains(ua, tok) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}

func lookup(table []signature, ua string) string {
	for _, s := range table {
		if strings.Contains(ua, s.Token) {
			return s.Name
		}
	}
	return Unknown
}

// IsBot reports whether the (lowercased) user agent matches the crawler
// signature list. An empty user agent is treated as a bot.
func IsBot(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	for _, tok := range crawlerTokens {
		if strings.Contains(ua, tok) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
