package rules

import (
	"strings"

	"traffic-decision-engine/internal/classify"
)

// Interpolate substitutes the fixed placeholder set into a URL template:
// {country} {device} {os} {browser} {path} {host}. Unknown {...} tokens are
// stripped rather than passed through, so a stale template cannot leak
// literal braces into a Location header.
func Interpolate(tmpl string, ctx classify.Context) string {
	if !strings.ContainsRune(tmpl, '{') {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl) + 16)
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			break
		}
		close := strings.IndexByte(tmpl[open:], '}')
		if close < 0 {
			b.WriteString(tmpl)
			break
		}
		close += open
		b.WriteString(tmpl[:open])
		b.WriteString(placeholder(tmpl[open+1:close], ctx))
		tmpl = tmpl[close+1:]
	}
	return b.String()
}

func placeholder(name string, ctx classify.Context) string {
	switch strings.ToLower(name) {
	case "country":
		return ctx.Country
	case "device":
		return ctx.Device
	case "os":
		return ctx.OS
	case "browser":
		return ctx.Browser
	case "path":
		return ctx.Path
	case "host":
		return ctx.Host
	default:
		return ""
	}
}
