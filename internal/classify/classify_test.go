package classify

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaChromeWin  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	uaSafariIOS  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaEdgeMac    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0"
	uaGooglebot  = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	uaFirefoxAnd = "Mozilla/5.0 (Android 14; Mobile; rv:121.0) Gecko/121.0 Firefox/121.0"
)

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		country     string
		wantCountry string
		wantDevice  string
		wantOS      string
		wantBrowser string
		wantBot     bool
	}{
		{"chrome on windows", uaChromeWin, "US", "US", DeviceDesktop, "windows", "chrome", false},
		{"safari on iphone", uaSafariIOS, "de", "DE", DeviceMobile, "ios", "safari", false},
		{"edge before chrome", uaEdgeMac, "GB", "GB", DeviceDesktop, "macos", "edge", false},
		{"firefox on android", uaFirefoxAnd, "BR", "BR", DeviceMobile, "android", "firefox", false},
		{"googlebot", uaGooglebot, "US", "US", DeviceDesktop, Unknown, Unknown, true},
		{"empty ua is bot", "", "US", "US", DeviceDesktop, Unknown, Unknown, true},
		{"missing country", uaChromeWin, "", UnknownCountry, DeviceDesktop, "windows", "chrome", false},
		{"tor placeholder country", uaChromeWin, "T1", UnknownCountry, DeviceDesktop, "windows", "chrome", false},
		{"garbage country", uaChromeWin, "USA", UnknownCountry, DeviceDesktop, "windows", "chrome", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://example.com/foo?x=1", nil)
			r.Header.Set("User-Agent", tt.ua)
			if tt.country != "" {
				r.Header.Set("CF-IPCountry", tt.country)
			}

			ctx := Classify(r, DefaultOptions())

			assert.Equal(t, tt.wantCountry, ctx.Country)
			assert.Equal(t, tt.wantDevice, ctx.Device)
			assert.Equal(t, tt.wantOS, ctx.OS)
			assert.Equal(t, tt.wantBrowser, ctx.Browser)
			assert.Equal(t, tt.wantBot, ctx.Bot)
		})
	}
}

func TestClassify_RequestFields(t *testing.T) {
	r := httptest.NewRequest("GET", "http://Example.COM:8443/foo/bar?utm_source=ads&x=1", nil)
	r.Header.Set("User-Agent", uaChromeWin)
	r.Header.Set("Referer", "https://ref.example.org/")
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	ctx := Classify(r, DefaultOptions())

	assert.Equal(t, "example.com", ctx.Host)
	assert.Equal(t, "/foo/bar", ctx.Path)
	assert.Equal(t, "ads", ctx.Query.Get("utm_source"))
	assert.Equal(t, "https://ref.example.org/", ctx.Referrer)
	assert.Equal(t, "203.0.113.7", ctx.ClientIP)
}

func TestClassify_NeverFails(t *testing.T) {
	// a pathological request still yields a usable context
	r := httptest.NewRequest("GET", "/", nil)
	r.Host = ""
	ctx := Classify(r, DefaultOptions())

	assert.Equal(t, UnknownCountry, ctx.Country)
	assert.Equal(t, Unknown, ctx.OS)
	assert.Equal(t, Unknown, ctx.Browser)
	assert.True(t, ctx.Bot) // empty UA
}
