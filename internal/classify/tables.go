package classify

// Ordered heuristic tables: first matching signature wins. Order matters —
// e.g. "iphone" must be checked before generic "mac os", and Edge before
// Chrome, because modern UA strings contain both tokens.

type signature struct {
	Token string // lowercase substring to look for
	Name  string
}

var osTable = []signature{
	{"android", "android"},
	{"iphone", "ios"},
	{"ipad", "ios"},
	{"windows phone", "windows"},
	{"windows", "windows"},
	{"mac os", "macos"},
	{"macintosh", "macos"},
	{"cros", "chromeos"},
	{"linux", "linux"},
}

var browserTable = []signature{
	{"edg/", "edge"},
	{"edge/", "edge"},
	{"opr/", "opera"},
	{"opera", "opera"},
	{"yabrowser", "yandex"},
	{"samsungbrowser", "samsung"},
	{"firefox", "firefox"},
	{"chrome", "chrome"},
	{"crios", "chrome"},
	{"safari", "safari"},
	{"msie", "ie"},
	{"trident", "ie"},
}

var mobileTokens = []string{
	"mobile", "android", "iphone", "ipad", "ipod", "windows phone",
	"blackberry", "opera mini", "opera mobi",
}

// crawlerTokens is the fixed crawler-signature list; matched
// case-insensitively as plain substrings.
var crawlerTokens = []string{
	"googlebot", "bingbot", "yandexbot", "baiduspider", "duckduckbot",
	"slurp", "sogou", "applebot", "facebookexternalhit", "facebot",
	"twitterbot", "linkedinbot", "telegrambot", "whatsapp", "pinterestbot",
	"semrushbot", "ahrefsbot", "mj12bot", "dotbot", "petalbot",
	"bytespider", "gptbot", "ccbot", "amazonbot",
	"bot", "crawler", "spider", "crawling",
	"curl/", "wget/", "python-requests", "go-http-client", "okhttp",
	"headlesschrome", "phantomjs", "lighthouse", "pingdom", "uptimerobot",
}
