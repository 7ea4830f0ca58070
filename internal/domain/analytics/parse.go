package analytics

import (
	"net"
	"net/url"
	"strings"
)

// ParseUserAgent classifies browser, OS and device by substring matching.
// Order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari".
func ParseUserAgent(ua string) Client {
	lower := strings.ToLower(ua)
	c := Client{Browser: "Unknown", OS: "Unknown", Device: "desktop"}

	switch {
	case strings.Contains(lower, "edg/"):
		c.Browser = "Edge"
	case strings.Contains(lower, "opr/") || strings.Contains(lower, "opera"):
		c.Browser = "Opera"
	case strings.Contains(lower, "firefox/"):
		c.Browser = "Firefox"
	case strings.Contains(lower, "chrome/"):
		c.Browser = "Chrome"
	case strings.Contains(lower, "safari/"):
		c.Browser = "Safari"
	}

	switch {
	case strings.Contains(lower, "windows"):
		c.OS = "Windows"
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad"):
		c.OS = "iOS"
	case strings.Contains(lower, "mac os"):
		c.OS = "macOS"
	case strings.Contains(lower, "android"):
		c.OS = "Android"
	case strings.Contains(lower, "linux"):
		c.OS = "Linux"
	}

	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		c.Device = "tablet"
	case strings.Contains(lower, "mobi") || strings.Contains(lower, "iphone") || strings.Contains(lower, "android"):
		c.Device = "mobile"
	}
	return c
}

// Short domains (exact) must match the whole host or a subdomain of it.
var referrerSources = []struct {
	needle string
	source string
	exact  bool
}{
	{needle: "google.", source: "google"},
	{needle: "bing.", source: "bing"},
	{needle: "yahoo.", source: "yahoo"},
	{needle: "duckduckgo.", source: "duckduckgo"},
	{needle: "facebook.", source: "facebook"},
	{needle: "fb.com", source: "facebook", exact: true},
	{needle: "twitter.", source: "twitter"},
	{needle: "t.co", source: "twitter", exact: true},
	{needle: "x.com", source: "twitter", exact: true},
	{needle: "linkedin.", source: "linkedin"},
	{needle: "instagram.", source: "instagram"},
	{needle: "reddit.", source: "reddit"},
}

// ParseReferrer maps a referrer URL to a traffic source. ownHost marks internal navigation.
func ParseReferrer(referrer, ownHost string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return "direct"
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Host == "" {
		return "direct"
	}
	host := strings.ToLower(u.Hostname())
	if ownHost != "" && (host == strings.ToLower(ownHost) || strings.HasSuffix(host, "."+strings.ToLower(ownHost))) {
		return "internal"
	}
	if strings.Contains(host, "proofofputt") {
		return "internal"
	}
	for _, rs := range referrerSources {
		if rs.exact {
			if host == rs.needle || strings.HasSuffix(host, "."+rs.needle) {
				return rs.source
			}
			continue
		}
		if strings.Contains(host, rs.needle) {
			return rs.source
		}
	}
	return "referral"
}

// ParseUTM reads utm_* query parameters from a page URL.
func ParseUTM(pageURL string) (UTM, string) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return UTM{}, ""
	}
	q := u.Query()
	return UTM{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
		Term:     q.Get("utm_term"),
		Content:  q.Get("utm_content"),
	}, u.Path
}

// ClientIP returns the first address in X-Forwarded-For, falling back to remoteAddr.
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
