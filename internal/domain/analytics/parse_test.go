package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ua   string
		want Client
	}{
		{
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			want: Client{Browser: "Edge", OS: "Windows", Device: "desktop"},
		},
		{
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1",
			want: Client{Browser: "Safari", OS: "iOS", Device: "mobile"},
		},
		{
			ua:   "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36",
			want: Client{Browser: "Chrome", OS: "Android", Device: "mobile"},
		},
		{
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0; rv:121.0) Gecko/20100101 Firefox/121.0",
			want: Client{Browser: "Firefox", OS: "macOS", Device: "desktop"},
		},
		{ua: "", want: Client{Browser: "Unknown", OS: "Unknown", Device: "desktop"}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ParseUserAgent(tt.ua), tt.ua)
	}
}

func TestParseReferrer(t *testing.T) {
	t.Parallel()

	require.Equal(t, "direct", ParseReferrer("", "app.proofofputt.com"))
	require.Equal(t, "google", ParseReferrer("https://www.google.com/search?q=putting", ""))
	require.Equal(t, "twitter", ParseReferrer("https://t.co/abc", ""))
	require.Equal(t, "internal", ParseReferrer("https://app.proofofputt.com/duels", "app.proofofputt.com"))
	require.Equal(t, "duckduckgo", ParseReferrer("https://duckduckgo.com/", ""))
	require.Equal(t, "reddit", ParseReferrer("https://www.reddit.com/r/golf", ""))
	require.Equal(t, "referral", ParseReferrer("https://golfblog.example/post", ""))
}

func TestParseUTM(t *testing.T) {
	t.Parallel()

	utm, path := ParseUTM("https://app.proofofputt.com/pricing?utm_source=newsletter&utm_medium=email&utm_campaign=spring")
	require.Equal(t, "/pricing", path)
	require.Equal(t, UTM{Source: "newsletter", Medium: "email", Campaign: "spring"}, utm)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	require.Equal(t, "203.0.113.9", ClientIP("203.0.113.9, 10.0.0.1", "10.0.0.2:5000"))
	require.Equal(t, "10.0.0.2", ClientIP("", "10.0.0.2:5000"))
	require.Equal(t, "::1", ClientIP("", "[::1]:8080"))
}

func TestParseDashboardParams(t *testing.T) {
	t.Parallel()

	m, err := ParseDashboardMetric("")
	require.NoError(t, err)
	require.Equal(t, MetricOverview, m)
	_, err = ParseDashboardMetric("revenue")
	require.Error(t, err)

	g, err := ParseGroupBy("week")
	require.NoError(t, err)
	require.Equal(t, GroupByWeek, g)
	_, err = ParseGroupBy("hour")
	require.Error(t, err)
}
