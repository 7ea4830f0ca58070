package app

import (
	"net/url"
	"strings"

	"github.com/lib/pq"
)

// NormalizeDBURL sets application_name on the connection string unless one
// is already present, so sessions are attributable in pg_stat_activity.
// Both URL and key=value forms are accepted.
func NormalizeDBURL(raw, applicationName string) string {
	raw = strings.TrimSpace(raw)
	if applicationName == "" || raw == "" {
		return raw
	}
	if _, ok := dsnParams(raw)["application_name"]; ok {
		return raw
	}

	if isURLDSN(raw) {
		u, err := url.Parse(raw)
		if err != nil {
			return raw
		}
		q := u.Query()
		q.Set("application_name", applicationName)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return raw + " application_name=" + quoteDSNValue(applicationName)
}

func dbNameFromURL(raw string) string {
	return dsnParams(raw)["dbname"]
}

func isURLDSN(raw string) bool {
	return strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://")
}

// dsnParams flattens either DSN form into key/value pairs. URL DSNs go
// through pq.ParseURL, which yields the key=value form.
func dsnParams(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if isURLDSN(raw) {
		converted, err := pq.ParseURL(raw)
		if err != nil {
			return nil
		}
		raw = converted
	}

	params := map[string]string{}
	for _, field := range strings.Fields(raw) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		if value = strings.Trim(value, `'"`); value != "" {
			params[key] = value
		}
	}
	return params
}

func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}
