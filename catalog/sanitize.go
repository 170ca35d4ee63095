package catalog

import (
	"net/url"
	"strings"
)

// SafeURL returns raw when it is relative or uses http/https, otherwise "".
// Filenames are kept verbatim; escaping is left to the page.
func SafeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return raw
	default:
		return ""
	}
}
