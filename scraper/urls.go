package scraper

import (
	"net/url"
	"strings"
)

// NormalizeURL converts a scraped link into an absolute URL. A link
// that already carries a scheme is returned unchanged; otherwise the
// origin (scheme://host) of the source's base URL is prepended, with
// exactly one slash between origin and path. A malformed base URL makes
// normalization fall back to returning the raw link unchanged — the
// caller logs and moves on.
func NormalizeURL(raw, base string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}

	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return raw
	}
	origin := parsed.Scheme + "://" + parsed.Host

	if strings.HasPrefix(raw, "/") {
		return origin + raw
	}
	return origin + "/" + raw
}
