// Package urlnorm canonicalizes URLs into the stable form used as the
// dedup and cache key throughout the indexing pipeline and search
// orchestrator. The rules are adapted from the link-resolution logic in
// a typical scraper's URL handling (host/scheme, fragment stripping) and
// extended with an explicit tracking-parameter strip set.
package urlnorm

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams is the explicit set of query keys removed when stripping
// is enabled. Matching is case-insensitive.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"msclkid":      {},
	"mc_cid":       {},
	"mc_eid":       {},
	"ref":          {},
	"_hsenc":       {},
	"_hsmi":        {},
	"igshid":       {},
}

// Normalize returns the canonical form of rawURL: lowercased host, fragment
// stripped, scheme/port/path/credentials preserved, and (when stripTracking
// is true) tracking query parameters removed. On parse failure the
// original input is returned unchanged.
func Normalize(rawURL string, stripTracking bool) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Host == "" {
		// Not an absolute URL we can meaningfully canonicalize.
		return rawURL
	}

	u.Host = lowerHost(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if stripTracking && u.RawQuery != "" {
		u.RawQuery = stripTrackingParams(u.RawQuery)
	}

	return u.String()
}

// Host returns rawURL's lowercased hostname, with any port stripped, for
// use as a host-level search filter. Returns "" on parse failure or if
// rawURL has no host component.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func lowerHost(host string) string {
	// Preserve a trailing :port by splitting on the last colon after any
	// closing bracket (for IPv6 literals), otherwise lowercase as-is.
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		return strings.ToLower(host[:i]) + host[i:]
	}
	return strings.ToLower(host)
}

// stripTrackingParams removes tracking keys while preserving the relative
// order of the remaining query pairs (url.Values does not preserve order,
// so we operate on the raw pair list directly).
func stripTrackingParams(rawQuery string) string {
	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if _, skip := trackingParams[strings.ToLower(key)]; skip {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// SortedQueryKeys returns the keys of values in sorted order, so query
// composition can be compared without depending on map iteration order.
func SortedQueryKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
