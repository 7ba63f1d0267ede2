// Package canonical normalizes article URLs into stable uniqueness keys.
// Two URLs that canonicalize to the same string refer to the same article,
// regardless of which feed they arrived from.
package canonical

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingPrefixes matches query parameters injected by campaign tracking.
// Any parameter whose lowercased key starts with one of these is dropped.
var trackingPrefixes = []string{
	"utm_",
	"fbclid",
	"gclid",
	"msclkid",
	"mc_cid",
	"mc_eid",
	"icid",
	"cmpid",
	"ref_src",
}

// Canonicalize normalizes a raw URL into its canonical form:
// lowercased host, default ports stripped, tracking parameters removed,
// remaining query parameters sorted by key, trailing slash stripped
// (except the root path), and fragment dropped.
//
// It is a pure function and idempotent: Canonicalize(Canonicalize(u))
// equals Canonicalize(u).
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host

	u.RawQuery = normalizeQuery(u.Query())
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}

	return u.String(), nil
}

// normalizeQuery drops tracking parameters and re-encodes the rest with
// keys in lexicographic order so parameter order never affects the key.
func normalizeQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if isTracking(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func isTracking(key string) bool {
	k := strings.ToLower(key)
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
