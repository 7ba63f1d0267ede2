package feed

import (
	"net/url"
	"strings"
)

// Second-level suffixes take precedence over the bare TLD: they carry
// country information even under generic endings.
var countrySuffixes = map[string]string{
	".com.hk": "hk",
	".org.hk": "hk",
	".gov.hk": "hk",
	".co.uk":  "gb",
	".com.au": "au",
	".com.sg": "sg",
	".co.jp":  "jp",
	".com.tw": "tw",
	".com.cn": "cn",
}

var countryTLDs = map[string]string{
	"hk": "hk", "uk": "gb", "us": "us", "cn": "cn", "jp": "jp",
	"kr": "kr", "sg": "sg", "tw": "tw", "my": "my", "th": "th",
	"vn": "vn", "ph": "ph", "id": "id", "au": "au", "ca": "ca",
	"de": "de", "fr": "fr", "it": "it", "es": "es", "nz": "nz",
	"il": "il", "sa": "sa",
}

// InferCountry guesses an ISO country code from a URL's host suffix.
// Returns "" when nothing can be inferred (e.g. .com/.org hosts).
func InferCountry(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}

	for suffix, code := range countrySuffixes {
		if strings.HasSuffix(host, suffix) {
			return code
		}
	}

	if i := strings.LastIndex(host, "."); i >= 0 {
		return countryTLDs[host[i+1:]]
	}
	return ""
}

// NormalizeSourceName collapses whitespace and lowercases an outlet name
// so the same outlet compares equal across feeds.
func NormalizeSourceName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
