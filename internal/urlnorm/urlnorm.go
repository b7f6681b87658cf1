// Package urlnorm provides the single URL normalization used by every duplicate check.
package urlnorm

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

const flags = purell.FlagsUsuallySafeGreedy |
	purell.FlagRemoveFragment |
	purell.FlagRemoveDuplicateSlashes |
	purell.FlagRemoveWWW |
	purell.FlagSortQuery

var trackingParams = []string{
	"fbclid",
	"gclid",
	"mc_eid",
	"msclkid",
	"ref_src",
	"utm_campaign",
	"utm_content",
	"utm_id",
	"utm_medium",
	"utm_source",
	"utm_term",
}

// Normalize returns the canonical form of raw: lowercase scheme and host, no "www.",
// no default port, no fragment, no trailing path slash, sorted query without tracking
// parameters. Unparseable input is returned trimmed.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	clean, err := purell.NormalizeURLString(raw, flags)
	if err != nil {
		return raw
	}

	u, err := url.Parse(clean)
	if err != nil || u.RawQuery == "" {
		return clean
	}
	params := u.Query()
	for _, p := range trackingParams {
		params.Del(p)
	}
	u.RawQuery = params.Encode()
	return u.String()
}

// Host returns the lowercase host of raw without a leading "www.", or "" when raw has no host.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Valid reports whether raw is an absolute http(s) URL with a host.
func Valid(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// MatchesDomain reports whether host equals one of domains or is a subdomain of one.
func MatchesDomain(host string, domains []string) bool {
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
