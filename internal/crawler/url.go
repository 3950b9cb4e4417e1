package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL to key the visited set: lowercased scheme
// and host, query and fragment dropped, trailing slash stripped. Two links to
// the same page with different tracking parameters normalize identically.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.ToLower(strings.TrimSuffix(u.Path, "/"))
	return u.String(), nil
}

// ResolveLink resolves href against the page URL and rejects non-HTTP
// schemes and cross-host links.
func ResolveLink(pageURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(resolved.Host, base.Host) {
		return "", false
	}
	return resolved.String(), true
}

// pathSegments counts non-empty path segments, used for the depth bonus.
func pathSegments(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	count := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			count++
		}
	}
	return count
}
