package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveLink resolves href against base and returns an absolute URL.
// Fragments are dropped so in-page anchors to the same posting collapse, and
// anything but http(s) (mailto:, tel:, javascript:) is rejected.
func ResolveLink(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty href")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", resolved.Scheme)
	}
	if resolved.Host == "" {
		return "", fmt.Errorf("resolved url %q has no host", resolved.String())
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), nil
}
