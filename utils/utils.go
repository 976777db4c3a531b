package utils

import (
	"net/url"
	"strings"
)

// IsValidURL reports whether rawURL is an absolute http(s) URL that points at
// page content rather than an asset.
func IsValidURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	// Must have scheme and host
	if u.Scheme == "" || u.Host == "" {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	excludeSuffixes := []string{
		".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
		".pdf", ".zip", ".exe", ".dmg", ".webp", ".mp4",
	}

	lowerPath := strings.ToLower(u.Path)
	for _, suffix := range excludeSuffixes {
		if strings.HasSuffix(lowerPath, suffix) {
			return false
		}
	}

	return true
}

// NormalizeURL drops the fragment and gives an empty path the root slash.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// NormalizePath reduces a log URL or path to the form used to correlate
// traffic with stored pages: no scheme or host, no query or fragment, no
// trailing slash, always a leading slash. The root stays "/".
func NormalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}

	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	path = strings.TrimRight(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
