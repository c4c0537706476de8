package utils

import (
	"net/url"
	"strings"
)

// JoinImageURL appends an upstream image path to the image base URL. Blank
// paths yield "". Raw spaces in the path are escaped so the result is usable
// as-is by clients.
func JoinImageURL(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	joined := strings.TrimRight(base, "/") + path

	parsed, err := url.Parse(joined)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.ReplaceAll(joined, " ", "%20")
	}
	return parsed.Scheme + "://" + parsed.Host + parsed.EscapedPath()
}
