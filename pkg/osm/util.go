package osm

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the public OSM API host
	DefaultBaseURL = "https://www.openstreetmap.org"

	// APIVersionPath is the OSM API 0.6 prefix
	APIVersionPath = "/api/0.6"
)

// NodePath returns the canonical API 0.6 path of a node resource
func NodePath(nodeID int64) string {
	return fmt.Sprintf("%s/node/%d", APIVersionPath, nodeID)
}

// hostFromURL extracts the host from a URL string
func hostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}

// normalizeBaseURL trims trailing slashes and falls back to DefaultBaseURL
func normalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return DefaultBaseURL
	}
	return base
}
