package document

import (
	"net/url"
	"strings"
)

// IsDataURI reports whether src is an inline data URI.
func IsDataURI(src string) bool {
	return strings.HasPrefix(src, "data:")
}

// ResolveImageSource returns the location an image layer's content should be
// loaded from. Data URIs and absolute URLs are returned as is; anything else
// is treated as a path relative to baseURL.
func ResolveImageSource(src, baseURL string) string {
	if src == "" || IsDataURI(src) || baseURL == "" {
		return src
	}
	if u, err := url.Parse(src); err == nil && u.IsAbs() {
		return src
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return src
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	ref, err := url.Parse(strings.TrimPrefix(src, "/"))
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
