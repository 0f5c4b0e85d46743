package proxy

import (
	neturl "net/url"
	"strings"
)

// urlDecode converts percent-encoded sequences like %2f into their byte values.
// Unlike url.QueryUnescape it leaves '+' alone and never fails.
func urlDecode(url string) string {
	b := make([]byte, 0, len(url))
	for i := 0; i < len(url); i++ {
		c := url[i]
		if c == '%' && i+2 < len(url) && isHex(url[i+1]) && isHex(url[i+2]) {
			b = append(b, fromHex(url[i+1])<<4|fromHex(url[i+2]))
			i += 2
		} else {
			b = append(b, c)
		}
	}
	return string(b)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

// normalizeTarget turns user input into an absolute http(s) URL. Input that
// still looks percent-encoded is decoded first.
func normalizeTarget(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if lower := strings.ToLower(s); strings.HasPrefix(lower, "http%3a") || strings.HasPrefix(lower, "https%3a") {
		s = urlDecode(s)
	}
	lower := strings.ToLower(s)
	if !(strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")) {
		s = "http://" + strings.TrimLeft(s, "/")
	}
	return s
}

// resolveURL resolves ref against base the way a browser resolves a
// relative XHR URL. Unparsable input is returned unchanged.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return base
	}
	r, err := neturl.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := neturl.Parse(base)
	if err != nil || b.Scheme == "" {
		return ref
	}
	return b.ResolveReference(r).String()
}
