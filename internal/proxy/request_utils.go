package proxy

import (
	"net/http"
	"sort"
)

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func cloneHeader(h http.Header) http.Header {
	out := http.Header{}
	copyHeader(out, h)
	return out
}

// siteHeaders returns hdr with the site overrides applied, in key order so
// logs are stable.
func siteHeaders(hdr http.Header, site *SiteConfig) http.Header {
	out := cloneHeader(hdr)
	if site == nil {
		return out
	}
	for _, k := range sortedKeys(site.Headers) {
		out.Set(k, site.Headers[k])
	}
	return out
}
