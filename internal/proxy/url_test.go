package proxy

import "testing"

func TestNormalizeTarget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  ", ""},
		{"absolute", "https://example.com/sugar/", "https://example.com/sugar/"},
		{"bare host", "example.com/sugar/", "http://example.com/sugar/"},
		{"leading slashes", "//example.com/", "http://example.com/"},
		{"encoded", "https%3A%2F%2Fexample.com%2Fsugar%2F", "https://example.com/sugar/"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeTarget(tc.in); got != tc.want {
				t.Fatalf("normalizeTarget(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{"root relative", "https://example.com/sugar/list/", "/sugar/rows/", "https://example.com/sugar/rows/"},
		{"same dir", "https://example.com/sugar/list/", "rows/", "https://example.com/sugar/list/rows/"},
		{"absolute", "https://example.com/", "http://other.org/rows", "http://other.org/rows"},
		{"empty ref", "https://example.com/a", "", "https://example.com/a"},
		{"no base", "", "/rows/", "/rows/"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveURL(tc.base, tc.ref); got != tc.want {
				t.Fatalf("resolveURL(%q, %q) = %q, want %q", tc.base, tc.ref, got, tc.want)
			}
		})
	}
}

func TestURLDecode(t *testing.T) {
	t.Parallel()
	if got := urlDecode("a%2Fb+c%zz"); got != "a/b+c%zz" {
		t.Fatalf("urlDecode = %q", got)
	}
}
