package proxy

import (
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithLoggingUsesPeerAddress(t *testing.T) {
	var buf strings.Builder
	h := withLogging(log.New(&buf, "", 0), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "6.6.6.6, 10.0.0.9")
	h.ServeHTTP(httptest.NewRecorder(), r)

	out := buf.String()
	if !strings.Contains(out, "From=10.0.0.1\n") {
		t.Fatalf("peer address not logged:\n%s", out)
	}
	if strings.Contains(out, "From=6.6.6.6") {
		t.Fatalf("forwarded address logged as peer:\n%s", out)
	}
	if !strings.Contains(out, `X-Forwarded-For: "6.6.6.6, 10.0.0.9"`) {
		t.Fatalf("forwarded header not logged:\n%s", out)
	}
}

func TestRemoteHost(t *testing.T) {
	cases := []struct {
		remote, xff, want string
	}{
		{"192.0.2.7:5555", "", "192.0.2.7"},
		{"192.0.2.7:5555", "6.6.6.6", "192.0.2.7"},
		{"[2001:db8::1]:80", "", "2001:db8::1"},
		{"pipe", "", "pipe"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		if tc.xff != "" {
			r.Header.Set("X-Forwarded-For", tc.xff)
		}
		if got := remoteHost(r); got != tc.want {
			t.Fatalf("remoteHost(%q, %q) = %q, want %q", tc.remote, tc.xff, got, tc.want)
		}
	}
}
