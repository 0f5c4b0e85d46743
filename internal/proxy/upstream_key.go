package proxy

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const clientCookieName = "LISTVIEW_CLIENT"

// clientKey returns the jar key of the browser behind r, issuing a new
// client cookie on w when the request carries none.
func clientKey(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			if _, perr := uuid.Parse(v); perr == nil {
				return v
			}
		}
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

// remoteHost is the peer address of the connection. X-Forwarded-For is
// client supplied and only ever logged next to it.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}
