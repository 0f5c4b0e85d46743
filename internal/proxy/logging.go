package proxy

import (
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

func withLogging(logger *log.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		logger.Printf("REQ %s %s %s Host=%s UA=%q From=%s", id, r.Method, r.URL.String(), r.Host, r.UserAgent(), remoteHost(r))
		if v := r.Header.Get("X-Forwarded-For"); v != "" {
			logger.Printf("HDR %s X-Forwarded-For: %q", id, v)
		}
		if v := r.Header.Get("Referer"); v != "" {
			logger.Printf("HDR %s Referer: %s", id, v)
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}
