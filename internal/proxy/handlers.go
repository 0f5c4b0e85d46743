package proxy

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.cfg.IndexHTML)))
	io.WriteString(w, s.cfg.IndexHTML)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.Form
	target := normalizeTarget(q.Get("url"))
	if target == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	nav := q.Get(navParam)
	id := requestID(r)
	s.logger.Printf("IN %s %s %s nav=%q -> %s", id, r.Method, r.URL.Path, nav, target)

	res, err := s.bake(r.Context(), bakeRequest{
		Target:    target,
		Nav:       nav,
		Query:     q,
		ClientKey: clientKey(w, r),
		RequestID: id,
		Header:    s.headersFromQuery(r),
	})
	if err != nil {
		s.logger.Printf("ERR %s %s: %v", id, target, err)
		status := http.StatusBadGateway
		if errors.Is(err, errNoListView) || errors.Is(err, errNoEndpoint) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.logger.Printf("OUT %s %s endpoint=%s rendered=%d notices=%d bytes=%d", id, res.URL, res.Endpoint, res.Rendered, len(res.Notices), len(res.Body))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Body)))
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(res.Body)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong\n")
}

// headersFromQuery builds the upstream request headers. The ua and lang
// parameters override what the browser sent.
func (s *Server) headersFromQuery(r *http.Request) http.Header {
	hdr := http.Header{}
	q := r.URL.Query()
	if ua := strings.TrimSpace(q.Get("ua")); ua != "" {
		hdr.Set("User-Agent", ua)
	}
	if lang := firstNonEmpty(strings.TrimSpace(q.Get("lang")), r.Header.Get("Accept-Language")); lang != "" {
		hdr.Set("Accept-Language", lang)
	}
	return hdr
}
