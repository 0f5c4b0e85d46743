package proxy

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
)

// upstreamPage is a fetched HTML document, already decoded to UTF-8.
type upstreamPage struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

func (s *Server) fetchPage(ctx context.Context, client *http.Client, target string, hdr http.Header) (*upstreamPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if hdr == nil {
		hdr = http.Header{}
	}
	if hdr.Get("User-Agent") == "" {
		hdr.Set("User-Agent", s.cfg.UserAgent)
	}
	if hdr.Get("Accept") == "" {
		hdr.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	}
	if hdr.Get("Accept-Language") == "" {
		hdr.Set("Accept-Language", "ru,en;q=0.8")
	}
	copyHeader(req.Header, hdr)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", target, resp.StatusCode)
	}

	// net/http only decodes gzip when it set Accept-Encoding itself.
	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gr, gerr := gzip.NewReader(resp.Body)
		if gerr != nil {
			return nil, fmt.Errorf("get %s: %w", target, gerr)
		}
		defer gr.Close()
		reader = gr
	case "deflate":
		if zr, zerr := zlib.NewReader(resp.Body); zerr == nil {
			defer zr.Close()
			reader = zr
		} else {
			fr := flate.NewReader(resp.Body)
			defer fr.Close()
			reader = fr
		}
	}
	utf8Reader, err := charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("get %s: charset: %w", target, err)
	}
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &upstreamPage{URL: final, Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
