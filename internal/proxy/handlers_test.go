package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const upstreamListPage = `<!DOCTYPE html><html><head><script src="/static/sugar/js/table_script.js"></script></head>
<body onload="onBodyLoad()">
<form id="list_view_form" onsubmit="return false">
<select name="period"><option value="week" selected>Week</option><option value="month">Month</option></select>
<label><input type="checkbox" name="mine" value="1">Mine</label>
<button type="button" id="refresh" onclick="getTableRows('/sugar/rows/')">Refresh</button>
<button type="button" id="first_page" onclick="getFirst('/sugar/rows/')">&lt;&lt;</button>
<button type="button" id="prev_page" onclick="getPrev('/sugar/rows/')">&lt;</button>
<input type="number" id="id_page_number" name="page_number" value="1" min="1">
<button type="button" id="next_page" onclick="getNext('/sugar/rows/')">&gt;</button>
<button type="button" id="last_page" onclick="getLast('/sugar/rows/')">&gt;&gt;</button>
</form>
<div id="list_view_table_div"></div>
<a href="javascript:void(0)" onclick="alert(1)">help</a>
</body></html>`

// upstream serves a list page and a Django style rows endpoint paging 25
// rows by 10. The rows endpoint insists on the CSRF token the page set.
type upstream struct {
	mu      sync.Mutex
	forms   []url.Values
	headers []http.Header
	pages   int
	fail    bool
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/sugar/":
		u.mu.Lock()
		u.pages++
		u.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok", Path: "/"})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, upstreamListPage)
	case "/plain/":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html><body><p>nothing here</p></body></html>")
	case "/sugar/rows/", "/alt/rows/":
		u.serveRows(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (u *upstream) serveRows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "post only", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u.mu.Lock()
	u.forms = append(u.forms, r.PostForm)
	u.headers = append(u.headers, r.Header.Clone())
	fail := u.fail
	u.mu.Unlock()
	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if r.Header.Get("X-CSRFToken") != "tok" {
		http.Error(w, "csrf", http.StatusForbidden)
		return
	}
	const total, size = 25, 10
	pages := (total + size - 1) / size
	page, _ := strconv.Atoi(r.PostForm.Get("page_number"))
	if page < 0 || page > pages {
		page = pages
	}
	if page == 0 {
		page = 1
	}
	first := (page-1)*size + 1
	last := min(page*size, total)
	rows := []map[string]any{}
	for i := first; i <= last; i++ {
		rows = append(rows, map[string]any{"name": fmt.Sprintf("row-%d", i), "path": r.URL.Path})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"first_shown": first, "last_shown": last, "total_rows_count": total,
		"total_pages_count": pages, "page_number": page,
		"columns": []map[string]string{{"header": "Name", "data_index": "name"}, {"header": "Path", "data_index": "path"}},
		"rows":    rows,
	})
}

func (u *upstream) lastForm() url.Values {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.forms) == 0 {
		return nil
	}
	return u.forms[len(u.forms)-1]
}

func (u *upstream) setFail(fail bool) {
	u.mu.Lock()
	u.fail = fail
	u.mu.Unlock()
}

func (u *upstream) pageLoads() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pages
}

func (u *upstream) lastHeader() http.Header {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.headers) == 0 {
		return nil
	}
	return u.headers[len(u.headers)-1]
}

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *upstream, string) {
	t.Helper()
	up := &upstream{}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	cfg := Config{
		Settings: Settings{
			UpstreamTimeout: 5 * time.Second,
			PageCacheTTL:    time.Minute,
			UserAgent:       "listview-test",
		},
		Logger: log.New(io.Discard, "", 0),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s, up, srv.URL
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func viewURL(upstreamURL string, extra url.Values) string {
	q := url.Values{}
	q.Set("url", upstreamURL)
	for k, vs := range extra {
		q[k] = vs
	}
	return "/view?" + q.Encode()
}

func clientCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == clientCookieName {
			return c
		}
	}
	t.Fatalf("response did not set %s", clientCookieName)
	return nil
}

func TestViewBakesFirstPage(t *testing.T) {
	s, up, base := newTestServer(t, nil)
	rec := get(t, s, viewURL(base+"/sugar/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<caption>Showing records 1–10 of 25</caption>",
		"<td>row-1</td>",
		"<td>row-10</td>",
		`action="/view"`,
		`name="nav" value="next"`,
		`name="__lv" value="1"`,
		`href="#"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
	for _, unwanted := range []string{"<script", "onclick", "onload", "row-11", noticeClass} {
		if strings.Contains(body, unwanted) {
			t.Fatalf("body contains %q:\n%s", unwanted, body)
		}
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing %s header", requestIDHeader)
	}
	clientCookie(t, rec)

	form := up.lastForm()
	if form.Get("page_number") != "1" || form.Get("period") != "week" {
		t.Fatalf("rows form = %v", form)
	}
	hdr := up.lastHeader()
	if hdr.Get("Referer") != base+"/sugar/" {
		t.Fatalf("Referer = %q", hdr.Get("Referer"))
	}
	if hdr.Get("X-Requested-With") != "XMLHttpRequest" {
		t.Fatalf("X-Requested-With = %q", hdr.Get("X-Requested-With"))
	}
}

func TestViewNavigation(t *testing.T) {
	s, up, base := newTestServer(t, nil)
	first := get(t, s, viewURL(base+"/sugar/", nil))
	cookie := clientCookie(t, first)

	tests := []struct {
		name     string
		nav      string
		page     string
		wantSent string
		wantCell string
	}{
		{"next", "next", "1", "2", "row-11"},
		{"prev", "prev", "3", "2", "row-11"},
		{"last", "last", "1", "-1", "row-21"},
		{"first", "first", "3", "1", "row-1"},
		{"refresh typed page", "refresh", "3", "3", "row-21"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, s, viewURL(base+"/sugar/", url.Values{
				"nav": {tc.nav}, "page_number": {tc.page}, "period": {"month"}, markerParam: {"1"},
			}), cookie)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			form := up.lastForm()
			if got := form.Get("page_number"); got != tc.wantSent {
				t.Fatalf("sent page_number = %q, want %q", got, tc.wantSent)
			}
			if form.Get("period") != "month" {
				t.Fatalf("period override lost: %v", form)
			}
			if !strings.Contains(rec.Body.String(), "<td>"+tc.wantCell+"</td>") {
				t.Fatalf("body missing %s:\n%s", tc.wantCell, rec.Body.String())
			}
		})
	}
	if n := up.pageLoads(); n != 1 {
		t.Fatalf("list page fetched %d times, want 1", n)
	}
}

func TestViewCookielessClientsDoNotPileUpJars(t *testing.T) {
	now := time.Unix(1000, 0)
	s, _, base := newTestServer(t, func(cfg *Config) {
		cfg.Clock = func() time.Time { return now }
		cfg.JarTTL = time.Minute
		cfg.JarLimit = 16
		cfg.PageCacheTTL = 0
	})
	for i := 0; i < 100; i++ {
		if rec := get(t, s, viewURL(base+"/sugar/", nil)); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	if n := s.cookieJars.Len(); n > 16 {
		t.Fatalf("jars = %d after 100 cookieless requests, limit 16", n)
	}

	now = now.Add(time.Minute)
	rec := get(t, s, viewURL(base+"/sugar/", nil))
	if n := s.cookieJars.Len(); n != 1 {
		t.Fatalf("jars after idle = %d, want 1", n)
	}

	// A returning browser keeps its jar.
	c := clientCookie(t, rec)
	get(t, s, viewURL(base+"/sugar/", nil), c)
	if n := s.cookieJars.Len(); n != 1 {
		t.Fatalf("returning client got another jar: %d", n)
	}
}

func TestViewCheckboxOverride(t *testing.T) {
	s, up, base := newTestServer(t, nil)
	get(t, s, viewURL(base+"/sugar/", url.Values{"mine": {"1"}}))
	if up.lastForm().Has("mine") {
		t.Fatalf("checkbox checked without marker: %v", up.lastForm())
	}
	get(t, s, viewURL(base+"/sugar/", url.Values{"mine": {"1"}, markerParam: {"1"}}))
	if up.lastForm().Get("mine") != "1" {
		t.Fatalf("checkbox not checked: %v", up.lastForm())
	}
}

func TestViewLastPageDisablesForward(t *testing.T) {
	s, _, base := newTestServer(t, nil)
	rec := get(t, s, viewURL(base+"/sugar/", url.Values{"nav": {"last"}}))
	body := rec.Body.String()
	if !strings.Contains(body, `id="next_page"`) || !strings.Contains(body, `value="3"`) {
		t.Fatalf("unexpected body:\n%s", body)
	}
	i := strings.Index(body, `id="next_page"`)
	tag := body[strings.LastIndex(body[:i], "<"):]
	tag = tag[:strings.Index(tag, ">")]
	if !strings.Contains(tag, "disabled") {
		t.Fatalf("next button not disabled: %s", tag)
	}
}

func TestViewRowsFailureShowsNotice(t *testing.T) {
	s, up, base := newTestServer(t, nil)
	up.setFail(true)
	rec := get(t, s, viewURL(base+"/sugar/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<p class="listview-notice">Failure!</p>`) {
		t.Fatalf("notice missing:\n%s", body)
	}
	if strings.Contains(body, "<table") {
		t.Fatalf("table rendered on failure:\n%s", body)
	}
}

func TestViewErrors(t *testing.T) {
	s, _, base := newTestServer(t, nil)
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing url", "/view", http.StatusBadRequest},
		{"no list view", viewURL(base+"/plain/", nil), http.StatusUnprocessableEntity},
		{"upstream 404", viewURL(base+"/missing/", nil), http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := get(t, s, tc.target); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
	r := httptest.NewRequest(http.MethodDelete, "/view", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, r)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
}

func TestSiteConfigEndpointAndPass(t *testing.T) {
	dir := t.TempDir()
	write := func(body string) {
		if err := os.WriteFile(filepath.Join(dir, "127.0.0.1.json"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(`{"mode":"bake","endpoint":"/alt/rows/","headers":{"X-Site":"yes"}}`)
	s, up, base := newTestServer(t, func(cfg *Config) { cfg.SitesDir = dir })
	rec := get(t, s, viewURL(base+"/sugar/", nil))
	if !strings.Contains(rec.Body.String(), "<td>/alt/rows/</td>") {
		t.Fatalf("site endpoint not used:\n%s", rec.Body.String())
	}
	if up.lastHeader().Get("Referer") == "" {
		t.Fatalf("Referer missing")
	}

	write(`{"mode":"pass"}`)
	s2, _, base2 := newTestServer(t, func(cfg *Config) { cfg.SitesDir = dir })
	rec = get(t, s2, viewURL(base2+"/sugar/", nil))
	if rec.Body.String() != upstreamListPage {
		t.Fatalf("pass mode rewrote the page:\n%s", rec.Body.String())
	}
}

func TestRootAndPing(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	if rec := get(t, s, "/"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/view"`) {
		t.Fatalf("index: %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, s, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", rec.Code)
	}
	if rec := get(t, s, "/ping"); rec.Body.String() != "pong\n" {
		t.Fatalf("ping = %q", rec.Body.String())
	}
}

func TestDebugDumpsRows(t *testing.T) {
	var buf strings.Builder
	var mu sync.Mutex
	s, _, base := newTestServer(t, func(cfg *Config) {
		cfg.Debug = true
		cfg.Logger = log.New(writerFunc(func(p []byte) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			return buf.Write(p)
		}), "", 0)
	})
	get(t, s, viewURL(base+"/sugar/", nil))
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(buf.String(), "status=200") || !strings.Contains(buf.String(), `"first_shown":1`) {
		t.Fatalf("rows dump missing:\n%s", buf.String())
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
